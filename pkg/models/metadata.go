package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// RecordingMetadata describes one capture session: sample rate, the ordered
// microphone array, and optional operator-supplied session details. It is
// immutable after ParseMetadata returns it.
type RecordingMetadata struct {
	SampleRate float64                `json:"sample_rate"`
	Channels   []MicrophoneDescriptor `json:"channels"`
	Session    *SessionInfo           `json:"session,omitempty"`
}

// MicrophoneDescriptor describes a single microphone in the array.
type MicrophoneDescriptor struct {
	Index       int         `json:"index"`
	Position    *Position   `json:"position,omitempty"`
	Calibration Calibration `json:"calibration"`
	Sensitivity float64     `json:"sensitivity"`
}

// Position is a microphone's physical location in meters, serialized as
// [x, y, z].
type Position [3]float64

// SessionInfo carries operator-supplied recording context. The pipeline
// never interprets it; it rides along through parse and re-serialization.
type SessionInfo struct {
	Location   string `json:"location,omitempty"`
	Operator   string `json:"operator,omitempty"`
	DroneModel string `json:"drone_model,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
}

// CurvePoint is one knot of a frequency-dependent calibration curve.
type CurvePoint struct {
	Frequency float64
	Gain      float64
}

// Calibration converts raw digital amplitude to the physical quantity defined
// by the microphone's sensitivity reference. It is either a single scalar
// gain or a curve of (frequency, gain) knots; the variant is resolved once at
// parse time, so no consumer ever dispatches on a dynamic type.
type Calibration struct {
	defined bool
	curve   bool
	scalar  float64
	points  []CurvePoint
	pl      interp.PiecewiseLinear
	fitted  bool
}

// ScalarCalibration returns a calibration that scales every sample by v.
func ScalarCalibration(v float64) Calibration {
	return Calibration{defined: true, scalar: v}
}

// CurveCalibration returns a frequency-dependent calibration from the given
// knots. The knots must be sorted by strictly increasing frequency; call
// Validate to check before use.
func CurveCalibration(points []CurvePoint) Calibration {
	c := Calibration{defined: true, curve: true, points: points}
	c.fit()
	return c
}

// IsCurve reports whether the calibration is frequency-dependent.
func (c *Calibration) IsCurve() bool { return c.curve }

// Scalar returns the scalar gain. Only meaningful when IsCurve is false.
func (c *Calibration) Scalar() float64 { return c.scalar }

// Points returns the curve knots. Nil for scalar calibrations.
func (c *Calibration) Points() []CurvePoint { return c.points }

// GainAt returns the gain at the given frequency. Scalar calibrations are
// flat. Curves interpolate linearly between knots; outside the measured
// range the nearest knot's gain is returned (flat extrapolation, so an
// unmeasured band can never be overshot).
func (c *Calibration) GainAt(freq float64) float64 {
	if !c.curve {
		return c.scalar
	}
	if !c.fitted {
		return math.NaN()
	}
	if freq <= c.points[0].Frequency {
		return c.points[0].Gain
	}
	if last := len(c.points) - 1; freq >= c.points[last].Frequency {
		return c.points[last].Gain
	}
	return c.pl.Predict(freq)
}

// Validate checks the calibration values and prepares the curve interpolant.
func (c *Calibration) Validate() error {
	if !c.defined {
		return &MetadataError{Field: "calibration", Reason: "required"}
	}
	if !c.curve {
		if !isFinite(c.scalar) {
			return &MetadataError{Field: "calibration", Reason: "scalar gain must be finite"}
		}
		return nil
	}
	if len(c.points) < 2 {
		return &MetadataError{Field: "calibration", Reason: "curve needs at least two (frequency, gain) points"}
	}
	for i, p := range c.points {
		if !isFinite(p.Frequency) || p.Frequency < 0 {
			return &MetadataError{Field: "calibration", Reason: fmt.Sprintf("curve point %d has invalid frequency", i)}
		}
		if !isFinite(p.Gain) {
			return &MetadataError{Field: "calibration", Reason: fmt.Sprintf("curve point %d has non-finite gain", i)}
		}
		if i > 0 && p.Frequency <= c.points[i-1].Frequency {
			return &MetadataError{Field: "calibration", Reason: "curve frequencies must be strictly increasing"}
		}
	}
	if !c.fitted {
		c.fit()
	}
	if !c.fitted {
		return &MetadataError{Field: "calibration", Reason: "curve could not be interpolated"}
	}
	return nil
}

func (c *Calibration) fit() {
	if len(c.points) < 2 {
		return
	}
	xs := make([]float64, len(c.points))
	ys := make([]float64, len(c.points))
	for i, p := range c.points {
		if i > 0 && p.Frequency <= c.points[i-1].Frequency {
			return
		}
		xs[i] = p.Frequency
		ys[i] = p.Gain
	}
	if err := c.pl.Fit(xs, ys); err != nil {
		return
	}
	c.fitted = true
}

// MarshalJSON writes the scalar form as a bare number and the curve form as
// [[frequency, gain], ...], matching the metadata schema.
func (c Calibration) MarshalJSON() ([]byte, error) {
	if !c.curve {
		return json.Marshal(c.scalar)
	}
	pairs := make([][2]float64, len(c.points))
	for i, p := range c.points {
		pairs[i] = [2]float64{p.Frequency, p.Gain}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON accepts either a number or [[frequency, gain], ...].
func (c *Calibration) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		*c = ScalarCalibration(scalar)
		return nil
	}
	var pairs [][]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return &MetadataError{Field: "calibration", Reason: "must be a number or an array of [frequency, gain] pairs", Err: err}
	}
	points := make([]CurvePoint, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return &MetadataError{Field: "calibration", Reason: fmt.Sprintf("curve point %d must be a [frequency, gain] pair", i)}
		}
		points[i] = CurvePoint{Frequency: p[0], Gain: p[1]}
	}
	*c = CurveCalibration(points)
	return nil
}

// ParseMetadata parses and validates recording metadata from JSON text. On
// success the returned metadata is fully validated, with channel descriptors
// normalized to index order. Any failure returns a *MetadataError and no
// partially constructed metadata.
func ParseMetadata(data []byte) (*RecordingMetadata, error) {
	var meta RecordingMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		var merr *MetadataError
		if errors.As(err, &merr) {
			return nil, merr
		}
		return nil, &MetadataError{Field: "json", Reason: "malformed document", Err: err}
	}
	if err := meta.validate(); err != nil {
		return nil, err
	}
	sort.Slice(meta.Channels, func(i, j int) bool {
		return meta.Channels[i].Index < meta.Channels[j].Index
	})
	return &meta, nil
}

func (m *RecordingMetadata) validate() error {
	if !isFinite(m.SampleRate) || m.SampleRate <= 0 {
		return &MetadataError{Field: "sample_rate", Reason: "must be a positive finite number"}
	}
	if len(m.Channels) == 0 {
		return &MetadataError{Field: "channels", Reason: "at least one channel is required"}
	}
	seen := make(map[int]bool, len(m.Channels))
	for i := range m.Channels {
		ch := &m.Channels[i]
		if ch.Index < 0 || ch.Index >= len(m.Channels) {
			return &MetadataError{Field: "channels", Reason: fmt.Sprintf("channel index %d outside 0..%d", ch.Index, len(m.Channels)-1)}
		}
		if seen[ch.Index] {
			return &MetadataError{Field: "channels", Reason: fmt.Sprintf("duplicate channel index %d", ch.Index)}
		}
		seen[ch.Index] = true
		if !isFinite(ch.Sensitivity) || ch.Sensitivity <= 0 {
			return &MetadataError{Field: "sensitivity", Reason: fmt.Sprintf("channel %d: must be a positive finite number", ch.Index)}
		}
		if ch.Position != nil {
			for _, v := range ch.Position {
				if !isFinite(v) {
					return &MetadataError{Field: "position", Reason: fmt.Sprintf("channel %d: coordinates must be finite", ch.Index)}
				}
			}
		}
		if err := ch.Calibration.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ChannelCount returns the number of microphones in the array.
func (m *RecordingMetadata) ChannelCount() int { return len(m.Channels) }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
