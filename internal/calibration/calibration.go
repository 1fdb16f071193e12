// Package calibration converts raw sample amplitudes to calibrated physical
// units using the per-microphone coefficients carried by the recording
// metadata. Scalar coefficients are applied directly in the time domain;
// frequency-dependent curves are deferred to the spectrogram engine as
// per-bin gains.
package calibration

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/nlarssen/micspect/pkg/models"
)

// Calibrate applies per-channel calibration to raw and returns a new buffer;
// raw is never modified. Channel c of the buffer is paired with descriptor c
// of the metadata (descriptors are index-normalized at parse time).
//
// Scalar calibration scales every sample by coefficient/sensitivity, mapping
// digital full scale to the sensitivity reference. Curve calibration leaves
// the time-domain samples untouched and attaches a per-bin gain of
// curve(f)/sensitivity for the spectrogram engine to apply.
func Calibrate(raw *models.RawChannelBuffer, meta *models.RecordingMetadata) (*models.CalibratedChannelBuffer, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	if raw.ChannelCount() != meta.ChannelCount() {
		return nil, &models.ShapeMismatchError{
			Reason: fmt.Sprintf("buffer has %d channels, metadata describes %d", raw.ChannelCount(), meta.ChannelCount()),
		}
	}
	if raw.SampleRate != meta.SampleRate {
		return nil, &models.ShapeMismatchError{
			Reason: fmt.Sprintf("buffer sample rate %g does not match metadata sample rate %g", raw.SampleRate, meta.SampleRate),
		}
	}

	out := &models.CalibratedChannelBuffer{
		SampleRate: raw.SampleRate,
		Samples:    make([][]float64, raw.ChannelCount()),
		Deferred:   make([]models.BinGain, raw.ChannelCount()),
	}
	for c := range raw.Samples {
		desc := &meta.Channels[c]
		samples := make([]float64, len(raw.Samples[c]))
		copy(samples, raw.Samples[c])

		if desc.Calibration.IsCurve() {
			out.Deferred[c] = &scaledCurve{cal: &desc.Calibration, scale: 1 / desc.Sensitivity}
		} else {
			floats.Scale(desc.Calibration.Scalar()/desc.Sensitivity, samples)
		}
		out.Samples[c] = samples
	}
	return out, nil
}

// scaledCurve folds the sensitivity reference into the curve lookup so both
// calibration variants share the same unit convention.
type scaledCurve struct {
	cal   *models.Calibration
	scale float64
}

func (g *scaledCurve) GainAt(freq float64) float64 {
	return g.cal.GainAt(freq) * g.scale
}
