package models

import "fmt"

// RawChannelBuffer holds uncalibrated sample data, one slice per channel.
// All channels share one sample rate and are equal in length.
type RawChannelBuffer struct {
	SampleRate float64
	Samples    [][]float64
}

// ChannelCount returns the number of channels in the buffer.
func (b *RawChannelBuffer) ChannelCount() int { return len(b.Samples) }

// FrameLen returns the per-channel sample count, or 0 for an empty buffer.
func (b *RawChannelBuffer) FrameLen() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Validate checks the buffer's own shape invariants.
func (b *RawChannelBuffer) Validate() error {
	if b.SampleRate <= 0 {
		return &ShapeMismatchError{Reason: "buffer sample rate must be positive"}
	}
	if len(b.Samples) == 0 {
		return &ShapeMismatchError{Reason: "buffer has no channels"}
	}
	n := len(b.Samples[0])
	if n == 0 {
		return &ShapeMismatchError{Reason: "buffer channels are empty"}
	}
	for c, ch := range b.Samples {
		if len(ch) != n {
			return &ShapeMismatchError{Reason: fmt.Sprintf("channel %d has %d samples, want %d", c, len(ch), n)}
		}
	}
	return nil
}

// BinGain supplies a per-frequency gain for calibration that was deferred to
// the frequency domain.
type BinGain interface {
	GainAt(freq float64) float64
}

// CalibratedChannelBuffer holds calibrated sample data. For channels whose
// calibration is frequency-dependent the time-domain samples pass through
// uncorrected and Deferred carries the per-bin gain the spectrogram engine
// applies; Deferred[c] is nil for channels already corrected in the time
// domain.
type CalibratedChannelBuffer struct {
	SampleRate float64
	Samples    [][]float64
	Deferred   []BinGain
}

// ChannelCount returns the number of channels in the buffer.
func (b *CalibratedChannelBuffer) ChannelCount() int { return len(b.Samples) }

// FrameLen returns the per-channel sample count, or 0 for an empty buffer.
func (b *CalibratedChannelBuffer) FrameLen() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}
