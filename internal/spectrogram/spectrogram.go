// Package spectrogram implements the windowed short-time transform that turns
// calibrated channel buffers into time-frequency matrices. All channels of a
// buffer are transformed in one batch and share their axis slices, which is
// the precondition the aggregator relies on.
package spectrogram

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"runtime"

	"github.com/mjibson/go-dsp/window"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/nlarssen/micspect/pkg/models"
)

// WindowFunc names one of the supported analysis windows.
type WindowFunc string

const (
	WindowRectangular WindowFunc = "rectangular"
	WindowHann        WindowFunc = "hann"
	WindowHamming     WindowFunc = "hamming"
	WindowBlackman    WindowFunc = "blackman"
)

// Scale selects the bin value representation.
type Scale string

const (
	// ScaleMagnitude stores |X[k]| per bin.
	ScaleMagnitude Scale = "magnitude"
	// ScalePower stores |X[k]|^2 per bin.
	ScalePower Scale = "power"
	// ScaleDecibel stores power in dB relative to the batch maximum,
	// floored at -80 dB.
	ScaleDecibel Scale = "db"
)

// Config holds the transform parameters. Workers <= 0 selects one worker per
// CPU; an empty Scale defaults to power.
type Config struct {
	WindowSize int
	HopSize    int
	Window     WindowFunc
	Scale      Scale
	Workers    int
}

// FrameCount returns the number of full frames a buffer of n samples yields.
// Tail samples shorter than one window are dropped, never zero-padded.
func FrameCount(n, windowSize, hopSize int) int {
	if n < windowSize {
		return 0
	}
	return (n-windowSize)/hopSize + 1
}

// Transform computes one spectrogram per channel of buf. Channels are
// processed concurrently, each worker writing its own pre-allocated result
// slot; the returned slice is ordered by channel. Deferred frequency-domain
// calibration attached to buf is applied to each frame's complex coefficients
// before magnitude or power is taken.
func Transform(ctx context.Context, buf *models.CalibratedChannelBuffer, cfg Config) ([]*models.SpectrogramResult, error) {
	n := buf.FrameLen()
	scale := cfg.Scale
	if scale == "" {
		scale = ScalePower
	}
	switch scale {
	case ScaleMagnitude, ScalePower, ScaleDecibel:
	default:
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unknown scale %q", cfg.Scale)}
	}
	if cfg.WindowSize <= 0 || cfg.HopSize <= 0 {
		return nil, &models.ConfigurationError{Reason: "window_size and hop_size must be positive"}
	}
	if cfg.HopSize > cfg.WindowSize {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("hop_size %d exceeds window_size %d", cfg.HopSize, cfg.WindowSize)}
	}
	if cfg.WindowSize > n {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("window_size %d exceeds buffer length %d", cfg.WindowSize, n)}
	}
	win, err := windowCoefficients(cfg.Window, cfg.WindowSize)
	if err != nil {
		return nil, err
	}

	frames := FrameCount(n, cfg.WindowSize, cfg.HopSize)
	bins := cfg.WindowSize/2 + 1

	// Axis slices are shared verbatim by every channel of the batch.
	times := make([]float64, frames)
	for i := range times {
		times[i] = (float64(i*cfg.HopSize) + float64(cfg.WindowSize)/2) / buf.SampleRate
	}
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * buf.SampleRate / float64(cfg.WindowSize)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]*models.SpectrogramResult, buf.ChannelCount())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := range buf.Samples {
		g.Go(func() error {
			// Each worker owns its own FFT plan and scratch frame.
			fft := fourier.NewFFT(cfg.WindowSize)
			frame := make([]float64, cfg.WindowSize)
			var coeffs []complex128

			var binGains []float64
			if buf.Deferred[c] != nil {
				binGains = make([]float64, bins)
				for k, f := range freqs {
					binGains[k] = buf.Deferred[c].GainAt(f)
				}
			}

			samples := buf.Samples[c]
			values := make([][]float64, frames)
			for i := 0; i < frames; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				start := i * cfg.HopSize
				for j := range frame {
					frame[j] = samples[start+j] * win[j]
				}
				coeffs = fft.Coefficients(coeffs, frame)

				row := make([]float64, bins)
				for k := 0; k < bins; k++ {
					v := coeffs[k]
					if binGains != nil {
						v *= complex(binGains[k], 0)
					}
					if scale == ScaleMagnitude {
						row[k] = cmplx.Abs(v)
					} else {
						row[k] = real(v)*real(v) + imag(v)*imag(v)
					}
				}
				values[i] = row
			}
			results[c] = &models.SpectrogramResult{
				Channel:     c,
				Times:       times,
				Frequencies: freqs,
				Values:      values,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if scale == ScaleDecibel {
		return PowerToDB(results), nil
	}
	return results, nil
}

// dbFloor clips converted spectrograms, matching the usual display range.
const dbFloor = -80.0

// PowerToDB converts power spectrograms to decibels relative to the
// collection-wide maximum, so inter-channel level differences survive the
// conversion. Values are floored at -80 dB. The inputs are not modified;
// axis slices are shared with the returned results.
func PowerToDB(results []*models.SpectrogramResult) []*models.SpectrogramResult {
	ref := 1e-10
	for _, r := range results {
		for _, row := range r.Values {
			for _, v := range row {
				if v > ref {
					ref = v
				}
			}
		}
	}

	out := make([]*models.SpectrogramResult, len(results))
	for i, r := range results {
		values := make([][]float64, len(r.Values))
		for t, row := range r.Values {
			converted := make([]float64, len(row))
			for k, v := range row {
				if v < 1e-10 {
					v = 1e-10
				}
				db := 10 * math.Log10(v/ref)
				if db < dbFloor {
					db = dbFloor
				}
				converted[k] = db
			}
			values[t] = converted
		}
		out[i] = &models.SpectrogramResult{
			Channel:     r.Channel,
			Times:       r.Times,
			Frequencies: r.Frequencies,
			Values:      values,
		}
	}
	return out
}

func windowCoefficients(w WindowFunc, size int) ([]float64, error) {
	switch w {
	case WindowRectangular:
		return window.Rectangular(size), nil
	case WindowHann:
		return window.Hann(size), nil
	case WindowHamming:
		return window.Hamming(size), nil
	case WindowBlackman:
		return window.Blackman(size), nil
	default:
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("unknown window function %q", w)}
	}
}
