package calibration

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/nlarssen/micspect/pkg/models"
)

// maxCurvePoints bounds the size of generated calibration curves. Keeping
// every rfft bin of a long sweep produces metadata measured in megabytes;
// with piecewise-linear lookup the decimated curve is indistinguishable at
// measurement-noise level.
const maxCurvePoints = 1024

// AlignChannels aligns each channel to the reference signal by
// cross-correlation and returns copies trimmed or zero-padded to the
// reference length. Inputs are not modified. Used on frequency-sweep
// recordings before measuring per-microphone response.
func AlignChannels(reference []float64, channels [][]float64) [][]float64 {
	long := len(reference)
	for _, ch := range channels {
		if len(ch) > long {
			long = len(ch)
		}
	}
	m := nextPowerOfTwo(2 * long)
	fft := fourier.NewFFT(m)

	refPad := make([]float64, m)
	copy(refPad, reference)
	refCoeffs := fft.Coefficients(nil, refPad)
	for i := range refCoeffs {
		refCoeffs[i] = cmplx.Conj(refCoeffs[i])
	}

	aligned := make([][]float64, len(channels))
	pad := make([]float64, m)
	cross := make([]complex128, len(refCoeffs))
	for i, ch := range channels {
		for k := range pad {
			pad[k] = 0
		}
		copy(pad, ch)
		coeffs := fft.Coefficients(nil, pad)
		for k := range coeffs {
			cross[k] = coeffs[k] * refCoeffs[k]
		}
		corr := fft.Sequence(nil, cross)

		best := 0
		for k := 1; k < len(corr); k++ {
			if corr[k] > corr[best] {
				best = k
			}
		}
		lag := best
		if lag > m/2 {
			lag -= m
		}
		aligned[i] = shiftToLength(ch, lag, len(reference))
	}
	return aligned
}

// shiftToLength advances (lag > 0) or delays (lag < 0) the signal, then trims
// or zero-pads it to length n.
func shiftToLength(signal []float64, lag, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		src := i + lag
		if src >= 0 && src < len(signal) {
			out[i] = signal[src]
		}
	}
	return out
}

// MeasureResponse derives a frequency-dependent calibration curve for every
// channel of an aligned sweep recording: the gain at each bin is the ratio of
// the reference channel's spectral magnitude to the channel's own. The
// reference channel's curve comes out flat at unity. Channels must be
// aligned and equal in length (see AlignChannels).
func MeasureResponse(aligned [][]float64, sampleRate float64, refIndex int) ([]models.Calibration, error) {
	if len(aligned) == 0 {
		return nil, &models.ConfigurationError{Reason: "no channels to measure"}
	}
	if refIndex < 0 || refIndex >= len(aligned) {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("reference index %d outside 0..%d", refIndex, len(aligned)-1)}
	}
	if sampleRate <= 0 {
		return nil, &models.ConfigurationError{Reason: "sample rate must be positive"}
	}
	n := len(aligned[refIndex])
	if n < 4 {
		return nil, &models.ConfigurationError{Reason: "sweep too short to measure a response"}
	}
	for c, ch := range aligned {
		if len(ch) != n {
			return nil, &models.ShapeMismatchError{Reason: fmt.Sprintf("channel %d has %d samples, want %d", c, len(ch), n)}
		}
	}

	fft := fourier.NewFFT(n)
	refMag := spectralMagnitudes(fft, aligned[refIndex])

	const eps = 1e-12
	stride := (len(refMag) + maxCurvePoints - 1) / maxCurvePoints

	curves := make([]models.Calibration, len(aligned))
	for c, ch := range aligned {
		mag := spectralMagnitudes(fft, ch)
		var points []models.CurvePoint
		for k := 0; k < len(mag); k += stride {
			points = append(points, models.CurvePoint{
				Frequency: float64(k) * sampleRate / float64(n),
				Gain:      refMag[k] / (mag[k] + eps),
			})
		}
		curves[c] = models.CurveCalibration(points)
		if err := curves[c].Validate(); err != nil {
			return nil, err
		}
	}
	return curves, nil
}

func spectralMagnitudes(fft *fourier.FFT, signal []float64) []float64 {
	coeffs := fft.Coefficients(nil, signal)
	mags := make([]float64, len(coeffs))
	for k, v := range coeffs {
		mags[k] = cmplx.Abs(v)
	}
	return mags
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
