package spectrogram

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlarssen/micspect/pkg/models"
)

func sineBuffer(channels int, n int, sampleRate, freq, amp float64) *models.CalibratedChannelBuffer {
	buf := &models.CalibratedChannelBuffer{
		SampleRate: sampleRate,
		Samples:    make([][]float64, channels),
		Deferred:   make([]models.BinGain, channels),
	}
	for c := 0; c < channels; c++ {
		s := make([]float64, n)
		for i := range s {
			s[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
		}
		buf.Samples[c] = s
	}
	return buf
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		n, window, hop, want int
	}{
		{1000, 100, 50, 19},
		{100, 100, 50, 1},
		{99, 100, 50, 0},
		{1000, 100, 100, 10},
		{1024, 256, 64, 13},
		{150, 100, 50, 2}, // 50 tail samples dropped
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FrameCount(tt.n, tt.window, tt.hop), "FrameCount(%d, %d, %d)", tt.n, tt.window, tt.hop)
	}
}

func TestTransform_ShapeAndSharedAxes(t *testing.T) {
	buf := sineBuffer(3, 1000, 1000, 100, 1)
	results, err := Transform(context.Background(), buf, Config{
		WindowSize: 100, HopSize: 50, Window: WindowHann, Scale: ScalePower,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for c, r := range results {
		assert.Equal(t, c, r.Channel)
		assert.Len(t, r.Times, 19)
		assert.Len(t, r.Frequencies, 51)
		assert.Len(t, r.Values, 19)
		for _, row := range r.Values {
			assert.Len(t, row, 51)
		}
		// Axis slices are shared verbatim across the batch.
		assert.Same(t, &results[0].Times[0], &r.Times[0])
		assert.Same(t, &results[0].Frequencies[0], &r.Frequencies[0])
	}

	// Frequency axis spans 0..Nyquist.
	assert.Equal(t, 0.0, results[0].Frequencies[0])
	assert.Equal(t, 500.0, results[0].Frequencies[50])

	// Frame centers: (start + window/2) / rate.
	assert.InDelta(t, 0.05, results[0].Times[0], 1e-12)
	assert.InDelta(t, 0.10, results[0].Times[1], 1e-12)
}

func TestTransform_SinePeakBin(t *testing.T) {
	// 100 Hz at rate 1000 with window 100: bin resolution 10 Hz, peak at bin 10.
	buf := sineBuffer(1, 1000, 1000, 100, 1)
	results, err := Transform(context.Background(), buf, Config{
		WindowSize: 100, HopSize: 50, Window: WindowRectangular, Scale: ScalePower,
	})
	require.NoError(t, err)

	for ti, row := range results[0].Values {
		peak := 0
		for k, v := range row {
			if v > row[peak] {
				peak = k
			}
		}
		assert.Equal(t, 10, peak, "frame %d", ti)
	}
}

func TestTransform_InvalidConfiguration(t *testing.T) {
	buf := sineBuffer(1, 500, 1000, 100, 1)
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero hop", Config{WindowSize: 100, HopSize: 0, Window: WindowHann}},
		{"negative window", Config{WindowSize: -1, HopSize: 1, Window: WindowHann}},
		{"hop exceeds window", Config{WindowSize: 100, HopSize: 200, Window: WindowHann}},
		{"window exceeds buffer", Config{WindowSize: 501, HopSize: 100, Window: WindowHann}},
		{"unknown window", Config{WindowSize: 100, HopSize: 50, Window: "kaiser"}},
		{"unknown scale", Config{WindowSize: 100, HopSize: 50, Window: WindowHann, Scale: "mel"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Transform(context.Background(), buf, tt.cfg)
			var cerr *models.ConfigurationError
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestTransform_AllWindowFunctions(t *testing.T) {
	buf := sineBuffer(1, 400, 1000, 100, 1)
	for _, w := range []WindowFunc{WindowRectangular, WindowHann, WindowHamming, WindowBlackman} {
		_, err := Transform(context.Background(), buf, Config{WindowSize: 100, HopSize: 50, Window: w})
		assert.NoError(t, err, "window %q", w)
	}
}

func TestTransform_MagnitudeIsSqrtOfPower(t *testing.T) {
	buf := sineBuffer(1, 500, 1000, 50, 0.8)
	mag, err := Transform(context.Background(), buf, Config{WindowSize: 128, HopSize: 64, Window: WindowHamming, Scale: ScaleMagnitude})
	require.NoError(t, err)
	pow, err := Transform(context.Background(), buf, Config{WindowSize: 128, HopSize: 64, Window: WindowHamming, Scale: ScalePower})
	require.NoError(t, err)

	for ti := range mag[0].Values {
		for k := range mag[0].Values[ti] {
			assert.InDelta(t, pow[0].Values[ti][k], mag[0].Values[ti][k]*mag[0].Values[ti][k], 1e-9)
		}
	}
}

type flatGain float64

func (g flatGain) GainAt(float64) float64 { return float64(g) }

func TestTransform_DeferredGainAppliedBeforeMagnitude(t *testing.T) {
	plain := sineBuffer(1, 500, 1000, 100, 1)
	boosted := sineBuffer(1, 500, 1000, 100, 1)
	boosted.Deferred[0] = flatGain(2)

	cfg := Config{WindowSize: 100, HopSize: 50, Window: WindowHann, Scale: ScaleMagnitude}
	a, err := Transform(context.Background(), plain, cfg)
	require.NoError(t, err)
	b, err := Transform(context.Background(), boosted, cfg)
	require.NoError(t, err)

	for ti := range a[0].Values {
		for k := range a[0].Values[ti] {
			assert.InDelta(t, 2*a[0].Values[ti][k], b[0].Values[ti][k], 1e-9)
		}
	}
}

func TestTransform_Cancellation(t *testing.T) {
	buf := sineBuffer(2, 4000, 1000, 100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Transform(ctx, buf, Config{WindowSize: 100, HopSize: 50, Window: WindowHann})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPowerToDB(t *testing.T) {
	results := []*models.SpectrogramResult{
		{
			Channel:     0,
			Times:       []float64{0.1},
			Frequencies: []float64{0, 10},
			Values:      [][]float64{{4, 1}},
		},
		{
			Channel:     1,
			Times:       []float64{0.1},
			Frequencies: []float64{0, 10},
			Values:      [][]float64{{0.04, 0}},
		},
	}

	db := PowerToDB(results)
	require.Len(t, db, 2)

	// Batch maximum maps to 0 dB; ratios across channels survive.
	assert.InDelta(t, 0.0, db[0].Values[0][0], 1e-12)
	assert.InDelta(t, 10*math.Log10(1.0/4.0), db[0].Values[0][1], 1e-12)
	assert.InDelta(t, 10*math.Log10(0.01), db[1].Values[0][0], 1e-12)
	// Zero power clips to the floor.
	assert.Equal(t, -80.0, db[1].Values[0][1])

	// Inputs untouched.
	assert.Equal(t, 4.0, results[0].Values[0][0])
}
