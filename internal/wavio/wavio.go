// Package wavio is collaborator glue between WAV files and the pipeline's
// in-memory buffers. The core stages never touch it; they accept
// already-loaded buffers.
package wavio

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"

	"github.com/nlarssen/micspect/pkg/models"
)

// Decode reads a WAV stream into a RawChannelBuffer, deinterleaving channels
// and scaling integer PCM to [-1, 1] by the source bit depth.
func Decode(r io.ReadSeeker) (*models.RawChannelBuffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV stream")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 || len(pcm.Data) == 0 {
		return nil, fmt.Errorf("WAV stream has no sample data")
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := float64(int(1) << (bitDepth - 1))

	nCh := pcm.Format.NumChannels
	frames := len(pcm.Data) / nCh
	out := &models.RawChannelBuffer{
		SampleRate: float64(pcm.Format.SampleRate),
		Samples:    make([][]float64, nCh),
	}
	for c := 0; c < nCh; c++ {
		ch := make([]float64, frames)
		for i := 0; i < frames; i++ {
			ch[i] = float64(pcm.Data[i*nCh+c]) / scale
		}
		out.Samples[c] = ch
	}
	return out, nil
}

// Slice returns a copy of buf restricted to [start, end) seconds. Bounds are
// clamped to the buffer; end <= 0 means the end of the buffer.
func Slice(buf *models.RawChannelBuffer, start, end float64) (*models.RawChannelBuffer, error) {
	n := buf.FrameLen()
	duration := float64(n) / buf.SampleRate
	if end <= 0 || end > duration {
		end = duration
	}
	if start < 0 {
		start = 0
	}
	lo := int(start * buf.SampleRate)
	hi := int(end * buf.SampleRate)
	if hi > n {
		hi = n
	}
	if lo >= hi {
		return nil, fmt.Errorf("slice [%gs, %gs) selects no samples from a %.3gs buffer", start, end, duration)
	}

	out := &models.RawChannelBuffer{
		SampleRate: buf.SampleRate,
		Samples:    make([][]float64, buf.ChannelCount()),
	}
	for c, ch := range buf.Samples {
		s := make([]float64, hi-lo)
		copy(s, ch[lo:hi])
		out.Samples[c] = s
	}
	return out, nil
}

// Normalize returns a copy of buf with each channel scaled independently so
// its peak absolute amplitude is 1. All-zero channels pass through unchanged.
func Normalize(buf *models.RawChannelBuffer) *models.RawChannelBuffer {
	out := &models.RawChannelBuffer{
		SampleRate: buf.SampleRate,
		Samples:    make([][]float64, buf.ChannelCount()),
	}
	for c, ch := range buf.Samples {
		peak := 0.0
		for _, v := range ch {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
		s := make([]float64, len(ch))
		copy(s, ch)
		if peak > 0 {
			for i := range s {
				s[i] /= peak
			}
		}
		out.Samples[c] = s
	}
	return out
}
