// Package audio holds mono 16-bit PCM waveforms and the few operations the
// narration track needs: WAV I/O, resampling and placement mixing.
package audio

import (
	"encoding/binary"
	"math"
)

// Waveform is mono signed 16-bit PCM.
type Waveform struct {
	SampleRate int
	Samples    []int16
}

// Duration in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// FromPCM16LE wraps raw little-endian s16 mono bytes. A trailing odd byte is
// ignored.
func FromPCM16LE(pcm []byte, rate int) Waveform {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return Waveform{SampleRate: rate, Samples: samples}
}

// PCM16LE returns the samples as raw little-endian bytes.
func (w Waveform) PCM16LE() []byte {
	out := make([]byte, len(w.Samples)*2)
	for i, s := range w.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Resample converts w to rate with linear interpolation.
func Resample(w Waveform, rate int) Waveform {
	if w.SampleRate == rate || w.SampleRate <= 0 || len(w.Samples) == 0 {
		return Waveform{SampleRate: rate, Samples: w.Samples}
	}
	n := int(int64(len(w.Samples)) * int64(rate) / int64(w.SampleRate))
	out := make([]int16, n)
	ratio := float64(w.SampleRate) / float64(rate)

	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := w.Samples[idx]
		s1 := s0
		if idx+1 < len(w.Samples) {
			s1 = w.Samples[idx+1]
		}
		out[i] = clip16(math.Round(float64(s0)*(1-frac) + float64(s1)*frac))
	}
	return Waveform{SampleRate: rate, Samples: out}
}

// Fit truncates or zero-pads samples to exactly n.
func Fit(samples []int16, n int) []int16 {
	if len(samples) == n {
		return samples
	}
	out := make([]int16, n)
	copy(out, samples)
	return out
}

// SampleCount converts seconds to a sample count at rate, rounding to nearest.
func SampleCount(seconds float64, rate int) int {
	return int(math.Round(seconds * float64(rate)))
}

func clip16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
