package audio

// Placement is a segment positioned at an absolute sample offset.
type Placement struct {
	Offset  int
	Samples []int16
}

// mix sums every placement at its offset into total samples and divides by
// the number of placements. Parts of a segment falling outside the track are
// dropped.
func mix(placements []Placement, total int) []float64 {
	if total <= 0 {
		return []float64{}
	}
	acc := make([]float64, total)
	for _, p := range placements {
		for i, s := range p.Samples {
			at := p.Offset + i
			if at < 0 {
				continue
			}
			if at >= total {
				break
			}
			acc[at] += float64(s)
		}
	}

	n := len(placements)
	if n < 1 {
		n = 1
	}
	for i := range acc {
		acc[i] /= float64(n)
	}
	return acc
}

// Assemble builds a track of exactly total samples: the placements summed,
// divided by their count, and clipped to int16.
func Assemble(placements []Placement, total int) []int16 {
	acc := mix(placements, total)
	out := make([]int16, len(acc))
	for i, v := range acc {
		out[i] = clip16(v)
	}
	return out
}

// AssembleFloat is Assemble without the 16-bit quantization: samples are
// scaled to [-1, 1] float32 and only clipped at full scale.
func AssembleFloat(placements []Placement, total int) []float32 {
	acc := mix(placements, total)
	out := make([]float32, len(acc))
	for i, v := range acc {
		out[i] = clipUnit(v / fullScale)
	}
	return out
}

// fullScale maps int16 samples to [-1, 1).
const fullScale = 32768

func clipUnit(v float64) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return float32(v)
}
