package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
)

func TestWAVRoundTripThroughFile(t *testing.T) {
	in := Waveform{SampleRate: 44100, Samples: []int16{0, 1, -1, math.MaxInt16, math.MinInt16}}
	path := filepath.Join(t.TempDir(), "seg.wav")

	if err := WriteFile(path, in); err != nil {
		t.Fatal(err)
	}
	out, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.SampleRate != 44100 || len(out.Samples) != len(in.Samples) {
		t.Fatalf("got %d Hz, %d samples", out.SampleRate, len(out.Samples))
	}
	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Errorf("sample %d = %d, want %d", i, out.Samples[i], in.Samples[i])
		}
	}
}

// stereoWAV builds a 16-bit stereo file with an extra LIST chunk before data.
func stereoWAV(frames [][2]int16, declaredData uint32) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(2))
	binary.Write(&b, binary.LittleEndian, uint32(24000))
	binary.Write(&b, binary.LittleEndian, uint32(24000*4))
	binary.Write(&b, binary.LittleEndian, uint16(4))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("LIST")
	binary.Write(&b, binary.LittleEndian, uint32(3))
	b.Write([]byte{'a', 'b', 'c', 0})
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, declaredData)
	for _, f := range frames {
		binary.Write(&b, binary.LittleEndian, f[0])
		binary.Write(&b, binary.LittleEndian, f[1])
	}
	return b.Bytes()
}

func TestDecodeWAVDownmixesAndSkipsChunks(t *testing.T) {
	frames := [][2]int16{{100, 300}, {-50, -150}}
	for _, declared := range []uint32{8, 0xFFFFFFFF} {
		w, err := DecodeWAV(stereoWAV(frames, declared))
		if err != nil {
			t.Fatalf("declared %#x: %v", declared, err)
		}
		if w.SampleRate != 24000 || len(w.Samples) != 2 || w.Samples[0] != 200 || w.Samples[1] != -100 {
			t.Errorf("declared %#x: got %+v", declared, w)
		}
	}
}

func TestDecodeWAVRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("RIFF")},
		{"not riff", append([]byte("RIFX\x00\x00\x00\x00WAVE"), make([]byte, 8)...)},
		{"no data", []byte("RIFF\x00\x00\x00\x00WAVE")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeWAV(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestResample(t *testing.T) {
	in := Waveform{SampleRate: 24000, Samples: make([]int16, 24000)}
	for i := range in.Samples {
		in.Samples[i] = int16(i % 100)
	}
	out := Resample(in, 44100)
	if out.SampleRate != 44100 || len(out.Samples) != 44100 {
		t.Fatalf("got %d Hz, %d samples", out.SampleRate, len(out.Samples))
	}
	if math.Abs(out.Duration()-in.Duration()) > 1e-9 {
		t.Errorf("duration changed: %g -> %g", in.Duration(), out.Duration())
	}

	same := Resample(Waveform{SampleRate: 44100, Samples: []int16{1, 2}}, 44100)
	if len(same.Samples) != 2 {
		t.Error("same-rate resample should be a no-op")
	}
}

func TestAssemble(t *testing.T) {
	placements := []Placement{
		{Offset: 1, Samples: []int16{100, 100}},
		{Offset: 2, Samples: []int16{300, 300, 300, 300}},
	}
	got := Assemble(placements, 5)
	want := []int16{0, 50, 200, 150, 150}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAssembleClipsAndKeepsLength(t *testing.T) {
	got := Assemble([]Placement{{Offset: 0, Samples: []int16{math.MaxInt16, math.MinInt16}}}, 3)
	if len(got) != 3 || got[0] != math.MaxInt16 || got[1] != math.MinInt16 || got[2] != 0 {
		t.Errorf("got %v", got)
	}
	if got := Assemble(nil, 4); len(got) != 4 {
		t.Errorf("empty assembly length = %d", len(got))
	}
}

func TestSampleCountAndFit(t *testing.T) {
	if n := SampleCount(57, 44100); n != 2513700 {
		t.Errorf("SampleCount(57) = %d", n)
	}
	if n := SampleCount(5.3, 44100); n != 233730 {
		t.Errorf("SampleCount(5.3) = %d", n)
	}
	if got := Fit([]int16{1, 2, 3}, 2); len(got) != 2 {
		t.Errorf("truncate: %v", got)
	}
	if got := Fit([]int16{1}, 3); len(got) != 3 || got[0] != 1 || got[2] != 0 {
		t.Errorf("pad: %v", got)
	}
}

func TestAssembleFloatKeepsFractions(t *testing.T) {
	placements := []Placement{
		{Offset: 0, Samples: []int16{3, 3}},
		{Offset: 1, Samples: []int16{math.MaxInt16}},
	}
	got := AssembleFloat(placements, 3)
	want := []float64{1.5, 16385, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if v := float64(got[i]) * 32768; v != want[i] {
			t.Errorf("sample %d = %v, want %v", i, v, want[i])
		}
	}
}

func TestFloatWAVDecodesToInt16(t *testing.T) {
	placements := []Placement{{Offset: 0, Samples: []int16{0, 1000, -1000, math.MaxInt16, math.MinInt16}}}
	path := filepath.Join(t.TempDir(), "mix.wav")
	if err := WriteFloatFile(path, 44100, AssembleFloat(placements, 5)); err != nil {
		t.Fatal(err)
	}
	w, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Assemble(placements, 5)
	if w.SampleRate != 44100 || len(w.Samples) != len(want) {
		t.Fatalf("got %d Hz, %d samples", w.SampleRate, len(w.Samples))
	}
	for i := range want {
		if w.Samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, w.Samples[i], want[i])
		}
	}
}

func TestDecodeWAVExtensibleFloat(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(40))
	binary.Write(&b, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint32(24000))
	binary.Write(&b, binary.LittleEndian, uint32(24000*4))
	binary.Write(&b, binary.LittleEndian, uint16(4))
	binary.Write(&b, binary.LittleEndian, uint16(32))
	binary.Write(&b, binary.LittleEndian, uint16(22))
	binary.Write(&b, binary.LittleEndian, uint16(32))
	binary.Write(&b, binary.LittleEndian, uint32(4))
	binary.Write(&b, binary.LittleEndian, uint16(3)) // IEEE float sub-format
	b.Write(make([]byte, 14))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(8))
	binary.Write(&b, binary.LittleEndian, float32(0.5))
	binary.Write(&b, binary.LittleEndian, float32(-0.25))

	w, err := DecodeWAV(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Samples) != 2 || w.Samples[0] != 16384 || w.Samples[1] != -8192 {
		t.Errorf("got %+v", w)
	}
}
