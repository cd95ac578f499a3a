package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	Format        int
	Channels      int
	SampleRate    int
	BitsPerSample int
	Data          []byte
}

// parseWAV walks the RIFF chunks of a WAV file and returns the fmt fields
// plus the data payload. A data chunk whose declared size runs past the end
// of the buffer, as streamed responses often have, is cut at the buffer end.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 {
		return wavInfo{}, errors.New("wav: too short to be a RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return wavInfo{}, errors.New("wav: missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("wav: missing WAVE identifier")
	}

	var info wavInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(wav) {
				return wavInfo{}, errors.New("wav: truncated fmt chunk")
			}
			f := wav[offset+8:]
			info.Format = int(binary.LittleEndian.Uint16(f[0:2]))
			info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(f[14:16]))
			// WAVE_FORMAT_EXTENSIBLE carries the real format in the first
			// two bytes of the sub-format GUID.
			if info.Format == formatExtensible && chunkSize >= 40 && offset+8+40 <= len(wav) {
				info.Format = int(binary.LittleEndian.Uint16(f[24:26]))
			}
			foundFmt = true
		case "data":
			if !foundFmt {
				return wavInfo{}, errors.New("wav: data chunk before fmt chunk")
			}
			end := offset + 8 + chunkSize
			if end > len(wav) || end < offset {
				end = len(wav)
			}
			info.Data = wav[offset+8 : end]
			return info, nil
		}

		// Chunks are word-aligned.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("wav: missing data chunk")
}

// DecodeWAV reads 16-bit PCM or 32-bit float WAV data. Multi-channel audio
// is downmixed to mono by averaging.
func DecodeWAV(data []byte) (Waveform, error) {
	info, err := parseWAV(data)
	if err != nil {
		return Waveform{}, err
	}
	if info.Channels < 1 || info.SampleRate <= 0 {
		return Waveform{}, fmt.Errorf("wav: bad header (%d channels, %d Hz)", info.Channels, info.SampleRate)
	}

	// sample returns one channel value in int16 units.
	var sample func(b []byte) float64
	switch info.Format {
	case formatPCM, formatExtensible:
		if info.BitsPerSample != 16 {
			return Waveform{}, fmt.Errorf("wav: unsupported sample width %d bits", info.BitsPerSample)
		}
		if info.Channels == 1 {
			return FromPCM16LE(info.Data, info.SampleRate), nil
		}
		sample = func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) }
	case formatFloat:
		if info.BitsPerSample != 32 {
			return Waveform{}, fmt.Errorf("wav: unsupported float width %d bits", info.BitsPerSample)
		}
		sample = func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) * fullScale
		}
	default:
		return Waveform{}, fmt.Errorf("wav: unsupported format tag %#x", info.Format)
	}

	width := info.BitsPerSample / 8
	frameBytes := width * info.Channels
	frames := len(info.Data) / frameBytes
	samples := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < info.Channels; c++ {
			sum += sample(info.Data[i*frameBytes+c*width:])
		}
		samples[i] = clip16(math.Round(sum / float64(info.Channels)))
	}
	return Waveform{SampleRate: info.SampleRate, Samples: samples}, nil
}

// wavHeader builds a canonical 44-byte mono header.
func wavHeader(format, rate, bits, dataLen int) []byte {
	block := bits / 8
	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, uint32(36+dataLen))
	hdr.WriteString("WAVE")
	hdr.WriteString("fmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))
	binary.Write(&hdr, binary.LittleEndian, uint16(format))
	binary.Write(&hdr, binary.LittleEndian, uint16(1))
	binary.Write(&hdr, binary.LittleEndian, uint32(rate))
	binary.Write(&hdr, binary.LittleEndian, uint32(rate*block))
	binary.Write(&hdr, binary.LittleEndian, uint16(block))
	binary.Write(&hdr, binary.LittleEndian, uint16(bits))
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, uint32(dataLen))
	return hdr.Bytes()
}

// EncodeWAV writes w as a mono s16 WAV.
func EncodeWAV(out io.Writer, w Waveform) error {
	if _, err := out.Write(wavHeader(formatPCM, w.SampleRate, 16, len(w.Samples)*2)); err != nil {
		return err
	}
	_, err := out.Write(w.PCM16LE())
	return err
}

// EncodeFloatWAV writes samples in [-1, 1] as a mono 32-bit float WAV.
func EncodeFloatWAV(out io.Writer, rate int, samples []float32) error {
	if _, err := out.Write(wavHeader(formatFloat, rate, 32, len(samples)*4)); err != nil {
		return err
	}
	data := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	_, err := out.Write(data)
	return err
}

func ReadFile(path string) (Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, err
	}
	w, err := DecodeWAV(data)
	if err != nil {
		return Waveform{}, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

func WriteFile(path string, w Waveform) error {
	var buf bytes.Buffer
	if err := EncodeWAV(&buf, w); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func WriteFloatFile(path string, rate int, samples []float32) error {
	var buf bytes.Buffer
	if err := EncodeFloatWAV(&buf, rate, samples); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
