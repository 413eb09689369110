package conversion

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	fastModeSampleRate = 22050
	normalizePeak      = 0.8
	highPassAlpha      = 0.95

	// maxDecodedSamples caps the in-memory sample buffer at roughly 1 GiB
	// of float64 data.
	maxDecodedSamples = 128 * 1024 * 1024

	processBlockSize = 64 * 1024
)

type decodeError struct {
	kind    FailureKind
	message string
}

func (e *decodeError) Error() string { return e.message }

func asDecodeError(err error, target **decodeError) bool {
	return errors.As(err, target)
}

type decodedAudio struct {
	samples    []float64
	channels   int
	sampleRate int
}

// decodeWAV parses a RIFF/WAVE payload into interleaved float64 samples.
// Only 16-bit PCM is decoded; other format tags are codec failures and
// malformed headers are corruption failures.
func decodeWAV(payload []byte) (*decodedAudio, error) {
	if len(payload) < 12 || string(payload[0:4]) != "RIFF" || string(payload[8:12]) != "WAVE" {
		return nil, &decodeError{kind: FailureCorruption, message: "not a RIFF/WAVE payload"}
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bitsPer    uint16
		data       []byte
	)

	offset := 12
	for offset+8 <= len(payload) {
		chunkID := string(payload[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(payload[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(payload) {
			return nil, &decodeError{kind: FailureCorruption, message: fmt.Sprintf("truncated %q chunk", chunkID)}
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, &decodeError{kind: FailureCorruption, message: "fmt chunk too short"}
			}
			format = binary.LittleEndian.Uint16(payload[body : body+2])
			channels = int(binary.LittleEndian.Uint16(payload[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(payload[body+4 : body+8]))
			bitsPer = binary.LittleEndian.Uint16(payload[body+14 : body+16])
		case "data":
			data = payload[body : body+chunkSize]
		}

		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if channels == 0 || sampleRate == 0 || data == nil {
		return nil, &decodeError{kind: FailureCorruption, message: "missing fmt or data chunk"}
	}
	if format != 1 || bitsPer != 16 {
		return nil, &decodeError{kind: FailureCodec, message: fmt.Sprintf("unsupported encoding (format %d, %d-bit)", format, bitsPer)}
	}

	total := len(data) / 2
	if total > maxDecodedSamples {
		return nil, &decodeError{kind: FailureMemory, message: "decoded audio exceeds the in-memory processing limit"}
	}

	samples := make([]float64, total)
	for i := 0; i < total; i++ {
		raw := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		samples[i] = float64(raw) / 32768
	}

	return &decodedAudio{samples: samples, channels: channels, sampleRate: sampleRate}, nil
}

// processSamples applies the high-pass noise filter and peak normalization
// block by block, checking the context between blocks. On deadline the
// processed prefix is returned so the caller gets a partial encode instead
// of a hang.
func processSamples(ctx context.Context, samples []float64, channels int, opts Options) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)

	processed := len(out)
	if opts.NoiseReduction && !opts.FastMode {
		previous := make([]float64, channels)
		for start := 0; start < len(out); start += processBlockSize {
			if ctx.Err() != nil {
				processed = start
				break
			}
			end := start + processBlockSize
			if end > len(out) {
				end = len(out)
			}
			for i := start; i < end; i++ {
				ch := i % channels
				current := out[i]
				out[i] = highPassAlpha * (out[i] + previous[ch])
				previous[ch] = current
			}
		}
	}
	out = out[:processed]

	if opts.Normalize && ctx.Err() == nil {
		peak := 0.0
		for start := 0; start < len(out); start += processBlockSize {
			if ctx.Err() != nil {
				break
			}
			end := start + processBlockSize
			if end > len(out) {
				end = len(out)
			}
			for i := start; i < end; i++ {
				if abs := math.Abs(out[i]); abs > peak {
					peak = abs
				}
			}
		}
		if peak > 0 && ctx.Err() == nil {
			ratio := normalizePeak / peak
			for i := range out {
				out[i] *= ratio
			}
		}
	}

	return out
}

// resample converts interleaved samples between rates with linear
// interpolation per channel.
func resample(samples []float64, channels, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	framesIn := len(samples) / channels
	framesOut := int(float64(framesIn) * float64(toRate) / float64(fromRate))
	if framesOut < 1 {
		framesOut = 1
	}
	out := make([]float64, framesOut*channels)
	ratio := float64(framesIn-1) / float64(max(framesOut-1, 1))
	for frame := 0; frame < framesOut; frame++ {
		pos := float64(frame) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= framesIn {
			next = framesIn - 1
		}
		for ch := 0; ch < channels; ch++ {
			a := samples[idx*channels+ch]
			b := samples[next*channels+ch]
			out[frame*channels+ch] = a + (b-a)*frac
		}
	}
	return out
}

// encodeWAV writes interleaved float64 samples as 16-bit PCM.
func encodeWAV(samples []float64, channels, sampleRate int) ([]byte, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid channel count or sample rate")
	}

	dataSize := len(samples) * 2
	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(channels*2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))                    // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for _, sample := range samples {
		clamped := math.Max(-1, math.Min(1, sample))
		binary.Write(buf, binary.LittleEndian, int16(clamped*32767))
	}

	return buf.Bytes(), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
