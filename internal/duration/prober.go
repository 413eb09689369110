package duration

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errUnsupportedContainer = errors.New("unsupported container")

// ContainerProber reads duration metadata from WAV and MP4-family container
// headers. Containers it cannot parse return an error so the caller falls
// back to the size heuristic.
type ContainerProber struct{}

// NewContainerProber returns the built-in header prober.
func NewContainerProber() *ContainerProber {
	return &ContainerProber{}
}

// Probe inspects the container header and returns the media duration in
// seconds. The reader is rewound before parsing.
func (p *ContainerProber) Probe(ctx context.Context, media io.ReadSeeker, contentType string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if _, err := media.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind media: %w", err)
	}

	magic := make([]byte, 12)
	if _, err := io.ReadFull(media, magic); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if _, err := media.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind media: %w", err)
	}

	switch {
	case string(magic[0:4]) == "RIFF" && string(magic[8:12]) == "WAVE":
		return parseWAVDuration(media)
	case string(magic[4:8]) == "ftyp":
		return parseMP4Duration(media)
	}
	if strings.HasPrefix(contentType, "audio/wav") || strings.HasPrefix(contentType, "audio/wave") {
		return 0, fmt.Errorf("declared WAV but no RIFF header")
	}
	return 0, errUnsupportedContainer
}

// parseWAVDuration walks RIFF chunks for the fmt byte rate and the data
// chunk size. Duration is data bytes over byte rate.
func parseWAVDuration(r io.ReadSeeker) (float64, error) {
	if _, err := r.Seek(12, io.SeekStart); err != nil {
		return 0, err
	}

	var byteRate uint32
	var dataSize uint32
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			break
		}
		chunkID := string(header[0:4])
		chunkSize := binary.LittleEndian.Uint32(header[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return 0, fmt.Errorf("fmt chunk too short: %d", chunkSize)
			}
			fmtBody := make([]byte, 16)
			if _, err := io.ReadFull(r, fmtBody); err != nil {
				return 0, fmt.Errorf("read fmt chunk: %w", err)
			}
			byteRate = binary.LittleEndian.Uint32(fmtBody[8:12])
			if chunkSize > 16 {
				if _, err := r.Seek(int64(chunkSize-16), io.SeekCurrent); err != nil {
					return 0, err
				}
			}
		case "data":
			dataSize = chunkSize
			if _, err := r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return 0, err
			}
		default:
			if _, err := r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return 0, err
			}
		}
		// Chunks are word-aligned.
		if chunkSize%2 == 1 {
			if _, err := r.Seek(1, io.SeekCurrent); err != nil {
				break
			}
		}
		if byteRate > 0 && dataSize > 0 {
			break
		}
	}

	if byteRate == 0 || dataSize == 0 {
		return 0, fmt.Errorf("missing fmt or data chunk")
	}
	return float64(dataSize) / float64(byteRate), nil
}

// parseMP4Duration walks top-level boxes for moov/mvhd and reads timescale
// plus duration. Handles both version 0 and version 1 movie headers.
func parseMP4Duration(r io.ReadSeeker) (float64, error) {
	for {
		size, boxType, headerLen, err := readBoxHeader(r)
		if err != nil {
			return 0, fmt.Errorf("mvhd not found")
		}
		if boxType == "moov" {
			return parseMoov(r, size-headerLen)
		}
		if _, err := r.Seek(size-headerLen, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
}

func parseMoov(r io.ReadSeeker, remaining int64) (float64, error) {
	for remaining > 0 {
		size, boxType, headerLen, err := readBoxHeader(r)
		if err != nil {
			return 0, err
		}
		if boxType == "mvhd" {
			return parseMvhd(r)
		}
		if _, err := r.Seek(size-headerLen, io.SeekCurrent); err != nil {
			return 0, err
		}
		remaining -= size
	}
	return 0, fmt.Errorf("mvhd not found in moov")
}

func parseMvhd(r io.Reader) (float64, error) {
	versionFlags := make([]byte, 4)
	if _, err := io.ReadFull(r, versionFlags); err != nil {
		return 0, err
	}

	switch versionFlags[0] {
	case 0:
		body := make([]byte, 16)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, err
		}
		timescale := binary.BigEndian.Uint32(body[8:12])
		mediaDuration := binary.BigEndian.Uint32(body[12:16])
		if timescale == 0 {
			return 0, fmt.Errorf("zero timescale")
		}
		return float64(mediaDuration) / float64(timescale), nil
	case 1:
		body := make([]byte, 28)
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, err
		}
		timescale := binary.BigEndian.Uint32(body[16:20])
		mediaDuration := binary.BigEndian.Uint64(body[20:28])
		if timescale == 0 {
			return 0, fmt.Errorf("zero timescale")
		}
		return float64(mediaDuration) / float64(timescale), nil
	default:
		return 0, fmt.Errorf("unknown mvhd version %d", versionFlags[0])
	}
}

func readBoxHeader(r io.ReadSeeker) (size int64, boxType string, headerLen int64, err error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, "", 0, err
	}
	size = int64(binary.BigEndian.Uint32(header[0:4]))
	boxType = string(header[4:8])
	headerLen = 8
	if size == 1 {
		large := make([]byte, 8)
		if _, err := io.ReadFull(r, large); err != nil {
			return 0, "", 0, err
		}
		size = int64(binary.BigEndian.Uint64(large))
		headerLen = 16
	}
	if size < headerLen {
		return 0, "", 0, fmt.Errorf("invalid box size %d", size)
	}
	return size, boxType, headerLen, nil
}
