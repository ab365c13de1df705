package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// WAV format tags
const (
	WAVFormatPCM   uint16 = 1
	WAVFormatMulaw uint16 = 7
)

const wavHeaderSize = 44

var errNotWAV = errors.New("not a valid WAV file")

// WAVHeader is the subset of a RIFF/WAVE header needed to interpret samples
type WAVHeader struct {
	Format        uint16
	Channels      int
	SampleRate    int
	BitsPerSample int

	// DataSize is the length of the data chunk; zero when unknown (streamed)
	DataSize int
}

// ByteRate returns bytes per second of audio
func (h WAVHeader) ByteRate() int {
	return h.SampleRate * h.Channels * h.BitsPerSample / 8
}

// Duration returns the playback length of n data bytes
func (h WAVHeader) Duration(n int) time.Duration {
	rate := h.ByteRate()
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

// IsWAV reports whether data begins with a RIFF/WAVE signature
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// ReadWAVHeader consumes a WAV header from r, leaving r positioned at the
// first sample of the data chunk. Chunks other than fmt and data are skipped.
func ReadWAVHeader(r io.Reader) (WAVHeader, error) {
	var header WAVHeader

	riff := make([]byte, 12)
	if _, err := io.ReadFull(r, riff); err != nil {
		return header, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if !IsWAV(riff) {
		return header, errNotWAV
	}

	sawFormat := false
	chunk := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, chunk); err != nil {
			return header, fmt.Errorf("failed to read WAV chunk: %w", err)
		}
		id := string(chunk[0:4])
		size := int(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return header, fmt.Errorf("WAV fmt chunk too short: %d bytes", size)
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return header, fmt.Errorf("failed to read WAV fmt chunk: %w", err)
			}
			header.Format = binary.LittleEndian.Uint16(body[0:2])
			header.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			header.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			header.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			sawFormat = true

		case "data":
			if !sawFormat {
				return header, fmt.Errorf("WAV data chunk before fmt chunk")
			}
			if size != 0 && uint32(size) != 0xFFFFFFFF {
				header.DataSize = size
			}
			return header, nil

		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return header, fmt.Errorf("failed to skip WAV %q chunk: %w", id, err)
			}
		}
	}
}

// WriteWAVHeader writes a canonical 44-byte header for dataSize bytes of samples
func WriteWAVHeader(w io.Writer, h WAVHeader, dataSize int) error {
	blockAlign := h.Channels * h.BitsPerSample / 8

	buf := make([]byte, wavHeaderSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], h.Format)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(h.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(h.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(h.ByteRate()))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(h.BitsPerSample))
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	_, err := w.Write(buf)
	return err
}
