package audio

import (
	"bytes"
	"io"
	"time"
)

// Recording is the ordered chunk sequence of one session.
// It is appended to by a single owner and read-only once handed over.
type Recording struct {
	format     Format
	sampleRate int
	channels   int
	chunks     [][]byte
	size       int
}

// NewRecording creates an empty recording of chunks in format, captured from source
func NewRecording(format Format, source Source) *Recording {
	channels := source.Channels
	if channels <= 0 {
		channels = 1
	}
	return &Recording{
		format:     format,
		sampleRate: source.SampleRate,
		channels:   channels,
	}
}

// Append adds a chunk at the end; empty chunks are ignored
func (r *Recording) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	r.chunks = append(r.chunks, chunk)
	r.size += len(chunk)
}

// Chunks returns the chunks in capture order
func (r *Recording) Chunks() [][]byte {
	out := make([][]byte, len(r.chunks))
	copy(out, r.chunks)
	return out
}

// Len returns the number of chunks
func (r *Recording) Len() int { return len(r.chunks) }

// Size returns the total encoded byte count, excluding any file header
func (r *Recording) Size() int { return r.size }

// Format returns the chunk format
func (r *Recording) Format() Format { return r.format }

// Bytes returns the chunks concatenated
func (r *Recording) Bytes() []byte {
	return bytes.Join(r.chunks, nil)
}

// ContentType of the downloadable artifact. Raw encodings are served as WAV.
func (r *Recording) ContentType() string {
	if r.format.Raw {
		return "audio/wav"
	}
	return r.format.MimeType
}

// Filename returns base with the artifact's extension
func (r *Recording) Filename(base string) string {
	return base + "." + r.format.Extension
}

// Duration of a raw recording; zero for containers, whose length needs decoding
func (r *Recording) Duration() time.Duration {
	if !r.format.Raw {
		return 0
	}
	return r.wavHeader().Duration(r.size)
}

// WriteTo writes the playable artifact: raw encodings get a WAV header
func (r *Recording) WriteTo(w io.Writer) (int64, error) {
	var written int64

	if r.format.Raw {
		if err := WriteWAVHeader(w, r.wavHeader(), r.size); err != nil {
			return written, err
		}
		written += wavHeaderSize
	}

	for _, chunk := range r.chunks {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (r *Recording) wavHeader() WAVHeader {
	header := WAVHeader{
		Format:        WAVFormatPCM,
		Channels:      r.channels,
		SampleRate:    r.sampleRate,
		BitsPerSample: 16,
	}
	if r.format.Encoding == FormatMulaw.Encoding {
		header.Format = WAVFormatMulaw
		header.BitsPerSample = 8
	}
	return header
}
