package audio

import (
	"bytes"
	"testing"
	"time"
)

func TestRecording_PreservesChunkOrder(t *testing.T) {
	rec := NewRecording(FormatWebMOpus, Source{MimeType: "audio/webm"})
	chunks := [][]byte{[]byte("c1"), []byte("c2"), nil, []byte("c3")}
	for _, c := range chunks {
		rec.Append(c)
	}

	if rec.Len() != 3 {
		t.Errorf("Expected 3 chunks (empty ignored), got %d", rec.Len())
	}
	if !bytes.Equal(rec.Bytes(), []byte("c1c2c3")) {
		t.Errorf("Expected c1c2c3, got %q", rec.Bytes())
	}
	if rec.ContentType() != "audio/webm;codecs=opus" {
		t.Errorf("Unexpected content type %s", rec.ContentType())
	}
	if rec.Filename("primary") != "primary.webm" {
		t.Errorf("Unexpected filename %s", rec.Filename("primary"))
	}

	var out bytes.Buffer
	n, err := rec.WriteTo(&out)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != 6 || out.String() != "c1c2c3" {
		t.Errorf("Expected container passthrough, got %d bytes %q", n, out.String())
	}
}

func TestRecording_RawGetsWAVHeader(t *testing.T) {
	rec := NewRecording(FormatMulaw, Source{SampleRate: 8000, Channels: 1})
	rec.Append(bytes.Repeat([]byte{0xFF}, 4000))
	rec.Append(bytes.Repeat([]byte{0xFF}, 4000))

	if rec.ContentType() != "audio/wav" {
		t.Errorf("Expected audio/wav, got %s", rec.ContentType())
	}
	if rec.Duration() != time.Second {
		t.Errorf("Expected 1s μ-law recording, got %v", rec.Duration())
	}

	var out bytes.Buffer
	if _, err := rec.WriteTo(&out); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	header, err := ReadWAVHeader(&out)
	if err != nil {
		t.Fatalf("ReadWAVHeader failed: %v", err)
	}
	if header.Format != WAVFormatMulaw || header.BitsPerSample != 8 || header.DataSize != 8000 {
		t.Errorf("Unexpected header: %+v", header)
	}
	if out.Len() != 8000 {
		t.Errorf("Expected 8000 sample bytes after header, got %d", out.Len())
	}
}
