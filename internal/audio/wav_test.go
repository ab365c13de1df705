package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestWAVHeader_WriteRead(t *testing.T) {
	header := WAVHeader{Format: WAVFormatPCM, Channels: 1, SampleRate: 16000, BitsPerSample: 16}

	var buf bytes.Buffer
	if err := WriteWAVHeader(&buf, header, 32000); err != nil {
		t.Fatalf("WriteWAVHeader failed: %v", err)
	}
	if buf.Len() != wavHeaderSize {
		t.Fatalf("Expected %d header bytes, got %d", wavHeaderSize, buf.Len())
	}
	if !IsWAV(buf.Bytes()) {
		t.Error("Expected written header to be detected as WAV")
	}

	got, err := ReadWAVHeader(&buf)
	if err != nil {
		t.Fatalf("ReadWAVHeader failed: %v", err)
	}
	if got.SampleRate != 16000 || got.Channels != 1 || got.BitsPerSample != 16 || got.DataSize != 32000 {
		t.Errorf("Unexpected header: %+v", got)
	}
	if got.Duration(got.DataSize) != time.Second {
		t.Errorf("Expected 1s duration, got %v", got.Duration(got.DataSize))
	}
}

func TestReadWAVHeader_SkipsUnknownChunks(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, WAVFormatPCM)
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint32(8000))
	binary.Write(&buf, binary.LittleEndian, uint32(32000))
	binary.Write(&buf, binary.LittleEndian, uint16(4))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{1, 2, 3, 0})

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(4))
	buf.Write([]byte{9, 9, 9, 9})

	header, err := ReadWAVHeader(&buf)
	if err != nil {
		t.Fatalf("ReadWAVHeader failed: %v", err)
	}
	if header.Channels != 2 || header.SampleRate != 8000 || header.DataSize != 4 {
		t.Errorf("Unexpected header: %+v", header)
	}
	if !bytes.Equal(buf.Bytes(), []byte{9, 9, 9, 9}) {
		t.Errorf("Expected reader positioned at samples, remaining %v", buf.Bytes())
	}
}

func TestReadWAVHeader_NotWAV(t *testing.T) {
	_, err := ReadWAVHeader(bytes.NewReader([]byte("OggS0000000000000000")))
	if err == nil {
		t.Error("Expected error for non-WAV data")
	}
}
