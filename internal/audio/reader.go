package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultFrameInterval = 20 * time.Millisecond

// ReaderOptions configures a ReaderDevice
type ReaderOptions struct {
	// FrameInterval paces reads to real time; each tick delivers this much audio
	FrameInterval time.Duration

	// SampleRate of headerless input; ignored when a WAV header is present
	SampleRate int

	BufferSize int
	Logger     zerolog.Logger
}

// ReaderDevice plays 16-bit PCM (optionally WAV-wrapped) or μ-law WAV from
// an io.Reader as if it were a microphone. It can be acquired once.
type ReaderDevice struct {
	reader   *bufio.Reader
	opts     ReaderOptions
	finished chan struct{}

	mu       sync.Mutex
	acquired bool
}

// NewReaderDevice creates a device reading from r
func NewReaderDevice(r io.Reader, opts ReaderOptions) *ReaderDevice {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaultFrameInterval
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256 * 1024
	}
	return &ReaderDevice{
		reader:   bufio.NewReader(r),
		opts:     opts,
		finished: make(chan struct{}),
	}
}

// Finished is closed once the reader is exhausted and all audio was buffered
func (d *ReaderDevice) Finished() <-chan struct{} {
	return d.finished
}

// Acquire starts playback converted to c's sample rate and channel count
func (d *ReaderDevice) Acquire(ctx context.Context, c Constraints) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquired {
		return nil, fmt.Errorf("%w: reader already consumed", ErrDeviceUnavailable)
	}

	input := WAVHeader{
		Format:        WAVFormatPCM,
		Channels:      1,
		SampleRate:    d.opts.SampleRate,
		BitsPerSample: 16,
	}
	if input.SampleRate <= 0 {
		input.SampleRate = c.SampleRate
	}

	if peek, err := d.reader.Peek(12); err == nil && IsWAV(peek) {
		header, err := ReadWAVHeader(d.reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		pcm := header.Format == WAVFormatPCM && header.BitsPerSample == 16
		mulaw := header.Format == WAVFormatMulaw && header.BitsPerSample == 8
		if !pcm && !mulaw {
			return nil, fmt.Errorf("%w: only 16-bit PCM or μ-law WAV input is supported", ErrDeviceUnavailable)
		}
		input = header
	}
	if input.Channels <= 0 || input.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid input format", ErrDeviceUnavailable)
	}

	d.acquired = true

	channels := c.Channels
	if channels <= 0 {
		channels = 1
	}
	source := Source{SampleRate: c.SampleRate, Channels: 1}
	handle := newCaptureHandle(source, d.opts.BufferSize, d.opts.Logger, nil)

	d.opts.Logger.Info().
		Int("input_sample_rate", input.SampleRate).
		Int("input_channels", input.Channels).
		Int("sample_rate", c.SampleRate).
		Int("requested_channels", channels).
		Msg("Reader capture started")

	go d.pump(handle, input, c.SampleRate)
	return handle, nil
}

// pump reads one frame per tick until EOF or release
func (d *ReaderDevice) pump(handle *captureHandle, input WAVHeader, outputRate int) {
	frameBytes := input.ByteRate() * int(d.opts.FrameInterval) / int(time.Second)
	blockAlign := input.Channels * input.BitsPerSample / 8
	frameBytes -= frameBytes % blockAlign
	if frameBytes < blockAlign {
		frameBytes = blockAlign
	}

	ticker := time.NewTicker(d.opts.FrameInterval)
	defer ticker.Stop()

	frame := make([]byte, frameBytes)
	for {
		select {
		case <-handle.Done():
			return
		case <-ticker.C:
		}

		n, err := io.ReadFull(d.reader, frame)
		if n > 0 {
			block := frame[:n-n%blockAlign]
			if input.Format == WAVFormatMulaw {
				if pcm, err := ConvertMulawToPCM(block); err == nil {
					block = pcm
				}
			}
			samples := DecodePCM16(block)
			samples = Downmix(samples, input.Channels)
			samples = Resample(samples, input.SampleRate, outputRate)
			handle.write(EncodePCM16(samples))
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			close(d.finished)
			return
		}
		if err != nil {
			handle.fail(fmt.Errorf("%w: %v", ErrCaptureLost, err))
			return
		}
	}
}
