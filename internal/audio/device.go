package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-assistant/internal/observability"
)

var (
	// ErrDeviceUnavailable is returned when permission is denied, no input
	// exists or the device is already held
	ErrDeviceUnavailable = errors.New("audio input device unavailable")

	// ErrNoSupportedFormat is returned when the capture cannot be encoded to any known format
	ErrNoSupportedFormat = errors.New("no supported audio format")

	// ErrCaptureLost is reported by a handle whose capture ended without a release
	ErrCaptureLost = errors.New("audio capture lost")
)

// Constraints are the fixed capture parameters requested from a device
type Constraints struct {
	Channels         int  `json:"channelCount"`
	EchoCancellation bool `json:"echoCancellation"`
	NoiseSuppression bool `json:"noiseSuppression"`
	AutoGainControl  bool `json:"autoGainControl"`
	SampleRate       int  `json:"sampleRate"`
}

// DefaultConstraints returns mono 16kHz capture with voice processing enabled
func DefaultConstraints() Constraints {
	return Constraints{
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       16000,
	}
}

// Source describes what a live capture produces
type Source struct {
	// MimeType of the container the capture already encodes to; empty for raw PCM
	MimeType   string
	SampleRate int
	Channels   int
}

// IsPCM reports whether the capture yields 16-bit little-endian PCM
func (s Source) IsPCM() bool {
	return IsPCMMimeType(s.MimeType)
}

// Supports reports whether captured bytes can be encoded to f.
// PCM can be transcoded to any raw format; a container passes through only as itself.
func (s Source) Supports(f Format) bool {
	if s.IsPCM() {
		return f.Raw
	}
	return !f.Raw && sameContainer(f.MimeType, s.MimeType)
}

// Device grants exclusive access to an audio input
type Device interface {
	// Acquire may block until the user answers a permission prompt; it honours ctx
	Acquire(ctx context.Context, c Constraints) (Handle, error)
}

// Handle is one live capture. Release is idempotent.
type Handle interface {
	Source() Source

	// Drain returns the bytes captured since the previous call, nil if none
	Drain() []byte

	// Done is closed when the capture ends, by release or failure
	Done() <-chan struct{}

	// Err returns the failure that ended the capture, nil otherwise
	Err() error

	Release()
}

// captureHandle buffers captured bytes between drains
type captureHandle struct {
	source    Source
	buffer    *RingBuffer
	done      chan struct{}
	onRelease func()
	logger    zerolog.Logger

	mu       sync.Mutex
	err      error
	ended    bool
	released bool
}

func newCaptureHandle(source Source, bufferSize int, logger zerolog.Logger, onRelease func()) *captureHandle {
	return &captureHandle{
		source:    source,
		buffer:    NewRingBuffer(bufferSize),
		done:      make(chan struct{}),
		onRelease: onRelease,
		logger:    logger,
	}
}

func (h *captureHandle) Source() Source { return h.source }

func (h *captureHandle) Drain() []byte { return h.buffer.Drain() }

func (h *captureHandle) Done() <-chan struct{} { return h.done }

func (h *captureHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// write appends captured bytes; overflow is dropped, never blocks the producer
func (h *captureHandle) write(data []byte) {
	if len(data) == 0 {
		return
	}

	written := h.buffer.Write(data)
	dropped := len(data) - written
	observability.RecordCapturedBytes(written, dropped)
	if dropped > 0 {
		h.logger.Warn().
			Int("dropped_bytes", dropped).
			Msg("Capture buffer full, dropping audio")
	}
}

// fail ends the capture with err unless it already ended
func (h *captureHandle) fail(err error) {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return
	}
	h.ended = true
	h.err = err
	h.mu.Unlock()

	close(h.done)
}

func (h *captureHandle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	alreadyEnded := h.ended
	h.ended = true
	h.mu.Unlock()

	if !alreadyEnded {
		close(h.done)
	}
	h.buffer.Clear()
	if h.onRelease != nil {
		h.onRelease()
	}
}

func (h *captureHandle) isReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
