package audio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultChunkInterval is the flush period of an Encoder
const DefaultChunkInterval = 250 * time.Millisecond

// EncoderConfig configures an Encoder
type EncoderConfig struct {
	Interval time.Duration
	Logger   zerolog.Logger
}

// Encoder turns a live capture into periodic, non-empty chunks.
// The output format is chosen once at creation.
type Encoder struct {
	handle   Handle
	format   Format
	interval time.Duration
	logger   zerolog.Logger

	chunks   chan []byte
	finalize chan struct{}
	abort    chan struct{}

	finalizeOnce sync.Once
	abortOnce    sync.Once

	// odd PCM byte held back for the next tick; owned by run
	carry []byte
}

// NewEncoder selects the output format for handle and starts emitting chunks
func NewEncoder(handle Handle, cfg EncoderConfig) (*Encoder, error) {
	format, err := SelectFormat(handle.Source())
	if err != nil {
		return nil, err
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultChunkInterval
	}

	e := &Encoder{
		handle:   handle,
		format:   format,
		interval: interval,
		logger:   cfg.Logger.With().Str("format", format.MimeType).Logger(),
		chunks:   make(chan []byte, 4),
		finalize: make(chan struct{}),
		abort:    make(chan struct{}),
	}

	e.logger.Debug().Dur("interval", interval).Msg("Chunk encoder started")
	go e.run()
	return e, nil
}

// Format returns the format chosen at creation
func (e *Encoder) Format() Format {
	return e.format
}

// Chunks returns the chunk sequence. It is closed after Finalize or Abort.
func (e *Encoder) Chunks() <-chan []byte {
	return e.chunks
}

// Finalize flushes buffered audio as a last chunk and ends the sequence. Idempotent.
func (e *Encoder) Finalize() {
	e.finalizeOnce.Do(func() { close(e.finalize) })
}

// Abort ends the sequence without flushing. Idempotent.
func (e *Encoder) Abort() {
	e.abortOnce.Do(func() { close(e.abort) })
}

func (e *Encoder) run() {
	defer close(e.chunks)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.abort:
			return
		case <-e.finalize:
			e.emit(e.encode(e.handle.Drain(), true))
			return
		case <-ticker.C:
			e.emit(e.encode(e.handle.Drain(), false))
		}
	}
}

func (e *Encoder) emit(chunk []byte) {
	if len(chunk) == 0 {
		e.logger.Debug().Msg("Dropping empty chunk")
		return
	}

	select {
	case e.chunks <- chunk:
	case <-e.abort:
	}
}

// encode converts drained capture bytes to the output format
func (e *Encoder) encode(data []byte, final bool) []byte {
	if !e.format.Raw {
		return data
	}

	if len(e.carry) > 0 {
		data = append(e.carry, data...)
		e.carry = nil
	}
	if len(data)%2 != 0 {
		if !final {
			e.carry = []byte{data[len(data)-1]}
		}
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil
	}

	if e.format.Encoding == FormatMulaw.Encoding {
		encoded, err := ConvertPCMToMulaw(data)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Failed to encode chunk")
			return nil
		}
		return encoded
	}
	return data
}
