package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-assistant/internal/audio"
	"github.com/lexiqai/interview-assistant/internal/observability"
	"github.com/lexiqai/interview-assistant/internal/speaker"
	"github.com/lexiqai/interview-assistant/internal/stt"
)

const (
	DefaultKeepAlive = 8 * time.Second
	DefaultCloseWait = 1500 * time.Millisecond
)

// State of a session's lifecycle
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateStreaming
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Params configures one session
type Params struct {
	Speaker speaker.Speaker
	Device  audio.Device
	Dialer  stt.Dialer
	APIKey  string

	// Options carries model and language; the session adds the audio layout
	Options *interfaces.LiveTranscriptionOptions

	Constraints   audio.Constraints
	ChunkInterval time.Duration
	KeepAlive     time.Duration
	CloseWait     time.Duration

	// OnUpdate receives every non-empty transcript event in arrival order
	OnUpdate func(stt.TranscriptEvent)

	// OnError is called at most once, when the session dies without Stop
	OnError func(error)

	Logger zerolog.Logger
}

type frame struct {
	data []byte
	err  error
}

type stopRequest struct {
	ctx   context.Context
	reply chan *audio.Recording
}

// Session is one capture and transcription lifecycle for one speaker.
// A single loop goroutine owns the connection writes, the recording and
// the callbacks, so events and chunks are handled one at a time, in order.
type Session struct {
	id      string
	speaker speaker.Speaker
	params  Params
	logger  zerolog.Logger
	metrics *observability.SessionMetrics
	state   atomic.Int32

	handle    audio.Handle
	conn      stt.Conn
	encoder   *audio.Encoder
	recording *audio.Recording

	frames chan frame
	stopCh chan stopRequest
	done   chan struct{}
}

// Start acquires the device, opens the recognition connection and begins
// streaming. ctx bounds acquisition and the handshake only; the session
// then runs until Stop or a failure. Every failure releases what was acquired.
func Start(ctx context.Context, p Params) (*Session, error) {
	if p.APIKey == "" {
		return nil, stt.ErrConfiguration
	}
	if !p.Speaker.Valid() {
		return nil, fmt.Errorf("invalid speaker %q", p.Speaker)
	}
	applyDefaults(&p)

	s := &Session{
		id:      uuid.New().String(),
		speaker: p.Speaker,
		params:  p,
		metrics: observability.NewSessionMetrics(p.Speaker.String()),
		frames:  make(chan frame, 16),
		stopCh:  make(chan stopRequest),
		done:    make(chan struct{}),
	}
	s.logger = p.Logger.With().
		Str("session_id", s.id).
		Str("speaker", p.Speaker.String()).
		Logger()
	s.setState(StateStarting)

	handle, err := p.Device.Acquire(ctx, p.Constraints)
	if err != nil {
		s.abortStart("device_unavailable", err)
		return nil, err
	}
	s.handle = handle

	source := handle.Source()
	format, err := audio.SelectFormat(source)
	if err != nil {
		handle.Release()
		s.abortStart("unsupported_format", err)
		return nil, err
	}

	connectStarted := time.Now()
	conn, err := p.Dialer.Dial(ctx, p.APIKey, liveOptions(p.Options, format, source))
	if err != nil {
		handle.Release()
		if !errors.Is(err, stt.ErrConnection) && !errors.Is(err, stt.ErrConfiguration) {
			err = fmt.Errorf("%w: %v", stt.ErrConnection, err)
		}
		s.abortStart("connection_failed", err)
		return nil, err
	}
	s.conn = conn

	// The encoder only exists once the connection is open
	encoder, err := audio.NewEncoder(handle, audio.EncoderConfig{
		Interval: p.ChunkInterval,
		Logger:   s.logger,
	})
	if err != nil {
		conn.Close()
		handle.Release()
		s.abortStart("unsupported_format", err)
		return nil, err
	}
	s.encoder = encoder
	s.recording = audio.NewRecording(encoder.Format(), source)

	s.setState(StateStreaming)
	s.metrics.RecordStreaming(connectStarted)
	s.logger.Info().
		Str("format", encoder.Format().MimeType).
		Dur("connect_latency", time.Since(connectStarted)).
		Msg("Transcription session streaming")

	go s.readLoop()
	go s.loop()
	return s, nil
}

func applyDefaults(p *Params) {
	if p.Constraints == (audio.Constraints{}) {
		p.Constraints = audio.DefaultConstraints()
	}
	if p.ChunkInterval <= 0 {
		p.ChunkInterval = audio.DefaultChunkInterval
	}
	if p.KeepAlive <= 0 {
		p.KeepAlive = DefaultKeepAlive
	}
	if p.CloseWait <= 0 {
		p.CloseWait = DefaultCloseWait
	}
}

// liveOptions copies base and fills in the audio layout for raw encodings
func liveOptions(base *interfaces.LiveTranscriptionOptions, format audio.Format, source audio.Source) *interfaces.LiveTranscriptionOptions {
	var opts *interfaces.LiveTranscriptionOptions
	if base != nil {
		copied := *base
		opts = &copied
	} else {
		opts = stt.NewLiveOptions("nova-2", "en-US", "", 0, 0)
	}
	opts.SmartFormat = true
	opts.Punctuate = true
	opts.InterimResults = true

	opts.Encoding = format.Encoding
	opts.SampleRate = 0
	opts.Channels = 0
	if format.Raw {
		opts.SampleRate = source.SampleRate
		opts.Channels = source.Channels
		if opts.Channels <= 0 {
			opts.Channels = 1
		}
	}
	return opts
}

func (s *Session) abortStart(outcome string, err error) {
	s.setState(StateIdle)
	s.metrics.RecordEnd(outcome)
	observability.RecordError(outcome, "session")
	s.logger.Warn().Err(err).Msg("Transcription session failed to start")
}

// ID returns the session identifier used in logs
func (s *Session) ID() string { return s.id }

// Speaker returns the owning speaker
func (s *Session) Speaker() speaker.Speaker { return s.speaker }

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Done is closed when the session has fully shut down
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stop finalizes the encoder, closes the connection after trailing results
// and releases the device. It returns the recording, or nil when no chunk was
// produced. Stopping a session that is not streaming returns nil immediately.
func (s *Session) Stop(ctx context.Context) (*audio.Recording, error) {
	if s == nil {
		return nil, nil
	}

	req := stopRequest{ctx: ctx, reply: make(chan *audio.Recording, 1)}
	select {
	case s.stopCh <- req:
	case <-s.done:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// shutdown is bounded by CloseWait and ctx
	return <-req.reply, nil
}

// readLoop hands inbound frames to the session loop
func (s *Session) readLoop() {
	for {
		data, err := s.conn.ReadMessage()
		select {
		case s.frames <- frame{data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) loop() {
	defer close(s.done)

	keepAlive := time.NewTimer(s.params.KeepAlive)
	defer keepAlive.Stop()

	chunks := s.encoder.Chunks()
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			s.forward(chunk)
			resetTimer(keepAlive, s.params.KeepAlive)

		case f := <-s.frames:
			if f.err != nil {
				s.fail(fmt.Errorf("%w: %v", stt.ErrConnection, f.err))
				return
			}
			s.handleFrame(f.data)

		case <-s.handle.Done():
			err := s.handle.Err()
			if err == nil {
				err = audio.ErrCaptureLost
			}
			s.fail(err)
			return

		case <-keepAlive.C:
			if err := s.conn.WriteControl(stt.ControlKeepAlive); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to send keep-alive")
			} else {
				s.logger.Debug().Msg("Sent keep-alive")
			}
			keepAlive.Reset(s.params.KeepAlive)

		case req := <-s.stopCh:
			req.reply <- s.shutdown(req.ctx)
			return
		}
	}
}

// forward sends a chunk then records it. A failed send is not fatal.
func (s *Session) forward(chunk []byte) {
	err := s.conn.WriteAudio(chunk)
	if err != nil {
		s.logger.Warn().Err(err).Int("bytes", len(chunk)).Msg("Failed to send audio chunk")
	}
	s.metrics.RecordChunk(len(chunk), err == nil)
	s.recording.Append(chunk)
}

func (s *Session) handleFrame(data []byte) {
	msg, err := stt.ParseMessage(data)
	if err != nil {
		s.metrics.RecordMalformed()
		s.logger.Warn().Err(err).Msg("Dropping malformed recognition message")
		return
	}

	switch msg.Kind {
	case stt.KindResults:
		event, _ := msg.Event()
		if event.Text == "" {
			return
		}
		s.metrics.RecordTranscript(event.IsFinal)
		s.logger.Debug().
			Bool("is_final", event.IsFinal).
			Float64("confidence", event.Confidence).
			Str("text", event.Text).
			Msg("Transcript event")
		if s.params.OnUpdate != nil {
			s.params.OnUpdate(event)
		}

	default:
		if msg.Type == "Error" {
			s.logger.Warn().Str("description", msg.Description).Msg("Recognition service reported an error")
			return
		}
		s.logger.Debug().Str("type", msg.Type).Msg("Recognition message")
	}
}

// shutdown is the graceful Streaming → Stopping → Idle path
func (s *Session) shutdown(ctx context.Context) *audio.Recording {
	s.setState(StateStopping)
	s.logger.Info().Msg("Stopping transcription session")

	s.encoder.Finalize()
	for chunk := range s.encoder.Chunks() {
		s.forward(chunk)
	}

	if err := s.conn.WriteControl(stt.ControlCloseStream); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send close stream")
	}

	wait := time.NewTimer(s.params.CloseWait)
	defer wait.Stop()

drain:
	for {
		select {
		case f := <-s.frames:
			if f.err != nil {
				if !stt.IsNormalClose(f.err) {
					s.logger.Debug().Err(f.err).Msg("Connection ended during stop")
				}
				break drain
			}
			s.handleFrame(f.data)
		case <-wait.C:
			break drain
		case <-ctx.Done():
			break drain
		}
	}

	s.conn.Close()
	s.handle.Release()
	s.setState(StateIdle)
	s.metrics.RecordEnd("stopped")

	recording := s.recording
	s.recording = nil
	s.logger.Info().
		Int("chunks", recording.Len()).
		Int("bytes", recording.Size()).
		Msg("Transcription session stopped")

	if recording.Len() == 0 {
		return nil
	}
	return recording
}

// fail is the Streaming → Idle path: full cleanup, chunks discarded, one report
func (s *Session) fail(err error) {
	s.setState(StateIdle)

	s.encoder.Abort()
	s.conn.Close()
	s.handle.Release()
	s.recording = nil

	s.metrics.RecordEnd("failed")
	observability.RecordError("session_failed", "session")
	s.logger.Error().Err(err).Msg("Transcription session failed")

	if s.params.OnError != nil {
		s.params.OnError(err)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
