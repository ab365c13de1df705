package interview

import (
	"context"
	"fmt"
	"sync"
	"time"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-assistant/internal/audio"
	"github.com/lexiqai/interview-assistant/internal/observability"
	"github.com/lexiqai/interview-assistant/internal/session"
	"github.com/lexiqai/interview-assistant/internal/speaker"
	"github.com/lexiqai/interview-assistant/internal/stt"
	"github.com/lexiqai/interview-assistant/internal/transcript"
)

// Listener receives interview events. Calls for one session arrive in order.
type Listener interface {
	Listening(s speaker.Speaker)
	TranscriptUpdated(s speaker.Speaker, state transcript.State, event stt.TranscriptEvent)
	Stopped(s speaker.Speaker, recording *audio.Recording)
	SessionFailed(s speaker.Speaker, err error)
}

// Action is the outcome of a toggle
type Action int

const (
	ActionIgnored Action = iota
	ActionStarted
	ActionStopped
)

func (a Action) String() string {
	switch a {
	case ActionStarted:
		return "started"
	case ActionStopped:
		return "stopped"
	default:
		return "ignored"
	}
}

// Config wires an interview to its microphone and recognition service
type Config struct {
	ID      string
	Device  audio.Device
	Dialer  stt.Dialer
	APIKey  string
	Options *interfaces.LiveTranscriptionOptions

	Constraints   audio.Constraints
	ChunkInterval time.Duration
	KeepAlive     time.Duration
	CloseWait     time.Duration

	// CaptureTimeout bounds waiting for microphone permission; zero waits until cancelled
	CaptureTimeout time.Duration

	Listener Listener
	Logger   zerolog.Logger
}

// Interview coordinates both speakers' sessions, transcripts and recordings
type Interview struct {
	id         string
	cfg        Config
	controller *Controller
	reconciler *transcript.Reconciler
	library    *Library
	logger     zerolog.Logger

	mu         sync.RWMutex
	recordings map[speaker.Speaker]*audio.Recording
}

// New creates an interview; an empty Config.ID gets a generated one
func New(cfg Config) *Interview {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.Listener == nil {
		cfg.Listener = nopListener{}
	}

	return &Interview{
		id:         cfg.ID,
		cfg:        cfg,
		controller: NewController(),
		reconciler: transcript.NewReconciler(),
		library:    NewLibrary(),
		logger:     cfg.Logger.With().Str("interview_id", cfg.ID).Logger(),
		recordings: make(map[speaker.Speaker]*audio.Recording),
	}
}

// ID returns the interview identifier
func (i *Interview) ID() string { return i.id }

// Library returns the uploaded recordings
func (i *Interview) Library() *Library { return i.library }

// Active returns the speaker currently holding the session slot
func (i *Interview) Active() (speaker.Speaker, bool) {
	return i.controller.Active()
}

// Start begins a session for s. While any speaker holds the slot the
// request is ignored: it returns false with no error and changes nothing.
func (i *Interview) Start(ctx context.Context, s speaker.Speaker) (bool, error) {
	if !s.Valid() {
		return false, fmt.Errorf("invalid speaker %q", s)
	}
	if !i.controller.TryAcquire(s) {
		observability.RecordSessionRejected(s.String())
		i.logger.Debug().Str("speaker", s.String()).Msg("Start ignored, another session is active")
		return false, nil
	}

	i.reconciler.Reset(s)
	i.mu.Lock()
	delete(i.recordings, s)
	i.mu.Unlock()

	if i.cfg.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.cfg.CaptureTimeout)
		defer cancel()
	}

	// OnError may only run once the session is attached
	var (
		sess  *session.Session
		ready = make(chan struct{})
	)

	started, err := session.Start(ctx, session.Params{
		Speaker:       s,
		Device:        i.cfg.Device,
		Dialer:        i.cfg.Dialer,
		APIKey:        i.cfg.APIKey,
		Options:       i.cfg.Options,
		Constraints:   i.cfg.Constraints,
		ChunkInterval: i.cfg.ChunkInterval,
		KeepAlive:     i.cfg.KeepAlive,
		CloseWait:     i.cfg.CloseWait,
		OnUpdate: func(event stt.TranscriptEvent) {
			state := i.reconciler.Apply(s, event)
			i.cfg.Listener.TranscriptUpdated(s, state, event)
		},
		OnError: func(err error) {
			<-ready
			if i.controller.Release(s, sess) {
				i.cfg.Listener.SessionFailed(s, err)
			}
		},
		Logger: i.logger,
	})
	if err != nil {
		i.controller.Release(s, nil)
		return false, err
	}

	sess = started
	i.controller.Attach(s, sess)
	close(ready)

	i.cfg.Listener.Listening(s)
	return true, nil
}

// Stop ends s's session and keeps its recording. A stop from a speaker that
// does not hold the slot returns nil and touches nothing.
func (i *Interview) Stop(ctx context.Context, s speaker.Speaker) (*audio.Recording, error) {
	sess, ok := i.controller.BeginStop(s)
	if !ok {
		return nil, nil
	}

	recording, err := sess.Stop(ctx)
	if !i.controller.Release(s, sess) {
		// The session failed while stopping and was already reported
		return nil, err
	}

	if recording != nil {
		i.mu.Lock()
		i.recordings[s] = recording
		i.mu.Unlock()
	}

	i.cfg.Listener.Stopped(s, recording)
	return recording, err
}

// Toggle stops s when it is active, starts it when nobody is, and ignores
// it while the other speaker is active
func (i *Interview) Toggle(ctx context.Context, s speaker.Speaker) (Action, error) {
	if active, held := i.controller.Active(); held {
		if active != s {
			observability.RecordSessionRejected(s.String())
			return ActionIgnored, nil
		}
		if _, err := i.Stop(ctx, s); err != nil {
			return ActionStopped, err
		}
		return ActionStopped, nil
	}

	started, err := i.Start(ctx, s)
	if err != nil || !started {
		return ActionIgnored, err
	}
	return ActionStarted, nil
}

// Transcript returns s's current transcript
func (i *Interview) Transcript(s speaker.Speaker) transcript.State {
	return i.reconciler.Snapshot(s)
}

// Recording returns s's last completed recording
func (i *Interview) Recording(s speaker.Speaker) *audio.Recording {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.recordings[s]
}

// Close stops whichever session is active
func (i *Interview) Close(ctx context.Context) {
	if active, held := i.controller.Active(); held {
		if _, err := i.Stop(ctx, active); err != nil {
			i.logger.Warn().Err(err).Msg("Failed to stop session on close")
		}
	}
}

type nopListener struct{}

func (nopListener) Listening(speaker.Speaker) {}
func (nopListener) TranscriptUpdated(speaker.Speaker, transcript.State, stt.TranscriptEvent) {}
func (nopListener) Stopped(speaker.Speaker, *audio.Recording) {}
func (nopListener) SessionFailed(speaker.Speaker, error) {}
