package transcript

import (
	"strings"
	"sync"

	"github.com/lexiqai/interview-assistant/internal/speaker"
	"github.com/lexiqai/interview-assistant/internal/stt"
)

// State is one speaker's running transcript.
// Displayed always starts with Committed.
type State struct {
	// Committed is the finalized text, space-joined in arrival order
	Committed string `json:"committed"`

	// Displayed is Committed plus the pending interim fragment, if any
	Displayed string `json:"displayed"`
}

// Reconciler merges interim and final fragments into stable text per speaker.
// It is the only writer of transcript state.
type Reconciler struct {
	mu     sync.Mutex
	states map[speaker.Speaker]State
}

// NewReconciler creates a reconciler with empty transcripts
func NewReconciler() *Reconciler {
	return &Reconciler{states: make(map[speaker.Speaker]State)}
}

// Apply folds one event into s's transcript and returns the new state.
// Each final fragment is appended exactly once; interim fragments never
// touch Committed.
func (r *Reconciler) Apply(s speaker.Speaker, event stt.TranscriptEvent) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.states[s]
	// Both kinds are trimmed so the joining space is the only separator.
	// A blank interim shows Committed alone.
	text := strings.TrimSpace(event.Text)

	if event.IsFinal {
		if text == "" {
			return state
		}
		state.Committed = join(state.Committed, text)
		state.Displayed = state.Committed
	} else {
		state.Displayed = join(state.Committed, text)
	}

	r.states[s] = state
	return state
}

// Reset clears s's transcript, as at session start
func (r *Reconciler) Reset(s speaker.Speaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, s)
}

// Snapshot returns s's current transcript
func (r *Reconciler) Snapshot(s speaker.Speaker) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[s]
}

func join(committed, fragment string) string {
	switch {
	case fragment == "":
		return committed
	case committed == "":
		return fragment
	default:
		return committed + " " + fragment
	}
}
