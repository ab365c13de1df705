package interview

import (
	"sync"

	"github.com/lexiqai/interview-assistant/internal/session"
	"github.com/lexiqai/interview-assistant/internal/speaker"
)

// Controller holds the single session slot shared by both speakers.
// A reservation covers the Starting window before a session exists.
type Controller struct {
	mu       sync.Mutex
	held     bool
	holder   speaker.Speaker
	session  *session.Session
	stopping bool
}

// NewController creates an empty slot
func NewController() *Controller {
	return &Controller{}
}

// TryAcquire reserves the slot for s. It fails, without side effects,
// while any speaker holds it.
func (c *Controller) TryAcquire(s speaker.Speaker) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held {
		return false
	}
	c.held = true
	c.holder = s
	c.session = nil
	c.stopping = false
	return true
}

// Attach binds the started session to s's reservation
func (c *Controller) Attach(s speaker.Speaker, sess *session.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.held || c.holder != s || c.session != nil {
		return false
	}
	c.session = sess
	return true
}

// BeginStop hands s's running session to exactly one stopper
func (c *Controller) BeginStop(s speaker.Speaker) (*session.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.held || c.holder != s || c.session == nil || c.stopping {
		return nil, false
	}
	c.stopping = true
	return c.session, true
}

// Release frees the slot if s holds it with sess. A nil sess releases a
// reservation whose session never started.
func (c *Controller) Release(s speaker.Speaker, sess *session.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.held || c.holder != s || c.session != sess {
		return false
	}
	c.held = false
	c.holder = ""
	c.session = nil
	c.stopping = false
	return true
}

// Active returns the speaker holding the slot
func (c *Controller) Active() (speaker.Speaker, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holder, c.held
}
