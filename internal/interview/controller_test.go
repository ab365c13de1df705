package interview

import (
	"testing"

	"github.com/lexiqai/interview-assistant/internal/session"
	"github.com/lexiqai/interview-assistant/internal/speaker"
)

func TestController_SingleSlot(t *testing.T) {
	c := NewController()

	if !c.TryAcquire(speaker.Primary) {
		t.Fatal("Expected first acquire to succeed")
	}
	if c.TryAcquire(speaker.Secondary) {
		t.Error("Expected acquire for other speaker to be refused")
	}
	if c.TryAcquire(speaker.Primary) {
		t.Error("Expected repeated acquire for holder to be refused")
	}

	active, held := c.Active()
	if !held || active != speaker.Primary {
		t.Errorf("Expected primary active, got %s (%v)", active, held)
	}
}

func TestController_ReleaseOnlyByHolderWithSameSession(t *testing.T) {
	c := NewController()
	c.TryAcquire(speaker.Primary)

	sess := &session.Session{}
	if !c.Attach(speaker.Primary, sess) {
		t.Fatal("Expected attach to succeed")
	}
	if c.Attach(speaker.Primary, &session.Session{}) {
		t.Error("Expected second attach to fail")
	}

	if c.Release(speaker.Secondary, sess) {
		t.Error("Expected release by non-holder to fail")
	}
	if c.Release(speaker.Primary, &session.Session{}) {
		t.Error("Expected release with a different session to fail")
	}
	if c.Release(speaker.Primary, nil) {
		t.Error("Expected release of reservation to fail once a session is attached")
	}
	if !c.Release(speaker.Primary, sess) {
		t.Error("Expected holder release to succeed")
	}
	if _, held := c.Active(); held {
		t.Error("Expected empty slot after release")
	}
}

func TestController_BeginStopOnce(t *testing.T) {
	c := NewController()
	c.TryAcquire(speaker.Secondary)

	if _, ok := c.BeginStop(speaker.Secondary); ok {
		t.Error("Expected no stop before a session is attached")
	}

	sess := &session.Session{}
	c.Attach(speaker.Secondary, sess)

	got, ok := c.BeginStop(speaker.Secondary)
	if !ok || got != sess {
		t.Fatal("Expected first BeginStop to hand over the session")
	}
	if _, ok := c.BeginStop(speaker.Secondary); ok {
		t.Error("Expected second BeginStop to be refused")
	}
	if _, ok := c.BeginStop(speaker.Primary); ok {
		t.Error("Expected BeginStop by non-holder to be refused")
	}
}
