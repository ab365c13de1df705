package interview

import (
	"context"
	"errors"
	"sync"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"

	"github.com/lexiqai/interview-assistant/internal/audio"
	"github.com/lexiqai/interview-assistant/internal/speaker"
	"github.com/lexiqai/interview-assistant/internal/stt"
	"github.com/lexiqai/interview-assistant/internal/transcript"
)

type testHandle struct {
	mu      sync.Mutex
	pending []byte
	done    chan struct{}
	once    sync.Once
}

func (h *testHandle) Source() audio.Source {
	return audio.Source{MimeType: "audio/webm;codecs=opus"}
}

func (h *testHandle) push(data string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, data...)
}

func (h *testHandle) Drain() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.pending
	h.pending = nil
	return out
}

func (h *testHandle) Done() <-chan struct{} { return h.done }
func (h *testHandle) Err() error            { return nil }
func (h *testHandle) Release()              { h.once.Do(func() { close(h.done) }) }

type testDevice struct {
	mu       sync.Mutex
	acquires int
	handles  []*testHandle
}

func (d *testDevice) Acquire(ctx context.Context, c audio.Constraints) (audio.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquires++
	h := &testHandle{done: make(chan struct{})}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *testDevice) lastHandle() *testHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[len(d.handles)-1]
}

func (d *testDevice) acquireCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acquires
}

type testConn struct {
	mu       sync.Mutex
	audio    []byte
	inbound  chan []byte
	failures chan error
	closed   chan struct{}
	once     sync.Once
}

func newTestConn() *testConn {
	return &testConn{
		inbound:  make(chan []byte, 16),
		failures: make(chan error, 1),
		closed:   make(chan struct{}),
	}
}

func (c *testConn) WriteAudio(chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audio = append(c.audio, chunk...)
	return nil
}

func (c *testConn) sentAudio() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.audio)
}

func (c *testConn) WriteControl(string) error { return nil }

func (c *testConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case err := <-c.failures:
		return nil, err
	case <-c.closed:
		return nil, errors.New("closed")
	}
}

func (c *testConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type testDialer struct {
	mu    sync.Mutex
	conns []*testConn
}

func (d *testDialer) Dial(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions) (stt.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := newTestConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *testDialer) lastConn() *testConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

type listenerEvent struct {
	kind    string
	speaker speaker.Speaker
	state   transcript.State
	rec     *audio.Recording
	err     error
}

type testListener struct {
	mu     sync.Mutex
	events []listenerEvent
}

func (l *testListener) add(e listenerEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *testListener) Listening(s speaker.Speaker) {
	l.add(listenerEvent{kind: "listening", speaker: s})
}

func (l *testListener) TranscriptUpdated(s speaker.Speaker, state transcript.State, _ stt.TranscriptEvent) {
	l.add(listenerEvent{kind: "transcript", speaker: s, state: state})
}

func (l *testListener) Stopped(s speaker.Speaker, rec *audio.Recording) {
	l.add(listenerEvent{kind: "stopped", speaker: s, rec: rec})
}

func (l *testListener) SessionFailed(s speaker.Speaker, err error) {
	l.add(listenerEvent{kind: "failed", speaker: s, err: err})
}

func (l *testListener) count(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}
