package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-assistant/internal/audio"
	"github.com/lexiqai/interview-assistant/internal/interview"
	"github.com/lexiqai/interview-assistant/internal/observability"
	"github.com/lexiqai/interview-assistant/internal/speaker"
	"github.com/lexiqai/interview-assistant/internal/stt"
	"github.com/lexiqai/interview-assistant/internal/transcript"
)

const (
	writeTimeout  = 5 * time.Second
	commandBuffer = 16
)

// client is one browser tab: it owns the microphone device and one interview
type client struct {
	server    *Server
	conn      *websocket.Conn
	device    *audio.RemoteDevice
	interview *interview.Interview
	logger    zerolog.Logger

	writeMu  sync.Mutex
	commands chan ClientMessage
	ctx      context.Context
	cancel   context.CancelFunc
}

// handleInterviewWS upgrades the connection and runs the interview until the tab goes away
func (s *Server) handleInterviewWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	interviewID := r.URL.Query().Get("id")
	if interviewID == "" {
		interviewID = observability.NewCorrelationID()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		server:   s,
		conn:     conn,
		logger:   observability.InterviewLogger(interviewID),
		commands: make(chan ClientMessage, commandBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.device = audio.NewRemoteDevice(c, s.cfg.AudioBufferSize, c.logger)
	c.interview = interview.New(interview.Config{
		ID:      interviewID,
		Device:  c.device,
		Dialer:  s.dialer,
		APIKey:  s.cfg.DeepgramAPIKey,
		Options: stt.NewLiveOptions(s.cfg.DeepgramModel, s.cfg.DeepgramLanguage, "", 0, 0),
		Constraints: audio.Constraints{
			Channels:         1,
			SampleRate:       s.cfg.SampleRate,
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
		ChunkInterval:  s.cfg.ChunkInterval(),
		KeepAlive:      s.cfg.KeepAliveInterval(),
		CloseWait:      s.cfg.CloseWait(),
		CaptureTimeout: s.cfg.CaptureTimeout(),
		Listener:       c,
		Logger:         c.logger,
	})

	if !s.registry.Add(c.interview) {
		c.send(ServerMessage{Type: MsgError, Code: "conflict", Message: "interview already connected"})
		cancel()
		return
	}
	defer s.registry.Remove(c.interview)

	c.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Interview connected")
	c.send(ServerMessage{Type: MsgHello, InterviewID: interviewID})

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		c.runCommands()
	}()
	c.readLoop()

	// Fail any pending acquisition so a blocked start returns
	c.device.Disconnect()
	cancel()
	close(c.commands)
	<-workerDone

	stopCtx, stopCancel := context.WithTimeout(context.Background(), s.cfg.CloseWait()+time.Second)
	c.interview.Close(stopCtx)
	stopCancel()

	c.logger.Info().Msg("Interview disconnected")
}

// readLoop dispatches browser frames until the socket closes
func (c *client) readLoop() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			if !c.device.Push(data) {
				c.logger.Debug().Int("bytes", len(data)).Msg("Dropping audio with no live capture")
			}
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse client message")
			c.send(ServerMessage{Type: MsgError, Code: "bad_message", Message: "invalid JSON"})
			continue
		}
		c.dispatch(msg)
	}
}

func (c *client) dispatch(msg ClientMessage) {
	switch msg.Type {
	case MsgStart, MsgStop, MsgToggle:
		// Start blocks until the browser answers the capture request, which
		// arrives on this loop, so commands run on their own goroutine
		select {
		case c.commands <- msg:
		default:
			c.logger.Warn().Str("type", msg.Type).Msg("Command queue full, dropping command")
			c.send(ServerMessage{
				Type:    MsgError,
				Speaker: msg.Speaker,
				Code:    "busy",
				Message: fmt.Sprintf("too many pending commands, %s dropped", msg.Type),
			})
		}

	case MsgCaptureReady:
		if err := c.device.Grant(msg.MimeType); err != nil {
			c.logger.Warn().Err(err).Msg("Unexpected capture grant")
		}

	case MsgCaptureDenied:
		if err := c.device.Deny(msg.Reason); err != nil {
			c.logger.Warn().Err(err).Msg("Unexpected capture denial")
		}

	case MsgCaptureError:
		c.device.Fail(msg.Reason)

	default:
		c.logger.Debug().Str("type", msg.Type).Msg("Unknown client message")
	}
}

// runCommands executes start/stop/toggle one at a time, in arrival order
func (c *client) runCommands() {
	for msg := range c.commands {
		s, err := speaker.Parse(msg.Speaker)
		if err != nil {
			c.send(ServerMessage{Type: MsgError, Code: "bad_message", Message: err.Error()})
			continue
		}

		switch msg.Type {
		case MsgStart:
			_, err = c.interview.Start(c.ctx, s)
		case MsgStop:
			_, err = c.interview.Stop(c.ctx, s)
		case MsgToggle:
			var action interview.Action
			action, err = c.interview.Toggle(c.ctx, s)
			c.logger.Debug().Str("speaker", s.String()).Str("action", action.String()).Msg("Toggle")
		}

		if err != nil {
			c.sendError(s, err)
		}
	}
}

func (c *client) sendError(s speaker.Speaker, err error) {
	c.send(ServerMessage{
		Type:    MsgError,
		Speaker: s.String(),
		Code:    errorCode(err),
		Message: err.Error(),
	})
}

// send writes one JSON frame; write errors end the read loop on their own
func (c *client) send(msg ServerMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to send message")
	}
}

// RequestCapture asks the browser to open its microphone
func (c *client) RequestCapture(constraints audio.Constraints) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ServerMessage{Type: MsgCapture, Constraints: &constraints})
}

// StopCapture asks the browser to close its microphone
func (c *client) StopCapture() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ServerMessage{Type: MsgCaptureStop})
}

func (c *client) Listening(s speaker.Speaker) {
	c.send(ServerMessage{Type: MsgListening, Speaker: s.String()})
}

func (c *client) TranscriptUpdated(s speaker.Speaker, state transcript.State, event stt.TranscriptEvent) {
	c.send(ServerMessage{
		Type:      MsgTranscript,
		Speaker:   s.String(),
		Text:      state.Displayed,
		Committed: state.Committed,
		IsFinal:   event.IsFinal,
	})
}

func (c *client) Stopped(s speaker.Speaker, rec *audio.Recording) {
	if rec != nil {
		c.send(ServerMessage{
			Type:        MsgRecording,
			Speaker:     s.String(),
			URL:         c.server.recordingURL(c.interview.ID(), s),
			Bytes:       rec.Size(),
			ContentType: rec.ContentType(),
			Filename:    rec.Filename(recordingBase(s)),
		})
	}
	c.send(ServerMessage{Type: MsgStopped, Speaker: s.String()})
}

func (c *client) SessionFailed(s speaker.Speaker, err error) {
	c.sendError(s, err)
	c.send(ServerMessage{Type: MsgStopped, Speaker: s.String()})
}

func recordingBase(s speaker.Speaker) string {
	return fmt.Sprintf("%s-recording", s.Role())
}

func (s *Server) recordingURL(interviewID string, sp speaker.Speaker) string {
	path := fmt.Sprintf("/api/interviews/%s/recordings/%s", url.PathEscape(interviewID), sp)
	return s.cfg.PublicURL + path
}
