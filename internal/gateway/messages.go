package gateway

import (
	"errors"

	"github.com/lexiqai/interview-assistant/internal/audio"
	"github.com/lexiqai/interview-assistant/internal/evaluation"
	"github.com/lexiqai/interview-assistant/internal/interview"
	"github.com/lexiqai/interview-assistant/internal/resilience"
	"github.com/lexiqai/interview-assistant/internal/stt"
)

// Client → server message types
const (
	MsgStart         = "start"
	MsgStop          = "stop"
	MsgToggle        = "toggle"
	MsgCaptureReady  = "capture_ready"
	MsgCaptureDenied = "capture_denied"
	MsgCaptureError  = "capture_error"
)

// Server → client message types
const (
	MsgHello       = "hello"
	MsgCapture     = "capture"
	MsgCaptureStop = "capture_stop"
	MsgListening   = "listening"
	MsgTranscript  = "transcript"
	MsgRecording   = "recording"
	MsgStopped     = "stopped"
	MsgError       = "error"
)

// ClientMessage is a text frame sent by the browser
type ClientMessage struct {
	Type     string `json:"type"`
	Speaker  string `json:"speaker,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ServerMessage is a text frame sent to the browser
type ServerMessage struct {
	Type        string             `json:"type"`
	InterviewID string             `json:"interview_id,omitempty"`
	Speaker     string             `json:"speaker,omitempty"`
	Constraints *audio.Constraints `json:"constraints,omitempty"`

	// transcript
	Text      string `json:"text,omitempty"`
	Committed string `json:"committed,omitempty"`
	IsFinal   bool   `json:"is_final,omitempty"`

	// recording
	URL         string `json:"url,omitempty"`
	Bytes       int    `json:"bytes,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// errorCode maps a failure to the stable code shown to the browser
func errorCode(err error) string {
	switch {
	case errors.Is(err, stt.ErrConfiguration), errors.Is(err, evaluation.ErrConfiguration):
		return "configuration"
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, audio.ErrNoSupportedFormat):
		return "unsupported_format"
	case errors.Is(err, audio.ErrCaptureLost):
		return "capture_lost"
	case errors.Is(err, stt.ErrConnection):
		return "connection"
	case errors.Is(err, evaluation.ErrValidation):
		return "validation"
	case errors.Is(err, stt.ErrEmptyAudio):
		return "empty_audio"
	case errors.Is(err, stt.ErrAudioTooShort):
		return "audio_too_short"
	case errors.Is(err, stt.ErrAudioTooLarge):
		return "audio_too_large"
	case errors.Is(err, stt.ErrUnsupportedAudio):
		return "unsupported_audio"
	case errors.Is(err, stt.ErrNoSpeech):
		return "no_speech"
	case errors.Is(err, interview.ErrRecordingNotFound):
		return "not_found"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "unavailable"
	default:
		return "internal"
	}
}
