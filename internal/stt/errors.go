package stt

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means no recognition service credential is available
	ErrConfiguration = errors.New("speech recognition is not configured")

	// ErrConnection means the recognition socket could not be opened or was lost
	ErrConnection = errors.New("speech recognition connection failed")

	// ErrMalformedMessage marks an inbound frame that is not a valid event
	ErrMalformedMessage = errors.New("malformed recognition message")

	// ErrEmptyAudio is returned for a zero-length batch upload
	ErrEmptyAudio = errors.New("audio recording is empty")

	// ErrAudioTooShort is returned before any network call for clips under the minimum duration
	ErrAudioTooShort = errors.New("audio recording is too short")

	// ErrAudioTooLarge maps the service's 413
	ErrAudioTooLarge = errors.New("audio file too large")

	// ErrUnsupportedAudio maps the service's 400
	ErrUnsupportedAudio = errors.New("audio format not supported")

	// ErrNoSpeech means the service answered without any transcript text
	ErrNoSpeech = errors.New("no speech detected in the audio recording")

	// ErrLowConfidence is a no-speech result where some speech was heard unclearly
	ErrLowConfidence = fmt.Errorf("%w: speech detected but confidence is low", ErrNoSpeech)
)

// StatusError is a non-2xx answer from the recognition REST API
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("deepgram API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("deepgram API error: status %d: %s", e.StatusCode, e.Body)
}
