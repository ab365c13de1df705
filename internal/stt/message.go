package stt

import (
	"encoding/json"
	"fmt"
	"strings"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
)

// Kind classifies inbound recognition frames
type Kind int

const (
	KindOther Kind = iota
	KindResults
)

// TypeResults is the type tag of transcript frames
const TypeResults = "Results"

// Message is a strictly parsed inbound frame
type Message struct {
	Kind Kind

	// Type is the frame's type tag
	Type string

	// Results is set for KindResults only
	Results *msginterfaces.MessageResponse

	// Description carries the service's explanation on Error frames
	Description string
}

type envelope struct {
	Type        *string `json:"type"`
	Description string  `json:"description"`
	Message     string  `json:"message"`
}

// presence check for the fields a Results frame must carry
type resultsPresence struct {
	Channel *struct {
		Alternatives []json.RawMessage `json:"alternatives"`
	} `json:"channel"`
	IsFinal *bool `json:"is_final"`
}

// ParseMessage classifies a frame by its type tag and fully decodes Results.
// Any decode failure is ErrMalformedMessage.
func ParseMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == nil || *env.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	if *env.Type != TypeResults {
		msg := Message{Kind: KindOther, Type: *env.Type, Description: env.Description}
		if msg.Description == "" {
			msg.Description = env.Message
		}
		return msg, nil
	}

	var presence resultsPresence
	if err := json.Unmarshal(data, &presence); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch {
	case presence.Channel == nil:
		return Message{}, fmt.Errorf("%w: results without channel", ErrMalformedMessage)
	case presence.IsFinal == nil:
		return Message{}, fmt.Errorf("%w: results without is_final", ErrMalformedMessage)
	case len(presence.Channel.Alternatives) == 0:
		return Message{}, fmt.Errorf("%w: results without alternatives", ErrMalformedMessage)
	}

	var results msginterfaces.MessageResponse
	if err := json.Unmarshal(data, &results); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	return Message{Kind: KindResults, Type: TypeResults, Results: &results}, nil
}

// Event projects a Results message onto its best alternative
func (m Message) Event() (TranscriptEvent, bool) {
	if m.Kind != KindResults || m.Results == nil || len(m.Results.Channel.Alternatives) == 0 {
		return TranscriptEvent{}, false
	}

	alt := m.Results.Channel.Alternatives[0]
	event := TranscriptEvent{
		Text:       strings.TrimSpace(alt.Transcript),
		IsFinal:    m.Results.IsFinal,
		Confidence: alt.Confidence,
		Start:      m.Results.Start,
		Duration:   m.Results.Duration,
	}

	if len(alt.Words) > 0 && event.Duration == 0 {
		// Fallback: calculate timing from words if not provided
		event.Start = alt.Words[0].Start
		event.Duration = alt.Words[len(alt.Words)-1].End - event.Start
	}

	return event, true
}
