package stt

import (
	"errors"
	"testing"
)

func TestParseMessage_Results(t *testing.T) {
	frame := []byte(`{
		"type": "Results",
		"start": 1.5,
		"duration": 0.8,
		"is_final": true,
		"channel": {"alternatives": [{"transcript": " hello world ", "confidence": 0.97, "words": []}]}
	}`)

	msg, err := ParseMessage(frame)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if msg.Kind != KindResults {
		t.Fatalf("Expected KindResults, got %v", msg.Kind)
	}

	event, ok := msg.Event()
	if !ok {
		t.Fatal("Expected results message to yield an event")
	}
	if event.Text != "hello world" || !event.IsFinal || event.Confidence != 0.97 {
		t.Errorf("Unexpected event: %+v", event)
	}
	if event.Start != 1.5 || event.Duration != 0.8 {
		t.Errorf("Unexpected timing: start=%v duration=%v", event.Start, event.Duration)
	}
}

func TestParseMessage_TimingFromWords(t *testing.T) {
	frame := []byte(`{
		"type": "Results",
		"is_final": false,
		"channel": {"alternatives": [{"transcript": "hel", "words": [{"word": "hel", "start": 0.2, "end": 0.6}]}]}
	}`)

	msg, err := ParseMessage(frame)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	event, _ := msg.Event()
	if event.IsFinal {
		t.Error("Expected interim event")
	}
	if event.Start != 0.2 || event.Duration < 0.39 || event.Duration > 0.41 {
		t.Errorf("Expected timing from words, got start=%v duration=%v", event.Start, event.Duration)
	}
}

func TestParseMessage_Other(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type": "Metadata", "request_id": "abc"}`))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if msg.Kind != KindOther || msg.Type != "Metadata" {
		t.Errorf("Expected KindOther Metadata, got %+v", msg)
	}
	if _, ok := msg.Event(); ok {
		t.Error("Expected no event from non-results message")
	}

	msg, err = ParseMessage([]byte(`{"type": "Error", "description": "bad audio"}`))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if msg.Description != "bad audio" {
		t.Errorf("Expected error description, got %q", msg.Description)
	}
}

func TestParseMessage_Malformed(t *testing.T) {
	frames := map[string]string{
		"invalid json":       `{"type": "Results"`,
		"missing type":       `{"channel": {"alternatives": []}}`,
		"missing channel":    `{"type": "Results", "is_final": true}`,
		"missing is_final":   `{"type": "Results", "channel": {"alternatives": [{"transcript": "x"}]}}`,
		"no alternatives":    `{"type": "Results", "is_final": true, "channel": {"alternatives": []}}`,
		"wrong field type":   `{"type": "Results", "is_final": "yes", "channel": {"alternatives": [{"transcript": "x"}]}}`,
		"transcript not str": `{"type": "Results", "is_final": true, "channel": {"alternatives": [{"transcript": 42}]}}`,
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessage([]byte(frame))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}
