package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-assistant/internal/audio"
	"github.com/lexiqai/interview-assistant/internal/resilience"
)

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestTranscriber(url, key string) *BatchTranscriber {
	return NewBatchTranscriber(BatchConfig{
		URL:      url,
		APIKey:   key,
		Model:    "nova-2",
		Language: "en",
		Retry:    fastRetry(),
		Logger:   zerolog.Nop(),
	})
}

func wavClip(seconds float64) []byte {
	var buf bytes.Buffer
	header := audio.WAVHeader{Format: audio.WAVFormatPCM, Channels: 1, SampleRate: 16000, BitsPerSample: 16}
	size := int(seconds * float64(header.ByteRate()))
	audio.WriteWAVHeader(&buf, header, size)
	buf.Write(make([]byte, size))
	return buf.Bytes()
}

func TestTranscribe_TooShortFailsBeforeNetwork(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	transcriber := newTestTranscriber(server.URL, "key")

	_, err := transcriber.Transcribe(context.Background(), wavClip(0.5), "audio/wav")
	if !errors.Is(err, ErrAudioTooShort) {
		t.Errorf("Expected ErrAudioTooShort for 0.5s WAV, got %v", err)
	}

	// 0.5s at the compressed byte-rate estimate
	_, err = transcriber.Transcribe(context.Background(), make([]byte, 1500), "audio/webm")
	if !errors.Is(err, ErrAudioTooShort) {
		t.Errorf("Expected ErrAudioTooShort for estimated 0.5s clip, got %v", err)
	}

	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("Expected no network calls, got %d", calls)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	_, err := newTestTranscriber("http://127.0.0.1:0", "key").Transcribe(context.Background(), nil, "audio/webm")
	if !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Expected ErrEmptyAudio, got %v", err)
	}
}

func TestTranscribe_MissingKey(t *testing.T) {
	_, err := newTestTranscriber("http://127.0.0.1:0", "").Transcribe(context.Background(), wavClip(2), "audio/wav")
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration, got %v", err)
	}
}

func TestTranscribe_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "token key" {
			t.Errorf("Unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("Unexpected content type %q", r.Header.Get("Content-Type"))
		}
		q := r.URL.Query()
		if q.Get("model") != "nova-2" || q.Get("smart_format") != "true" || q.Get("punctuate") != "true" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		if len(body) == 0 {
			t.Error("Expected audio body")
		}
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":" It's memorizing noise. ","confidence":0.93}]}]}}`))
	}))
	defer server.Close()

	text, err := newTestTranscriber(server.URL, "key").Transcribe(context.Background(), wavClip(2), "audio/wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "It's memorizing noise." {
		t.Errorf("Unexpected transcript %q", text)
	}
}

func TestTranscribe_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad request", http.StatusBadRequest, "", ErrUnsupportedAudio},
		{"bad request with detail", http.StatusBadRequest, `{"err_code":"Bad Request","err_msg":"corrupt or unsupported data"}`, ErrUnsupportedAudio},
		{"too large", http.StatusRequestEntityTooLarge, "", ErrAudioTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestTranscriber(server.URL, "key").Transcribe(context.Background(), wavClip(2), "audio/wav")
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if !IsClientError(err) {
				t.Errorf("Expected a client error, got %v", err)
			}
			if atomic.LoadInt32(&calls) != 1 {
				t.Errorf("Expected a single call for a rejected upload, got %d", calls)
			}
		})
	}
}

func TestTranscribe_UnexpectedStatusNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestTranscriber(server.URL, "key").Transcribe(context.Background(), wavClip(2), "audio/wav")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected StatusError 401, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestTranscribe_RateLimitExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestTranscriber(server.URL, "key").Transcribe(context.Background(), wavClip(2), "audio/wav")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("Expected StatusError 429, got %v", err)
	}
	if !resilience.IsRetryable(err) {
		t.Errorf("Expected a retryable error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestTranscribe_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"ok"}]}]}}`))
	}))
	defer server.Close()

	text, err := newTestTranscriber(server.URL, "key").Transcribe(context.Background(), wavClip(2), "audio/wav")
	if err != nil || text != "ok" {
		t.Errorf("Expected \"ok\" after retries, got %q (%v)", text, err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func decodeResponse(t *testing.T, body string) *api.PreRecordedResponse {
	t.Helper()
	var resp api.PreRecordedResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Failed to decode %s: %v", body, err)
	}
	return &resp
}

func TestExtractTranscript_Fallbacks(t *testing.T) {
	fromWords := decodeResponse(t, `{"results":{"channels":[{"alternatives":[{"transcript":"","words":[{"word":"hello"},{"word":"there"}]}]}]}}`)
	if text, err := extractTranscript(fromWords); err != nil || text != "hello there" {
		t.Errorf("Expected transcript from words, got %q (%v)", text, err)
	}

	fromUtterances := decodeResponse(t, `{"results":{"channels":[{"alternatives":[{"transcript":""}]}],"utterances":[{"transcript":"first"},{"transcript":"second"}]}}`)
	if text, err := extractTranscript(fromUtterances); err != nil || text != "first second" {
		t.Errorf("Expected transcript from utterances, got %q (%v)", text, err)
	}
}

func TestExtractTranscript_NoSpeech(t *testing.T) {
	_, err := extractTranscript(decodeResponse(t, `{"results":{"channels":[{"alternatives":[{"transcript":""}]}]}}`))
	if !errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrLowConfidence) {
		t.Errorf("Expected plain ErrNoSpeech, got %v", err)
	}

	_, err = extractTranscript(decodeResponse(t, `{"results":{"channels":[{"alternatives":[{"transcript":"","confidence":0.2}]}]}}`))
	if !errors.Is(err, ErrLowConfidence) || !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Expected ErrLowConfidence wrapping ErrNoSpeech, got %v", err)
	}

	if _, err := extractTranscript(decodeResponse(t, `{}`)); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("Expected ErrNoSpeech without results, got %v", err)
	}
}

func TestEstimateDuration(t *testing.T) {
	if d := EstimateDuration(wavClip(1.5), 3000); d != 1500*time.Millisecond {
		t.Errorf("Expected exact WAV duration 1.5s, got %v", d)
	}
	if d := EstimateDuration(make([]byte, 6000), 3000); d != 2*time.Second {
		t.Errorf("Expected 2s estimate, got %v", d)
	}
}
