package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	prerecorded "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-assistant/internal/audio"
	"github.com/lexiqai/interview-assistant/internal/observability"
	"github.com/lexiqai/interview-assistant/internal/resilience"
)

// DefaultBatchURL is the pre-recorded recognition host
const DefaultBatchURL = "https://api.deepgram.com"

const (
	defaultMinDuration    = time.Second
	defaultBytesPerSecond = 3000 // ~24 kbps opus speech
	defaultTimeout        = 60 * time.Second
	lowConfidence         = 0.5
)

// BatchConfig configures a BatchTranscriber
type BatchConfig struct {
	URL      string
	APIKey   string
	Model    string
	Language string

	// MinDuration rejects shorter clips before any request is made
	MinDuration time.Duration

	// BytesPerSecond estimates the duration of compressed uploads
	BytesPerSecond int

	// Timeout bounds each attempt
	Timeout time.Duration

	Retry   *resilience.RetryConfig
	Breaker *resilience.CircuitBreaker
	Logger  zerolog.Logger
}

// BatchTranscriber transcribes complete recordings in one request
type BatchTranscriber struct {
	cfg    BatchConfig
	client *prerecorded.Client
}

// NewBatchTranscriber creates a transcriber; missing fields get defaults
func NewBatchTranscriber(cfg BatchConfig) *BatchTranscriber {
	if cfg.URL == "" {
		cfg.URL = DefaultBatchURL
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = defaultMinDuration
	}
	if cfg.BytesPerSecond <= 0 {
		cfg.BytesPerSecond = defaultBytesPerSecond
	}
	if cfg.Retry == nil {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Logger = cfg.Logger.With().Str("component", "batch_transcriber").Logger()

	b := &BatchTranscriber{cfg: cfg}
	if cfg.APIKey != "" {
		if c := listen.NewREST(cfg.APIKey, &interfaces.ClientOptions{Host: cfg.URL}); c != nil {
			b.client = prerecorded.New(c)
		} else {
			cfg.Logger.Error().Str("host", cfg.URL).Msg("Failed to create recognition REST client")
		}
	}
	return b
}

// Configured reports whether a usable client was built from a credential
func (b *BatchTranscriber) Configured() bool {
	return b.client != nil
}

// EstimateDuration returns the exact length of a PCM WAV upload, or the
// byte-rate estimate for anything else
func EstimateDuration(data []byte, bytesPerSecond int) time.Duration {
	if audio.IsWAV(data) {
		r := bytes.NewReader(data)
		if header, err := audio.ReadWAVHeader(r); err == nil && header.ByteRate() > 0 {
			size := r.Len()
			if header.DataSize > 0 && header.DataSize < size {
				size = header.DataSize
			}
			return header.Duration(size)
		}
	}
	if bytesPerSecond <= 0 {
		bytesPerSecond = defaultBytesPerSecond
	}
	return time.Duration(len(data)) * time.Second / time.Duration(bytesPerSecond)
}

// Transcribe returns the trimmed transcript of data.
// Empty or too-short audio fails before any network call.
func (b *BatchTranscriber) Transcribe(ctx context.Context, data []byte, contentType string) (string, error) {
	started := time.Now()

	if len(data) == 0 {
		return "", ErrEmptyAudio
	}
	duration := EstimateDuration(data, b.cfg.BytesPerSecond)
	if duration < b.cfg.MinDuration {
		return "", fmt.Errorf("%w: %.2fs is under %.2fs", ErrAudioTooShort, duration.Seconds(), b.cfg.MinDuration.Seconds())
	}
	if !b.Configured() {
		return "", ErrConfiguration
	}
	if contentType == "" {
		contentType = "audio/webm"
	}

	b.cfg.Logger.Info().
		Int("bytes", len(data)).
		Dur("estimated_duration", duration).
		Str("content_type", contentType).
		Msg("Transcribing recording")

	var resp *api.PreRecordedResponse
	call := func(ctx context.Context) error {
		var err error
		resp, err = b.send(ctx, data, contentType)
		return err
	}

	var err error
	if b.cfg.Breaker != nil {
		err = b.cfg.Breaker.Call(func() error {
			return resilience.Retry(ctx, call, b.cfg.Retry, resilience.IsRetryableNetworkError)
		})
	} else {
		err = resilience.Retry(ctx, call, b.cfg.Retry, resilience.IsRetryableNetworkError)
	}
	if err != nil {
		observability.RecordBatchTranscription(started, false)
		observability.RecordError("request_failed", "batch_transcription")
		b.cfg.Logger.Error().Err(err).Bool("retries_exhausted", resilience.IsRetryable(err)).Msg("Transcription request failed")
		return "", err
	}

	transcript, err := extractTranscript(resp)
	observability.RecordBatchTranscription(started, err == nil)
	if err != nil {
		b.cfg.Logger.Warn().Err(err).Msg("Transcription returned no text")
		return "", err
	}

	b.cfg.Logger.Info().Int("chars", len(transcript)).Msg("Transcription successful")
	return transcript, nil
}

func (b *BatchTranscriber) send(ctx context.Context, data []byte, contentType string) (*api.PreRecordedResponse, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, interfaces.HeadersContext{}, http.Header{"Content-Type": []string{contentType}})

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       b.cfg.Model,
		Language:    b.cfg.Language,
		Punctuate:   true,
		SmartFormat: true,
	}
	resp, err := b.client.FromStream(ctx, bytes.NewReader(data), options)
	if err != nil {
		return nil, classifyBatchError(err)
	}
	return resp, nil
}

// classifyBatchError maps a failed request onto the package errors.
// Rejections of the input are ignored by the breaker, throttling and
// server faults are retried.
func classifyBatchError(err error) error {
	var statusErr *interfaces.StatusError
	if errors.As(err, &statusErr) && statusErr.Resp != nil {
		var detail string
		if statusErr.DeepgramError != nil {
			detail = statusErr.DeepgramError.ErrMsg
		}
		code := statusErr.Resp.StatusCode
		switch {
		case code == http.StatusBadRequest:
			if detail == "" {
				return resilience.Ignore(ErrUnsupportedAudio)
			}
			return resilience.Ignore(fmt.Errorf("%w: %s", ErrUnsupportedAudio, detail))
		case code == http.StatusRequestEntityTooLarge:
			return resilience.Ignore(ErrAudioTooLarge)
		case code == http.StatusTooManyRequests || code >= 500:
			return resilience.NewRetryableError(&StatusError{StatusCode: code, Body: detail})
		default:
			return resilience.Ignore(&StatusError{StatusCode: code, Body: detail})
		}
	}

	// a 400 without a JSON body arrives as "<status>: <body>"
	if msg := err.Error(); strings.HasPrefix(msg, "400 ") {
		if _, body, ok := strings.Cut(msg, ": "); ok && body != "" {
			return resilience.Ignore(fmt.Errorf("%w: %s", ErrUnsupportedAudio, body))
		}
		return resilience.Ignore(ErrUnsupportedAudio)
	}
	return err
}

// extractTranscript falls back from the transcript to its words, then to utterances
func extractTranscript(resp *api.PreRecordedResponse) (string, error) {
	if resp == nil || resp.Results == nil {
		return "", ErrNoSpeech
	}

	var (
		transcript string
		confidence float64
	)
	if len(resp.Results.Channels) > 0 && len(resp.Results.Channels[0].Alternatives) > 0 {
		alt := resp.Results.Channels[0].Alternatives[0]
		confidence = alt.Confidence
		transcript = strings.TrimSpace(alt.Transcript)

		if transcript == "" && len(alt.Words) > 0 {
			words := make([]string, 0, len(alt.Words))
			for _, w := range alt.Words {
				words = append(words, w.Word)
			}
			transcript = strings.TrimSpace(strings.Join(words, " "))
		}
	}

	if transcript == "" && len(resp.Results.Utterances) > 0 {
		parts := make([]string, 0, len(resp.Results.Utterances))
		for _, u := range resp.Results.Utterances {
			parts = append(parts, u.Transcript)
		}
		transcript = strings.TrimSpace(strings.Join(parts, " "))
	}

	if transcript == "" {
		if confidence > 0 && confidence < lowConfidence {
			return "", ErrLowConfidence
		}
		return "", ErrNoSpeech
	}
	return transcript, nil
}

// IsClientError reports whether err is a rejection of the input rather than a service failure
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyAudio) ||
		errors.Is(err, ErrAudioTooShort) ||
		errors.Is(err, ErrAudioTooLarge) ||
		errors.Is(err, ErrUnsupportedAudio) ||
		errors.Is(err, ErrNoSpeech)
}
