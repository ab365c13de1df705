package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	"github.com/gorilla/websocket"
)

// Control message types understood by the live endpoint
const (
	ControlKeepAlive   = "KeepAlive"
	ControlCloseStream = "CloseStream"
)

// DefaultLiveURL is the streaming recognition endpoint
const DefaultLiveURL = "wss://api.deepgram.com/v1/listen"

// Conn is an open streaming recognition connection.
// Writes must come from a single goroutine; Close may be called from any.
type Conn interface {
	WriteAudio(chunk []byte) error
	WriteControl(controlType string) error

	// ReadMessage blocks for the next text frame
	ReadMessage() ([]byte, error)

	Close() error
}

// Dialer opens recognition connections. Dial returns once the connection is open.
type Dialer interface {
	Dial(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions) (Conn, error)
}

// NewLiveOptions returns the fixed session options: formatting, punctuation
// and interim results on. Raw encodings add their sample layout.
func NewLiveOptions(model, language, encoding string, sampleRate, channels int) *interfaces.LiveTranscriptionOptions {
	opts := &interfaces.LiveTranscriptionOptions{
		Model:          model,
		Language:       language,
		SmartFormat:    true,
		Punctuate:      true,
		InterimResults: true,
	}
	if encoding != "" {
		opts.Encoding = encoding
		opts.SampleRate = sampleRate
		opts.Channels = channels
	}
	return opts
}

// LiveURL renders opts as the query string of base
func LiveURL(base string, opts *interfaces.LiveTranscriptionOptions) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid live URL %q: %w", base, err)
	}

	q := u.Query()
	if opts.Model != "" {
		q.Set("model", opts.Model)
	}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	q.Set("smart_format", strconv.FormatBool(opts.SmartFormat))
	q.Set("punctuate", strconv.FormatBool(opts.Punctuate))
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	if opts.Encoding != "" {
		q.Set("encoding", opts.Encoding)
		if opts.SampleRate > 0 {
			q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
		}
		if opts.Channels > 0 {
			q.Set("channels", strconv.Itoa(opts.Channels))
		}
	}
	if opts.UtteranceEndMs != "" {
		q.Set("utterance_end_ms", opts.UtteranceEndMs)
	}
	if opts.VadEvents {
		q.Set("vad_events", "true")
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DeepgramDialer opens live connections over gorilla/websocket
type DeepgramDialer struct {
	URL              string
	HandshakeTimeout time.Duration
}

// NewDeepgramDialer creates a dialer for the live endpoint at liveURL
func NewDeepgramDialer(liveURL string) *DeepgramDialer {
	if liveURL == "" {
		liveURL = DefaultLiveURL
	}
	return &DeepgramDialer{URL: liveURL, HandshakeTimeout: 10 * time.Second}
}

// Dial performs the handshake, authenticating with the Token scheme
func (d *DeepgramDialer) Dial(ctx context.Context, apiKey string, opts *interfaces.LiveTranscriptionOptions) (Conn, error) {
	if apiKey == "" {
		return nil, ErrConfiguration
	}

	target, err := LiveURL(d.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	header := http.Header{}
	header.Set("Authorization", "Token "+apiKey)

	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake status %d: %v", ErrConnection, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) WriteAudio(chunk []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, chunk)
}

func (c *wsConn) WriteControl(controlType string) error {
	payload, err := json.Marshal(map[string]string{"type": controlType})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// IsNormalClose reports whether err is the peer closing the stream cleanly
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
