package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Signaler carries capture control messages to the remote microphone owner
type Signaler interface {
	RequestCapture(c Constraints) error
	StopCapture() error
}

var errNoPendingCapture = errors.New("no capture request pending")

type grantResult struct {
	handle *captureHandle
	err    error
}

// RemoteDevice is a microphone on the far side of a connection (a browser tab).
// Acquire asks for capture through the Signaler and waits for Grant or Deny;
// the connection then delivers audio through Push.
type RemoteDevice struct {
	signaler    Signaler
	bufferSize  int
	constraints Constraints
	logger      zerolog.Logger

	mu           sync.Mutex
	pending      chan grantResult
	live         *captureHandle
	disconnected bool
}

// NewRemoteDevice creates a device driven by signaler
func NewRemoteDevice(signaler Signaler, bufferSize int, logger zerolog.Logger) *RemoteDevice {
	return &RemoteDevice{
		signaler:   signaler,
		bufferSize: bufferSize,
		logger:     logger.With().Str("component", "remote_device").Logger(),
	}
}

// Acquire requests a capture and blocks until the remote side answers or ctx ends
func (d *RemoteDevice) Acquire(ctx context.Context, c Constraints) (Handle, error) {
	d.mu.Lock()
	if d.disconnected {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: remote disconnected", ErrDeviceUnavailable)
	}
	if d.live != nil || d.pending != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: capture already in progress", ErrDeviceUnavailable)
	}
	pending := make(chan grantResult, 1)
	d.pending = pending
	d.constraints = c
	d.mu.Unlock()

	if err := d.signaler.RequestCapture(c); err != nil {
		d.clearPending(pending)
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	select {
	case result := <-pending:
		if result.err != nil {
			return nil, result.err
		}
		return result.handle, nil

	case <-ctx.Done():
		d.clearPending(pending)
		// A grant may have raced the cancellation
		select {
		case result := <-pending:
			if result.handle != nil {
				result.handle.Release()
				return nil, ctx.Err()
			}
		default:
		}
		if err := d.signaler.StopCapture(); err != nil {
			d.logger.Debug().Err(err).Msg("Failed to cancel capture request")
		}
		return nil, ctx.Err()
	}
}

func (d *RemoteDevice) clearPending(pending chan grantResult) {
	d.mu.Lock()
	if d.pending == pending {
		d.pending = nil
	}
	d.mu.Unlock()
}

// Grant answers a pending Acquire with a live capture producing mimeType.
// Audio pushed after Grant returns is buffered for the new handle.
func (d *RemoteDevice) Grant(mimeType string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return errNoPendingCapture
	}

	source := Source{
		MimeType:   mimeType,
		SampleRate: d.constraints.SampleRate,
		Channels:   d.constraints.Channels,
	}
	if source.IsPCM() {
		source.MimeType = ""
	}

	var handle *captureHandle
	handle = newCaptureHandle(source, d.bufferSize, d.logger, func() {
		d.released(handle)
	})
	d.live = handle
	d.pending <- grantResult{handle: handle}
	d.pending = nil

	d.logger.Info().Str("mime_type", mimeType).Msg("Remote capture granted")
	return nil
}

// Deny answers a pending Acquire with ErrDeviceUnavailable
func (d *RemoteDevice) Deny(reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		return errNoPendingCapture
	}
	d.pending <- grantResult{err: fmt.Errorf("%w: %s", ErrDeviceUnavailable, reason)}
	d.pending = nil

	d.logger.Info().Str("reason", reason).Msg("Remote capture denied")
	return nil
}

// Fail reports a capture error from the remote side. A pending Acquire fails
// with ErrDeviceUnavailable; a live capture ends with ErrCaptureLost.
func (d *RemoteDevice) Fail(reason string) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	live := d.live
	d.mu.Unlock()

	if pending != nil {
		pending <- grantResult{err: fmt.Errorf("%w: %s", ErrDeviceUnavailable, reason)}
		return
	}
	if live != nil {
		live.fail(fmt.Errorf("%w: %s", ErrCaptureLost, reason))
	}
}

// Push delivers captured audio. Returns false when no capture is live.
func (d *RemoteDevice) Push(data []byte) bool {
	d.mu.Lock()
	live := d.live
	d.mu.Unlock()

	if live == nil {
		return false
	}
	live.write(data)
	return true
}

// Disconnect fails any pending or live capture; the device cannot be used afterwards
func (d *RemoteDevice) Disconnect() {
	d.mu.Lock()
	d.disconnected = true
	pending := d.pending
	d.pending = nil
	live := d.live
	d.mu.Unlock()

	if pending != nil {
		pending <- grantResult{err: fmt.Errorf("%w: remote disconnected", ErrDeviceUnavailable)}
	}
	if live != nil {
		live.fail(fmt.Errorf("%w: remote disconnected", ErrCaptureLost))
	}
}

// Capturing reports whether a live handle exists
func (d *RemoteDevice) Capturing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live != nil
}

func (d *RemoteDevice) released(handle *captureHandle) {
	d.mu.Lock()
	if d.live == handle {
		d.live = nil
	}
	disconnected := d.disconnected
	d.mu.Unlock()

	if disconnected {
		return
	}
	if err := d.signaler.StopCapture(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to signal capture stop")
	}
}
