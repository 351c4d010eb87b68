package voice

import (
	"errors"
	"fmt"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

var (
	ErrNotInChannel = errors.New("not in a voice channel")
	ErrShareBusy    = errors.New("another participant is sharing the screen")
)

// DeviceError wraps a capture failure (permission denied, no device).
// It aborts the operation that needed the device and is never retried.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("device error: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// NegotiationError wraps a malformed or unexpected SDP/ICE failure on one
// peer link. It tears down that link only; other peers are unaffected.
type NegotiationError struct {
	Remote domain.UserID
	Err    error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation with %s: %v", e.Remote, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
