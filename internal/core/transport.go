package core

import "github.com/jlgrimes/quarrel-voice/internal/signal"

// Transport abstracts the bidirectional signaling relay connection.
// Sends are fire-and-forget; no ack is awaited except implicitly via the
// resulting inbound event. Owned by the adapter; the adapter must Close() it.
type Transport interface {
	Send(signal.Event) error
	// Events delivers inbound events addressed to this client. The channel
	// is closed when the underlying connection goes away.
	Events() <-chan signal.Event
	Close()
}
