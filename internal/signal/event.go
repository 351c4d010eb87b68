// Package signal defines the typed events exchanged with the signaling relay.
// Payloads are decoded once at the transport boundary; downstream code
// switches on the concrete variant, never on raw JSON fields.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/jlgrimes/quarrel-voice/internal/domain"
)

// Wire names of the voice-namespaced events.
const (
	TypeJoin         = "voice:join"
	TypeLeave        = "voice:leave"
	TypeState        = "voice:state"
	TypeUserJoined   = "voice:user-joined"
	TypeUserLeft     = "voice:user-left"
	TypeOffer        = "voice:offer"
	TypeAnswer       = "voice:answer"
	TypeICECandidate = "voice:ice-candidate"
	TypeMute         = "voice:mute"
	TypeShareStarted = "voice:screen-share-started"
	TypeShareStopped = "voice:screen-share-stopped"
)

var ErrUnknownType = errors.New("unknown event type")

// Event is the closed set of signaling messages. Every variant reports its
// wire name through EventType.
type Event interface {
	EventType() string
}

type Join struct {
	ChannelID   domain.ChannelID `json:"channel_id"`
	DisplayName string           `json:"display_name,omitempty"`
}

type Leave struct {
	ChannelID domain.ChannelID `json:"channel_id"`
}

// State is the full roster snapshot sent to a client right after it joins.
// Participants includes the joiner's own record; Self repeats it so the
// client knows which entry is its relay-assigned identity.
type State struct {
	ChannelID    domain.ChannelID     `json:"channel_id"`
	Self         domain.Participant   `json:"self,omitempty"`
	Participants []domain.Participant `json:"participants"`
}

type UserJoined struct {
	ChannelID   domain.ChannelID   `json:"channel_id"`
	Participant domain.Participant `json:"participant"`
}

type UserLeft struct {
	ChannelID domain.ChannelID `json:"channel_id"`
	UserID    domain.UserID    `json:"user_id"`
}

// Offer carries an SDP offer. Outbound events set To; the relay rewrites the
// addressing so the receiver sees From.
type Offer struct {
	To   domain.UserID `json:"to,omitempty"`
	From domain.UserID `json:"from,omitempty"`
	SDP  string        `json:"sdp"`
}

type Answer struct {
	To   domain.UserID `json:"to,omitempty"`
	From domain.UserID `json:"from,omitempty"`
	SDP  string        `json:"sdp"`
}

type ICECandidate struct {
	To        domain.UserID           `json:"to,omitempty"`
	From      domain.UserID           `json:"from,omitempty"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// Mute announces local mute/deafen intent. UserID is empty on the way out;
// the relay stamps the sender before broadcasting.
type Mute struct {
	UserID   domain.UserID `json:"user_id,omitempty"`
	Muted    bool          `json:"is_muted"`
	Deafened bool          `json:"is_deafened"`
}

type ShareStarted struct {
	ChannelID domain.ChannelID `json:"channel_id"`
	UserID    domain.UserID    `json:"user_id,omitempty"`
}

type ShareStopped struct {
	ChannelID domain.ChannelID `json:"channel_id"`
	UserID    domain.UserID    `json:"user_id,omitempty"`
}

func (Join) EventType() string         { return TypeJoin }
func (Leave) EventType() string        { return TypeLeave }
func (State) EventType() string        { return TypeState }
func (UserJoined) EventType() string   { return TypeUserJoined }
func (UserLeft) EventType() string     { return TypeUserLeft }
func (Offer) EventType() string        { return TypeOffer }
func (Answer) EventType() string       { return TypeAnswer }
func (ICECandidate) EventType() string { return TypeICECandidate }
func (Mute) EventType() string         { return TypeMute }
func (ShareStarted) EventType() string { return TypeShareStarted }
func (ShareStopped) EventType() string { return TypeShareStopped }

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps an event into the `{"type": ..., "data": ...}` wire envelope.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.EventType(), err)
	}
	return json.Marshal(envelope{Type: ev.EventType(), Data: data})
}

// Decode parses one wire message into its typed variant.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var ev Event
	switch env.Type {
	case TypeJoin:
		ev = &Join{}
	case TypeLeave:
		ev = &Leave{}
	case TypeState:
		ev = &State{}
	case TypeUserJoined:
		ev = &UserJoined{}
	case TypeUserLeft:
		ev = &UserLeft{}
	case TypeOffer:
		ev = &Offer{}
	case TypeAnswer:
		ev = &Answer{}
	case TypeICECandidate:
		ev = &ICECandidate{}
	case TypeMute:
		ev = &Mute{}
	case TypeShareStarted:
		ev = &ShareStarted{}
	case TypeShareStopped:
		ev = &ShareStopped{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return deref(ev), nil
}

// deref returns the value variant so callers can type-switch without
// caring whether the event crossed the wire or was built locally.
func deref(ev Event) Event {
	switch v := ev.(type) {
	case *Join:
		return *v
	case *Leave:
		return *v
	case *State:
		return *v
	case *UserJoined:
		return *v
	case *UserLeft:
		return *v
	case *Offer:
		return *v
	case *Answer:
		return *v
	case *ICECandidate:
		return *v
	case *Mute:
		return *v
	case *ShareStarted:
		return *v
	case *ShareStopped:
		return *v
	default:
		return ev
	}
}
