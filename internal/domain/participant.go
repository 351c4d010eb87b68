package domain

// Participant represents one member of the current voice channel.
// Mute/deafen fields are the last broadcast intent, not the live track state.
type Participant struct {
	User          User `json:"user"`
	Muted         bool `json:"muted"`
	Deafened      bool `json:"deafened"`
	ScreenSharing bool `json:"screen_sharing"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(user User) Participant {
	return Participant{User: user}
}
