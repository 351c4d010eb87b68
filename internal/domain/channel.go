package domain

type ChannelID string

// Channel identifies a voice channel on the directory server.
// Membership lives in the session roster, not here.
type Channel struct {
	ID   ChannelID
	Name string
}
