package core

// PresenceEntry describes one live, authenticated connection.
// A user with two open connections appears as two entries.
type PresenceEntry struct {
	ConnID      string
	UserID      string
	DisplayName string
}

// Client is a connected chat participant as seen by the core layer.
type Client struct {
	ConnID      string
	UserID      string
	DisplayName string
	AvatarURL   string
	Events      chan *Event
}

// NewClient constructs a client with a bounded events channel. The buffer
// caps per-connection outbound memory during burst fanout.
func NewClient(connID, userID, displayName, avatarURL string) *Client {
	return &Client{
		ConnID:      connID,
		UserID:      userID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Events:      make(chan *Event, 32),
	}
}

// Entry returns the presence entry for this client.
func (c *Client) Entry() PresenceEntry {
	return PresenceEntry{
		ConnID:      c.ConnID,
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
	}
}

func (c *Client) send(event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
