package core

import (
	"time"

	"societygate/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventUserOnline notifies other connections that a user came online.
	EventUserOnline EventKind = iota
	// EventUserOffline notifies remaining connections that a user went offline.
	EventUserOffline
	// EventOnlineUsers delivers the full presence snapshot to a newly connected client.
	EventOnlineUsers
	// EventNewMessage carries a freshly persisted message to every connection.
	EventNewMessage
	// EventMessageRead notifies that a user read a message.
	EventMessageRead
	// EventMessageDeleted notifies that a message was soft-deleted.
	EventMessageDeleted
	// EventMessageEdited notifies that a message body changed.
	EventMessageEdited
	// EventUserTyping is the ephemeral typing indicator; never persisted.
	EventUserTyping
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	Entry     PresenceEntry   // online/offline/typing source
	Entries   []PresenceEntry // EventOnlineUsers snapshot
	Message   *store.Message  // EventNewMessage full record
	MessageID string          // read/deleted/edited target
	UserID    string          // EventMessageRead reader
	NewBody   string          // EventMessageEdited
	EditedAt  time.Time       // EventMessageEdited
	IsTyping  bool            // EventUserTyping
}

// Ack is the single reply a mutating action sends to its invoking connection.
type Ack struct {
	MessageID string
}
