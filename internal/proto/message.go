package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for actions coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeSendMessage   = "sendMessage"
	InboundTypeMarkAsRead    = "markAsRead"
	InboundTypeTyping        = "typing"
	InboundTypeDeleteMessage = "deleteMessage"
	InboundTypeEditMessage   = "editMessage"

	OutboundTypeAck   = "ack"
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameUserOnline     = "userOnline"
	EventNameUserOffline    = "userOffline"
	EventNameOnlineUsers    = "onlineUsers"
	EventNameNewMessage     = "newMessage"
	EventNameMessageRead    = "messageRead"
	EventNameMessageDeleted = "messageDeleted"
	EventNameMessageEdited  = "messageEdited"
	EventNameUserTyping     = "userTyping"
)

// SendMessageData is the sendMessage action payload.
type SendMessageData struct {
	Body           string `json:"body,omitempty"`
	Kind           string `json:"kind,omitempty"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
	AttachmentName string `json:"attachmentName,omitempty"`
}

// MarkAsReadData is the markAsRead action payload.
type MarkAsReadData struct {
	MessageID string `json:"messageId"`
}

// TypingData is the typing action payload.
type TypingData struct {
	IsTyping bool `json:"isTyping"`
}

// DeleteMessageData is the deleteMessage action payload.
type DeleteMessageData struct {
	MessageID string `json:"messageId"`
}

// EditMessageData is the editMessage action payload.
type EditMessageData struct {
	MessageID string `json:"messageId"`
	NewBody   string `json:"newBody"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AckData is the single reply a mutating action sends to its invoking connection.
type AckData struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Message is the canonical message record on the wire, shared by the
// newMessage event and the REST surface.
type Message struct {
	ID              string     `json:"id"`
	AuthorID        string     `json:"authorId"`
	AuthorName      string     `json:"authorName"`
	AuthorAvatarURL string     `json:"authorAvatarUrl,omitempty"`
	Kind            string     `json:"kind"`
	Body            string     `json:"body,omitempty"`
	AttachmentURL   string     `json:"attachmentUrl,omitempty"`
	AttachmentName  string     `json:"attachmentName,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	IsEdited        bool       `json:"isEdited"`
	EditedAt        *time.Time `json:"editedAt,omitempty"`
	ReadBy          []string   `json:"readBy"`
}

// OnlineUser is one presence entry on the wire.
type OnlineUser struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// EventUserPresence notifies that a user came online or went offline.
type EventUserPresence struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// EventOnlineUsers delivers the presence snapshot to a newly connected client.
type EventOnlineUsers struct {
	Users []OnlineUser `json:"users"`
}

// EventMessageRead notifies that a user read a message.
type EventMessageRead struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// EventMessageDeleted notifies that a message was deleted.
type EventMessageDeleted struct {
	MessageID string `json:"messageId"`
}

// EventMessageEdited notifies that a message body changed.
type EventMessageEdited struct {
	MessageID string    `json:"messageId"`
	NewBody   string    `json:"newBody"`
	EditedAt  time.Time `json:"editedAt"`
}

// EventUserTyping is the ephemeral typing indicator.
type EventUserTyping struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsTyping    bool   `json:"isTyping"`
}
