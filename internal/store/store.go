package store

import (
	"context"
	"errors"
	"time"
)

// MessageKind classifies message content.
type MessageKind string

const (
	KindText   MessageKind = "text"
	KindImage  MessageKind = "image"
	KindFile   MessageKind = "file"
	KindSystem MessageKind = "system"
)

// ValidKind reports whether k is a known message kind.
func ValidKind(k MessageKind) bool {
	switch k {
	case KindText, KindImage, KindFile, KindSystem:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a message does not exist or is soft-deleted.
	ErrNotFound = errors.New("message not found")
	// ErrForbidden is returned when a caller mutates a message they did not author.
	ErrForbidden = errors.New("not the message author")
)

// Message is a persisted community chat message.
// Author fields are denormalized snapshots taken at creation time.
type Message struct {
	ID              string
	AuthorID        string
	AuthorName      string
	AuthorAvatarURL string
	Kind            MessageKind
	Body            string
	AttachmentURL   string
	AttachmentName  string
	CreatedAt       time.Time
	IsEdited        bool
	EditedAt        *time.Time
	IsDeleted       bool
	DeletedAt       *time.Time
	ReadBy          []string
}

// MessageStore handles message persistence. It is shared between the live
// gateway and the pull-based REST surface; both observe the same soft-delete
// and pagination rules.
type MessageStore interface {
	// Append persists a new message. ID and CreatedAt are set by the caller.
	Append(ctx context.Context, msg *Message) error

	// ListMessages returns non-deleted messages newest-first, capped at limit.
	// If before is non-nil only messages strictly older than it are returned.
	ListMessages(ctx context.Context, limit int, before *time.Time) ([]*Message, error)

	// GetMessage retrieves a non-deleted message by ID.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// MarkRead adds userID to the message's read set. Adding an already
	// present user is a no-op; changed reports whether the set grew.
	MarkRead(ctx context.Context, id, userID string) (changed bool, err error)

	// EditMessage replaces the body if callerID authored the message.
	// Returns ErrNotFound for absent or deleted messages, ErrForbidden for
	// non-authors. On success the updated message is returned.
	EditMessage(ctx context.Context, id, callerID, newBody string) (*Message, error)

	// DeleteMessage soft-deletes the message if callerID authored it.
	// Same error contract as EditMessage.
	DeleteMessage(ctx context.Context, id, callerID string) error

	// DeleteMessageByAdmin soft-deletes without the author gate. Exposed only
	// to staff identities on the REST surface.
	DeleteMessageByAdmin(ctx context.Context, id string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
