package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"societygate/internal/store"
)

// Gateway owns the per-connection action handlers. Every mutating action
// persists first, then fans out to the subscriber set captured at that
// moment, then yields exactly one ack to the invoking connection.
type Gateway struct {
	hub   *Hub
	store store.MessageStore
	log   *zerolog.Logger
}

// NewGateway builds a gateway over the given hub and message store.
func NewGateway(hub *Hub, st store.MessageStore, logger *zerolog.Logger) *Gateway {
	return &Gateway{hub: hub, store: st, log: logger}
}

// Hub exposes the presence registry, mainly for transports and tests.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// Connect registers an authenticated client: others learn the user is
// online, the new connection alone receives the full presence snapshot.
func (g *Gateway) Connect(c *Client) {
	entries := g.hub.Register(c)

	g.hub.BroadcastOthers(c.ConnID, &Event{Kind: EventUserOnline, Entry: c.Entry()})
	c.send(&Event{Kind: EventOnlineUsers, Entries: entries})

	g.log.Info().Str("conn_id", c.ConnID).Str("user_id", c.UserID).Msg("client connected")
}

// Disconnect removes the client's presence entry and announces the user
// offline. Safe to call more than once; only the first removal broadcasts.
func (g *Gateway) Disconnect(c *Client) {
	if !g.hub.Unregister(c.ConnID) {
		return
	}

	g.hub.BroadcastAll(&Event{Kind: EventUserOffline, Entry: c.Entry()})
	g.log.Info().Str("conn_id", c.ConnID).Str("user_id", c.UserID).Msg("client disconnected")
}

// SendMessageParams carries the sendMessage action payload.
type SendMessageParams struct {
	Body           string
	Kind           store.MessageKind
	AttachmentURL  string
	AttachmentName string
}

// SendMessage appends a message authored by the client and broadcasts the
// canonical record to every connection, the sender included.
func (g *Gateway) SendMessage(ctx context.Context, c *Client, p SendMessageParams) (*Ack, *CoreError) {
	if !g.hub.IsRegistered(c.ConnID) {
		return nil, coreError(ErrCodeUnauthorized, "no presence entry for connection")
	}

	kind := p.Kind
	if kind == "" {
		kind = store.KindText
	}
	if !store.ValidKind(kind) {
		return nil, coreError(ErrCodeBadRequest, "unknown message kind")
	}
	if kind == store.KindText && p.Body == "" {
		return nil, coreError(ErrCodeBadRequest, "text message requires a body")
	}

	msg := &store.Message{
		ID:              uuid.NewString(),
		AuthorID:        c.UserID,
		AuthorName:      c.DisplayName,
		AuthorAvatarURL: c.AvatarURL,
		Kind:            kind,
		Body:            p.Body,
		AttachmentURL:   p.AttachmentURL,
		AttachmentName:  p.AttachmentName,
		CreatedAt:       time.Now(),
		ReadBy:          []string{},
	}

	if err := g.store.Append(ctx, msg); err != nil {
		g.log.Error().Err(err).Str("user_id", c.UserID).Msg("append message")
		return nil, coreError(ErrCodeInternal, "failed to send message")
	}

	g.hub.BroadcastAll(&Event{Kind: EventNewMessage, Message: msg})
	return &Ack{MessageID: msg.ID}, nil
}

// MarkRead adds the caller to a message's read set. The fanout fires only
// when the set actually changed; the ack is success either way.
func (g *Gateway) MarkRead(ctx context.Context, c *Client, messageID string) (*Ack, *CoreError) {
	if !g.hub.IsRegistered(c.ConnID) {
		return nil, coreError(ErrCodeUnauthorized, "no presence entry for connection")
	}

	changed, err := g.store.MarkRead(ctx, messageID, c.UserID)
	if err != nil {
		return nil, g.mapStoreError(err, c, "mark read")
	}

	if changed {
		g.hub.BroadcastAll(&Event{Kind: EventMessageRead, MessageID: messageID, UserID: c.UserID})
	}
	return &Ack{}, nil
}

// Typing broadcasts the ephemeral typing indicator to everyone but the
// sender. No persistence, no ack; an unregistered caller is ignored.
func (g *Gateway) Typing(c *Client, isTyping bool) {
	if !g.hub.IsRegistered(c.ConnID) {
		return
	}

	g.hub.BroadcastOthers(c.ConnID, &Event{
		Kind:     EventUserTyping,
		Entry:    c.Entry(),
		IsTyping: isTyping,
	})
}

// EditMessage rewrites a message body under the author gate.
func (g *Gateway) EditMessage(ctx context.Context, c *Client, messageID, newBody string) (*Ack, *CoreError) {
	if !g.hub.IsRegistered(c.ConnID) {
		return nil, coreError(ErrCodeUnauthorized, "no presence entry for connection")
	}
	if newBody == "" {
		return nil, coreError(ErrCodeBadRequest, "new body is required")
	}

	updated, err := g.store.EditMessage(ctx, messageID, c.UserID, newBody)
	if err != nil {
		return nil, g.mapStoreError(err, c, "edit message")
	}

	editedAt := time.Now()
	if updated.EditedAt != nil {
		editedAt = *updated.EditedAt
	}
	g.hub.BroadcastAll(&Event{
		Kind:      EventMessageEdited,
		MessageID: messageID,
		NewBody:   updated.Body,
		EditedAt:  editedAt,
	})
	return &Ack{}, nil
}

// DeleteMessage soft-deletes a message under the author gate.
func (g *Gateway) DeleteMessage(ctx context.Context, c *Client, messageID string) (*Ack, *CoreError) {
	if !g.hub.IsRegistered(c.ConnID) {
		return nil, coreError(ErrCodeUnauthorized, "no presence entry for connection")
	}

	if err := g.store.DeleteMessage(ctx, messageID, c.UserID); err != nil {
		return nil, g.mapStoreError(err, c, "delete message")
	}

	g.hub.BroadcastAll(&Event{Kind: EventMessageDeleted, MessageID: messageID})
	return &Ack{}, nil
}

// mapStoreError is the single translation point for the author gate shared
// by edit and delete, so the two actions cannot diverge.
func (g *Gateway) mapStoreError(err error, c *Client, action string) *CoreError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return coreError(ErrCodeNotFound, "message not found")
	case errors.Is(err, store.ErrForbidden):
		return coreError(ErrCodeForbidden, "only the author may modify a message")
	default:
		g.log.Error().Err(err).Str("user_id", c.UserID).Msg(action)
		return coreError(ErrCodeInternal, "persistence failure, please retry")
	}
}
