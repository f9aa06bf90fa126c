package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"societygate/internal/proto"
	"societygate/internal/store"
)

const defaultPageLimit = 50

// ChatHandlers is the pull-based chat surface for clients that only poll.
// It reads the same store as the live gateway and observes the same
// soft-delete and pagination rules, but bypasses the broadcast fanout.
type ChatHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(st store.MessageStore, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{store: st, log: logger}
}

// ListMessages returns a page of non-deleted messages, newest-first.
// GET /api/chat/messages?limit=&before=
func (h *ChatHandlers) ListMessages(c *gin.Context) {
	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before cursor, expected RFC3339"})
			return
		}
		before = &parsed
	}

	messages, err := h.store.ListMessages(c.Request.Context(), limit, before)
	if err != nil {
		h.log.Error().Err(err).Msg("list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]proto.Message, 0, len(messages))
	for _, msg := range messages {
		out = append(out, messageToWire(msg))
	}
	c.JSON(http.StatusOK, out)
}

// GetMessage returns a single non-deleted message.
// GET /api/chat/messages/:id
func (h *ChatHandlers) GetMessage(c *gin.Context) {
	msg, err := h.store.GetMessage(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		h.log.Error().Err(err).Msg("get message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messageToWire(msg))
}

// SuccessResponse acknowledges a REST mutation.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// DeleteMessage soft-deletes a message. Residents may delete their own
// messages; staff and admin identities may delete anyone's.
// DELETE /api/chat/messages/:id
func (h *ChatHandlers) DeleteMessage(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
		return
	}

	id := c.Param("id")
	var err error
	if identity.IsAdmin() {
		err = h.store.DeleteMessageByAdmin(c.Request.Context(), id)
	} else {
		err = h.store.DeleteMessage(c.Request.Context(), id, identity.UserID)
	}

	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
		case errors.Is(err, store.ErrForbidden):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the author may delete a message"})
		default:
			h.log.Error().Err(err).Str("message_id", id).Msg("delete message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}
