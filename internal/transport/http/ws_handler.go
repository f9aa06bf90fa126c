package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"societygate/internal/auth"
	"societygate/internal/core"
	"societygate/internal/proto"
	"societygate/internal/store"
	"societygate/internal/utils"
)

// WSHandler upgrades HTTP connections, drives the credential handshake, and
// bridges the socket to a core.Client.
type WSHandler struct {
	gateway  *core.Gateway
	verifier auth.Verifier
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gateway *core.Gateway, verifier auth.Verifier, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{gateway: gateway, verifier: verifier, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	identity, err := h.verifier.Verify(ctx, handshakeCredential(r))
	if err != nil {
		// Hard failure: nothing registered, nothing broadcast.
		h.log.Warn().Err(err).Msg("ws handshake rejected")
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	client := core.NewClient(utils.NewConnID(), identity.UserID, identity.DisplayName, identity.AvatarURL)
	h.gateway.Connect(client)
	defer h.gateway.Disconnect(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Acks flow here so the write loop stays the sole socket writer.
	replies := make(chan proto.Outbound, 8)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, replies)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, replies)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ConnID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// handshakeCredential extracts the opaque bearer credential from the
// Authorization header or, for browser clients, the token query parameter.
func handshakeCredential(r *stdhttp.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, replies chan<- proto.Outbound) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		reply := h.dispatch(ctx, client, inbound)
		if reply == nil {
			continue
		}

		select {
		case replies <- *reply:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, replies <-chan proto.Outbound) error {
	for {
		select {
		case reply := <-replies:
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ConnID).Msg("write ws reply")
				return err
			}
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ConnID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// dispatch routes one inbound action. Mutating actions yield exactly one
// reply frame; typing yields none.
func (h *WSHandler) dispatch(ctx context.Context, client *core.Client, inbound proto.Inbound) *proto.Outbound {
	switch inbound.Type {
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("invalid sendMessage payload")
		}
		ack, cerr := h.gateway.SendMessage(ctx, client, core.SendMessageParams{
			Body:           data.Body,
			Kind:           store.MessageKind(data.Kind),
			AttachmentURL:  data.AttachmentURL,
			AttachmentName: data.AttachmentName,
		})
		return ackOrError(ack, cerr)

	case proto.InboundTypeMarkAsRead:
		var data proto.MarkAsReadData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.MessageID == "" {
			return badRequest("messageId is required")
		}
		ack, cerr := h.gateway.MarkRead(ctx, client, data.MessageID)
		return ackOrError(ack, cerr)

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			// No ack channel exists for typing; drop silently.
			return nil
		}
		h.gateway.Typing(client, data.IsTyping)
		return nil

	case proto.InboundTypeDeleteMessage:
		var data proto.DeleteMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.MessageID == "" {
			return badRequest("messageId is required")
		}
		ack, cerr := h.gateway.DeleteMessage(ctx, client, data.MessageID)
		return ackOrError(ack, cerr)

	case proto.InboundTypeEditMessage:
		var data proto.EditMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil || data.MessageID == "" {
			return badRequest("messageId is required")
		}
		ack, cerr := h.gateway.EditMessage(ctx, client, data.MessageID, data.NewBody)
		return ackOrError(ack, cerr)

	default:
		return badRequest("unknown action type")
	}
}

func ackOrError(ack *core.Ack, cerr *core.CoreError) *proto.Outbound {
	if cerr != nil {
		out := errorOutbound(cerr)
		return &out
	}
	out := ackOutbound(ack)
	return &out
}

func badRequest(msg string) *proto.Outbound {
	return &proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg},
	}
}
