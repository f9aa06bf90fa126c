package http

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"societygate/internal/auth"
	"societygate/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWSRejectsInvalidCredential(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ghost := env.dial(t, ctx, "garbage-token")

	// The socket is terminated without any payload.
	var frame outboundFrame
	err := wsjson.Read(ctx, ghost.conn, &frame)
	if err == nil {
		t.Fatalf("expected connection close, got frame %+v", frame)
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v (%v)", status, err)
	}

	// The failed handshake left no presence entry behind.
	alice := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-alice", DisplayName: "alice"}))
	var snapshot proto.EventOnlineUsers
	decodeInto(t, alice.waitEvent(t, ctx, proto.EventNameOnlineUsers), &snapshot)
	if len(snapshot.Users) != 1 || snapshot.Users[0].UserID != "u-alice" {
		t.Fatalf("expected snapshot of alice only, got %+v", snapshot.Users)
	}
}

func TestWSPresenceSnapshotPerConnection(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := []string{"u-1", "u-2", "u-3"}
	for i, id := range users {
		client := env.dial(t, ctx, env.token(t, auth.Identity{UserID: id, DisplayName: id}))

		var snapshot proto.EventOnlineUsers
		decodeInto(t, client.waitEvent(t, ctx, proto.EventNameOnlineUsers), &snapshot)
		if len(snapshot.Users) != i+1 {
			t.Fatalf("connection %d: expected %d entries, got %d", i+1, i+1, len(snapshot.Users))
		}

		includesSelf := false
		for _, u := range snapshot.Users {
			if u.UserID == id {
				includesSelf = true
			}
		}
		if !includesSelf {
			t.Fatalf("connection %d snapshot missing itself: %+v", i+1, snapshot.Users)
		}
	}
}

// TestWSChatScenario walks the full two-user session: presence exchange,
// send, forbidden edit by a non-author, author edit, and disconnect.
func TestWSChatScenario(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-alice", DisplayName: "alice"}))

	var snapshot proto.EventOnlineUsers
	decodeInto(t, alice.waitEvent(t, ctx, proto.EventNameOnlineUsers), &snapshot)
	if len(snapshot.Users) != 1 {
		t.Fatalf("alice's snapshot should contain only herself, got %+v", snapshot.Users)
	}

	bob := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-bob", DisplayName: "bob"}))

	var online proto.EventUserPresence
	decodeInto(t, alice.waitEvent(t, ctx, proto.EventNameUserOnline), &online)
	if online.UserID != "u-bob" || online.DisplayName != "bob" {
		t.Fatalf("unexpected userOnline on alice: %+v", online)
	}

	decodeInto(t, bob.waitEvent(t, ctx, proto.EventNameOnlineUsers), &snapshot)
	if len(snapshot.Users) != 2 {
		t.Fatalf("bob's snapshot should contain both users, got %+v", snapshot.Users)
	}

	// Alice sends "hi"; both receive the broadcast, alice also gets the ack.
	alice.sendAction(t, ctx, proto.InboundTypeSendMessage, proto.SendMessageData{Body: "hi"})

	ack, protoErr := alice.waitAck(t, ctx)
	if protoErr != nil {
		t.Fatalf("send failed: %+v", protoErr)
	}
	if !ack.Success || ack.MessageID == "" {
		t.Fatalf("bad ack: %+v", ack)
	}

	for name, client := range map[string]*wsClient{"alice": alice, "bob": bob} {
		var msg proto.Message
		decodeInto(t, client.waitEvent(t, ctx, proto.EventNameNewMessage), &msg)
		if msg.ID != ack.MessageID || msg.Body != "hi" || msg.AuthorID != "u-alice" {
			t.Fatalf("%s got unexpected newMessage: %+v", name, msg)
		}
	}

	// Bob tries to edit alice's message: forbidden, no broadcast.
	bob.sendAction(t, ctx, proto.InboundTypeEditMessage, proto.EditMessageData{
		MessageID: ack.MessageID,
		NewBody:   "hijacked",
	})
	if _, protoErr := bob.waitAck(t, ctx); protoErr == nil || protoErr.Code != "forbidden" {
		t.Fatalf("expected forbidden error, got %+v", protoErr)
	}

	// Alice edits her own message; both receive the edit with her body. The
	// first messageEdited each side sees must carry it, which also proves
	// bob's forbidden attempt never fanned out.
	alice.sendAction(t, ctx, proto.InboundTypeEditMessage, proto.EditMessageData{
		MessageID: ack.MessageID,
		NewBody:   "hello",
	})
	if _, protoErr := alice.waitAck(t, ctx); protoErr != nil {
		t.Fatalf("author edit failed: %+v", protoErr)
	}

	for name, client := range map[string]*wsClient{"alice": alice, "bob": bob} {
		var edited proto.EventMessageEdited
		decodeInto(t, client.waitEvent(t, ctx, proto.EventNameMessageEdited), &edited)
		if edited.MessageID != ack.MessageID || edited.NewBody != "hello" {
			t.Fatalf("%s got unexpected messageEdited: %+v", name, edited)
		}
	}

	// Alice disconnects; bob sees her go offline.
	alice.conn.Close(websocket.StatusNormalClosure, "bye")

	var offline proto.EventUserPresence
	decodeInto(t, bob.waitEvent(t, ctx, proto.EventNameUserOffline), &offline)
	if offline.UserID != "u-alice" {
		t.Fatalf("unexpected userOffline: %+v", offline)
	}
}

func TestWSTypingExcludesSender(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-alice", DisplayName: "alice"}))
	alice.waitEvent(t, ctx, proto.EventNameOnlineUsers)
	bob := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-bob", DisplayName: "bob"}))
	bob.waitEvent(t, ctx, proto.EventNameOnlineUsers)
	alice.waitEvent(t, ctx, proto.EventNameUserOnline)

	alice.sendAction(t, ctx, proto.InboundTypeTyping, proto.TypingData{IsTyping: true})

	var typing proto.EventUserTyping
	decodeInto(t, bob.waitEvent(t, ctx, proto.EventNameUserTyping), &typing)
	if typing.UserID != "u-alice" || !typing.IsTyping {
		t.Fatalf("unexpected userTyping: %+v", typing)
	}

	// Typing has no ack and must not echo to the sender. A follow-up send
	// flushes alice's stream: by the time her own newMessage arrives, a
	// typing echo would already have been buffered.
	alice.sendAction(t, ctx, proto.InboundTypeSendMessage, proto.SendMessageData{Body: "x"})
	if _, protoErr := alice.waitAck(t, ctx); protoErr != nil {
		t.Fatalf("send failed: %+v", protoErr)
	}
	alice.waitEvent(t, ctx, proto.EventNameNewMessage)
	if alice.hasPendingEvent(proto.EventNameUserTyping) {
		t.Fatal("typing indicator echoed back to the sender")
	}
}

func TestWSMarkReadBroadcastOnlyOnce(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-alice", DisplayName: "alice"}))
	alice.waitEvent(t, ctx, proto.EventNameOnlineUsers)
	bob := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-bob", DisplayName: "bob"}))
	bob.waitEvent(t, ctx, proto.EventNameOnlineUsers)

	alice.sendAction(t, ctx, proto.InboundTypeSendMessage, proto.SendMessageData{Body: "hi"})
	ack, protoErr := alice.waitAck(t, ctx)
	if protoErr != nil {
		t.Fatalf("send failed: %+v", protoErr)
	}
	alice.waitEvent(t, ctx, proto.EventNameNewMessage)

	// First read: acked and broadcast.
	bob.sendAction(t, ctx, proto.InboundTypeMarkAsRead, proto.MarkAsReadData{MessageID: ack.MessageID})
	if _, protoErr := bob.waitAck(t, ctx); protoErr != nil {
		t.Fatalf("first markAsRead failed: %+v", protoErr)
	}

	var read proto.EventMessageRead
	decodeInto(t, alice.waitEvent(t, ctx, proto.EventNameMessageRead), &read)
	if read.MessageID != ack.MessageID || read.UserID != "u-bob" {
		t.Fatalf("unexpected messageRead: %+v", read)
	}

	// Second read: acked, but no broadcast. A sentinel message flushes
	// alice's stream; a repeat messageRead would be buffered before it.
	bob.sendAction(t, ctx, proto.InboundTypeMarkAsRead, proto.MarkAsReadData{MessageID: ack.MessageID})
	if _, protoErr := bob.waitAck(t, ctx); protoErr != nil {
		t.Fatalf("second markAsRead failed: %+v", protoErr)
	}

	bob.sendAction(t, ctx, proto.InboundTypeSendMessage, proto.SendMessageData{Body: "sentinel"})
	alice.waitEvent(t, ctx, proto.EventNameNewMessage)
	if alice.hasPendingEvent(proto.EventNameMessageRead) {
		t.Fatal("no-op markAsRead should not broadcast")
	}

	// Stored read set holds bob exactly once.
	msg, err := env.store.GetMessage(ctx, ack.MessageID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if len(msg.ReadBy) != 1 || msg.ReadBy[0] != "u-bob" {
		t.Fatalf("expected read set [u-bob], got %v", msg.ReadBy)
	}
}

func TestWSUnknownActionGetsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-1", DisplayName: "one"}))
	client.waitEvent(t, ctx, proto.EventNameOnlineUsers)

	client.sendAction(t, ctx, "frobnicate", struct{}{})
	if _, protoErr := client.waitAck(t, ctx); protoErr == nil || protoErr.Code != "bad_request" {
		t.Fatalf("expected bad_request, got %+v", protoErr)
	}
}

func TestWSDeleteMessageFanout(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-alice", DisplayName: "alice"}))
	alice.waitEvent(t, ctx, proto.EventNameOnlineUsers)
	bob := env.dial(t, ctx, env.token(t, auth.Identity{UserID: "u-bob", DisplayName: "bob"}))
	bob.waitEvent(t, ctx, proto.EventNameOnlineUsers)

	alice.sendAction(t, ctx, proto.InboundTypeSendMessage, proto.SendMessageData{Body: "going away"})
	ack, protoErr := alice.waitAck(t, ctx)
	if protoErr != nil {
		t.Fatalf("send failed: %+v", protoErr)
	}

	// Non-author delete is refused.
	bob.sendAction(t, ctx, proto.InboundTypeDeleteMessage, proto.DeleteMessageData{MessageID: ack.MessageID})
	if _, protoErr := bob.waitAck(t, ctx); protoErr == nil || protoErr.Code != "forbidden" {
		t.Fatalf("expected forbidden, got %+v", protoErr)
	}

	alice.sendAction(t, ctx, proto.InboundTypeDeleteMessage, proto.DeleteMessageData{MessageID: ack.MessageID})
	if _, protoErr := alice.waitAck(t, ctx); protoErr != nil {
		t.Fatalf("author delete failed: %+v", protoErr)
	}

	for name, client := range map[string]*wsClient{"alice": alice, "bob": bob} {
		var deleted proto.EventMessageDeleted
		decodeInto(t, client.waitEvent(t, ctx, proto.EventNameMessageDeleted), &deleted)
		if deleted.MessageID != ack.MessageID {
			t.Fatalf("%s got unexpected messageDeleted: %+v", name, deleted)
		}
	}
}
