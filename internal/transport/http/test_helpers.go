package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"societygate/internal/auth"
	"societygate/internal/config"
	"societygate/internal/core"
	"societygate/internal/log"
	"societygate/internal/proto"
	"societygate/internal/store"
	"societygate/internal/store/sqlite"
)

type testEnv struct {
	ts     *httptest.Server
	store  store.Store
	jwtCfg *auth.JWTConfig
}

// newTestEnv spins up the full server over an in-memory SQLite store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	jwtCfg := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test-clients",
		TTL:      time.Hour,
	}
	verifier := auth.NewJWTVerifier(jwtCfg)

	logger := log.New("error")
	gateway := core.NewGateway(core.NewHub(), st, logger)

	server := NewServer(gateway, verifier, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, jwtCfg: jwtCfg}
}

func (e *testEnv) token(t *testing.T, id auth.Identity) string {
	t.Helper()

	token, err := auth.GenerateToken(e.jwtCfg, id)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

// dial opens a WebSocket session. Frames are read through wsClient, which
// buffers out-of-order frames: acks and broadcasts share the socket and the
// write loop interleaves them nondeterministically.
func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *wsClient {
	t.Helper()

	url := e.wsURL()
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	return &wsClient{conn: conn}
}

// outboundFrame mirrors proto.Outbound with raw data for test-side decoding.
type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

type wsClient struct {
	conn    *websocket.Conn
	pending []outboundFrame
}

func (c *wsClient) readSocket(t *testing.T, ctx context.Context) outboundFrame {
	t.Helper()

	var frame outboundFrame
	if err := wsjson.Read(ctx, c.conn, &frame); err != nil {
		t.Fatalf("read ws frame: %v", err)
	}
	return frame
}

// waitEvent returns the data of the first frame carrying the named event.
// Other frames read along the way are kept for later waits.
func (c *wsClient) waitEvent(t *testing.T, ctx context.Context, name string) json.RawMessage {
	t.Helper()

	for i, frame := range c.pending {
		if frame.Type == proto.OutboundTypeEvent && frame.Event == name {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return frame.Data
		}
	}

	for i := 0; i < 20; i++ {
		frame := c.readSocket(t, ctx)
		if frame.Type == proto.OutboundTypeEvent && frame.Event == name {
			return frame.Data
		}
		c.pending = append(c.pending, frame)
	}
	t.Fatalf("event %q never arrived", name)
	return nil
}

// waitAck returns the first ack or error reply, buffering event frames.
func (c *wsClient) waitAck(t *testing.T, ctx context.Context) (proto.AckData, *proto.Error) {
	t.Helper()

	decode := func(frame outboundFrame) (proto.AckData, *proto.Error, bool) {
		switch frame.Type {
		case proto.OutboundTypeAck:
			var ack proto.AckData
			if err := json.Unmarshal(frame.Data, &ack); err != nil {
				t.Fatalf("unmarshal ack: %v", err)
			}
			return ack, nil, true
		case proto.OutboundTypeError:
			return proto.AckData{}, frame.Error, true
		}
		return proto.AckData{}, nil, false
	}

	for i, frame := range c.pending {
		if ack, protoErr, ok := decode(frame); ok {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return ack, protoErr
		}
	}

	for i := 0; i < 20; i++ {
		frame := c.readSocket(t, ctx)
		if ack, protoErr, ok := decode(frame); ok {
			return ack, protoErr
		}
		c.pending = append(c.pending, frame)
	}
	t.Fatal("reply never arrived")
	return proto.AckData{}, nil
}

// hasPendingEvent reports whether a buffered frame carries the named event.
func (c *wsClient) hasPendingEvent(name string) bool {
	for _, frame := range c.pending {
		if frame.Type == proto.OutboundTypeEvent && frame.Event == name {
			return true
		}
	}
	return false
}

func (c *wsClient) sendAction(t *testing.T, ctx context.Context, actionType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal action payload: %v", err)
	}
	if err := wsjson.Write(ctx, c.conn, proto.Inbound{Type: actionType, Data: payload}); err != nil {
		t.Fatalf("write action: %v", err)
	}
}

func decodeInto(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()

	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal event data: %v", err)
	}
}
