// Command ws_smoke connects to a running societygate server, sends one
// message, and prints everything it receives until the newMessage broadcast
// comes back. Mint a token first with `societygate token --user tester`.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"societygate/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "identity token (required)")
	text := flag.String("text", "hello from smoke test", "message body to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("--token is required; mint one with `societygate token --user tester`")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+*token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.SendMessageData{Body: *text})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSendMessage, Data: payload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()

		if outbound.Error != nil {
			return fmt.Errorf("server error: %s (%s)", outbound.Error.Msg, outbound.Error.Code)
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			return fmt.Errorf("marshal outbound data: %w", err)
		}

		switch outbound.Event {
		case proto.EventNameOnlineUsers:
			var evt proto.EventOnlineUsers
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("Online: %d user(s)\n", len(evt.Users))
			}
		case proto.EventNameUserOnline:
			var evt proto.EventUserPresence
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("Online: %s (%s)\n", evt.DisplayName, evt.UserID)
			}
		case proto.EventNameNewMessage:
			var msg proto.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				fmt.Printf("Raw data: %s\n", string(raw))
				return fmt.Errorf("unmarshal newMessage: %w", err)
			}
			fmt.Printf("Message: id=%s author=%s body=%q\n", msg.ID, msg.AuthorName, msg.Body)
			return nil
		default:
			// keep looping for the broadcast
		}
	}
}
