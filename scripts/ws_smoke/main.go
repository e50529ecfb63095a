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

	"github.com/vovakirdan/ghostchat-server/internal/proto"
)

// outbound is a server frame with its data left raw.
type outbound struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:5000/ws", "WebSocket address")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	connA, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial A: %w", err)
	}
	defer connA.Close(websocket.StatusNormalClosure, "bye")

	connB, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial B: %w", err)
	}
	defer connB.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, connA, proto.Inbound{Type: proto.InboundTypeCreateRoom}); err != nil {
		return fmt.Errorf("send create_room: %w", err)
	}
	created, err := waitFor(ctx, connA, proto.OutboundTypeRoomCreated)
	if err != nil {
		return err
	}
	var room proto.RoomEventData
	if err := json.Unmarshal(created.Data, &room); err != nil {
		return fmt.Errorf("unmarshal room_created: %w", err)
	}
	fmt.Printf("A created room %s\n", room.RoomID)

	joinPayload, err := json.Marshal(proto.RoomData{RoomID: room.RoomID})
	if err != nil {
		return fmt.Errorf("marshal join: %w", err)
	}
	if err := wsjson.Write(ctx, connB, proto.Inbound{Type: proto.InboundTypeJoinRoom, Data: joinPayload}); err != nil {
		return fmt.Errorf("send join_room: %w", err)
	}
	if _, err := waitFor(ctx, connB, proto.OutboundTypeUserJoined); err != nil {
		return err
	}
	fmt.Println("B joined")

	msgPayload, err := json.Marshal(map[string]string{"roomId": room.RoomID, "message": *text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := wsjson.Write(ctx, connA, proto.Inbound{Type: proto.InboundTypeSendMessage, Data: msgPayload}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	received, err := waitFor(ctx, connB, proto.OutboundTypeReceiveMessage)
	if err != nil {
		return err
	}
	var msg proto.ReceiveMessageData
	if err := json.Unmarshal(received.Data, &msg); err != nil {
		return fmt.Errorf("unmarshal receive_message: %w", err)
	}
	fmt.Printf("B received: from=%s text=%q\n", msg.From, msg.Text)
	if msg.Text != *text {
		return fmt.Errorf("payload mismatch: got %q", msg.Text)
	}
	return nil
}

func waitFor(ctx context.Context, conn *websocket.Conn, typ string) (outbound, error) {
	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return out, fmt.Errorf("read %s: %w", typ, err)
		}
		fmt.Printf("Received outbound: type=%s\n", out.Type)
		if out.Error != nil {
			return out, fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		}
		if out.Type == typ {
			return out, nil
		}
	}
}
