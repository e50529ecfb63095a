package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/ghostchat-server/internal/proto"
)

type outbound struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:5000/ws", "WebSocket address")
	room := flag.String("room", "", "room to join; empty creates a new one")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	roomCh := make(chan string, 1)
	if *room == "" {
		if err := send(ctx, conn, proto.InboundTypeCreateRoom, nil); err != nil {
			return err
		}
	} else {
		if err := send(ctx, conn, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: *room}); err != nil {
			return err
		}
		roomCh <- *room
	}

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type messages and press Enter to send. /ghost <ms>, /unghost, /clear. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, roomCh)
	}()

	var current string
	select {
	case current = <-roomCh:
	case <-ctx.Done():
		return nil
	}
	fmt.Printf("In room %s\n", current)

	writeLoop(ctx, conn, current)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	in := proto.Inbound{Type: typ}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		in.Data = payload
	}
	if err := wsjson.Write(ctx, conn, in); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, roomCh chan<- string) {
	var self string
	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch out.Type {
		case proto.OutboundTypeSession:
			var evt proto.SessionData
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				self = evt.ID
			}
		case proto.OutboundTypeRoomCreated:
			var evt proto.RoomEventData
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal room_created: %v", err)
				continue
			}
			roomCh <- evt.RoomID
		case proto.OutboundTypeRoomFull:
			fmt.Println("room is full")
			return
		case proto.OutboundTypeUserJoined:
			var evt proto.PresenceData
			if err := json.Unmarshal(out.Data, &evt); err == nil && evt.User != self {
				fmt.Println("* peer joined")
			}
		case proto.OutboundTypeUserLeft:
			fmt.Println("* peer left")
		case proto.OutboundTypeReceiveMessage:
			var evt proto.ReceiveMessageData
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			fmt.Printf("peer: %s\n", evt.Text)
		case proto.OutboundTypeTyping:
			fmt.Println("* peer is typing...")
		case proto.OutboundTypeGhostModeUpdated:
			var evt proto.GhostModeData
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("* ghost mode enabled=%t timer=%dms\n", evt.Enabled, evt.Timer)
			}
		case proto.OutboundTypeClearChat:
			fmt.Print("\033[H\033[2J")
		case proto.OutboundTypeError:
			if out.Error != nil {
				fmt.Printf("error %s: %s\n", out.Error.Code, out.Error.Msg)
			}
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			switch {
			case text == "/clear":
				err = send(ctx, conn, proto.InboundTypeClearChat, proto.RoomData{RoomID: room})
			case text == "/unghost":
				err = send(ctx, conn, proto.InboundTypeToggleGhostMode, map[string]any{"roomId": room, "enabled": false})
			case strings.HasPrefix(text, "/ghost"):
				timer, convErr := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(text, "/ghost")), 10, 64)
				if convErr != nil {
					timer = 5000
				}
				err = send(ctx, conn, proto.InboundTypeToggleGhostMode, map[string]any{"roomId": room, "enabled": true, "timer": timer})
			default:
				err = send(ctx, conn, proto.InboundTypeSendMessage, map[string]string{"roomId": room, "message": text})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
