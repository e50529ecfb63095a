package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ghostchat-server/internal/config"
	"github.com/vovakirdan/ghostchat-server/internal/core"
	"github.com/vovakirdan/ghostchat-server/internal/proto"
)

type testOutbound struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	hub := core.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	cfg := config.Default()
	cfg.ReadHeaderTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	disabledLogger := zerolog.Nop()
	server := NewServer(hub, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return ts
}

func dial(ctx context.Context, t *testing.T, ts *httptest.Server) (*websocket.Conn, string) {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	var session proto.SessionData
	readData(ctx, t, conn, proto.OutboundTypeSession, &session)
	if session.ID == "" {
		t.Fatalf("empty session id")
	}
	return conn, session.ID
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	in := proto.Inbound{Type: typ}
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s: %v", typ, err)
		}
		in.Data = payload
	}
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil skips frames until one of type typ arrives.
func readUntil(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string) testOutbound {
	t.Helper()

	for {
		var out testOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read %s: %v", typ, err)
		}
		if out.Type == typ {
			return out
		}
	}
}

func readData(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()

	out := readUntil(ctx, t, conn, typ)
	if v == nil {
		return
	}
	if err := json.Unmarshal(out.Data, v); err != nil {
		t.Fatalf("unmarshal %s data: %v", typ, err)
	}
}

func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) *proto.Error {
	t.Helper()

	out := readUntil(ctx, t, conn, proto.OutboundTypeError)
	if out.Error == nil {
		t.Fatalf("error frame without error body")
	}
	return out.Error
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS header = %q, want *", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := startTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/stats", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "https://example.com")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS header = %q, want *", got)
	}
}

func TestWebSocketTwoPartyScenario(t *testing.T) {
	ts := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, idA := dial(ctx, t, ts)
	connB, idB := dial(ctx, t, ts)

	send(ctx, t, connA, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "ab12cd"})
	var joined proto.PresenceData
	readData(ctx, t, connA, proto.OutboundTypeUserJoined, &joined)
	if joined.RoomID != "ab12cd" || joined.User != idA {
		t.Fatalf("unexpected user_joined: %+v", joined)
	}

	send(ctx, t, connB, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "ab12cd"})
	readData(ctx, t, connB, proto.OutboundTypeUserJoined, nil)
	readData(ctx, t, connA, proto.OutboundTypeUserJoined, &joined)
	if joined.User != idB {
		t.Fatalf("A should see B join, got %+v", joined)
	}

	send(ctx, t, connA, proto.InboundTypeSendMessage, map[string]string{"roomId": "ab12cd", "message": "hello"})
	var msg proto.ReceiveMessageData
	readData(ctx, t, connB, proto.OutboundTypeReceiveMessage, &msg)
	if msg.Text != "hello" || msg.From != idA {
		t.Fatalf("unexpected receive_message: %+v", msg)
	}

	connB.Close(websocket.StatusNormalClosure, "bye")

	var left proto.PresenceData
	readData(ctx, t, connA, proto.OutboundTypeUserLeft, &left)
	if left.User != idB || left.RoomID != "ab12cd" {
		t.Fatalf("unexpected user_left: %+v", left)
	}
}

func TestWebSocketRoomFull(t *testing.T) {
	ts := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i], _ = dial(ctx, t, ts)
	}
	for _, conn := range conns[:2] {
		send(ctx, t, conn, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "pair"})
		readData(ctx, t, conn, proto.OutboundTypeUserJoined, nil)
	}

	send(ctx, t, conns[2], proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "pair"})
	var full proto.RoomEventData
	readData(ctx, t, conns[2], proto.OutboundTypeRoomFull, &full)
	if full.RoomID != "pair" {
		t.Fatalf("unexpected room_full: %+v", full)
	}
}

func TestWebSocketCreateRoomAndGhostMode(t *testing.T) {
	ts := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, _ := dial(ctx, t, ts)
	connB, _ := dial(ctx, t, ts)

	send(ctx, t, connA, proto.InboundTypeCreateRoom, nil)
	var created proto.RoomEventData
	readData(ctx, t, connA, proto.OutboundTypeRoomCreated, &created)
	if created.RoomID == "" {
		t.Fatalf("empty generated room id")
	}
	readData(ctx, t, connA, proto.OutboundTypeUserJoined, nil)

	send(ctx, t, connB, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: created.RoomID})
	readData(ctx, t, connB, proto.OutboundTypeUserJoined, nil)

	send(ctx, t, connA, proto.InboundTypeToggleGhostMode, map[string]any{
		"roomId":  created.RoomID,
		"enabled": true,
		"timer":   10000,
	})
	for _, conn := range []*websocket.Conn{connA, connB} {
		var ghost proto.GhostModeData
		readData(ctx, t, conn, proto.OutboundTypeGhostModeUpdated, &ghost)
		if !ghost.Enabled || ghost.Timer != 10000 {
			t.Fatalf("unexpected ghost_mode_updated: %+v", ghost)
		}
	}

	send(ctx, t, connB, proto.InboundTypeClearChat, proto.RoomData{RoomID: created.RoomID})
	readData(ctx, t, connA, proto.OutboundTypeClearChat, nil)
	readData(ctx, t, connB, proto.OutboundTypeClearChat, nil)
}

func TestWebSocketMalformedFramesKeepConnection(t *testing.T) {
	ts := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(ctx, t, ts)

	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if perr := readError(ctx, t, conn); perr.Code != core.ErrCodeBadRequest {
		t.Fatalf("code = %q, want bad_request", perr.Code)
	}

	send(ctx, t, conn, proto.InboundTypeJoinRoom, map[string]string{})
	if perr := readError(ctx, t, conn); perr.Code != core.ErrCodeBadRequest {
		t.Fatalf("code = %q, want bad_request", perr.Code)
	}

	send(ctx, t, conn, proto.InboundTypeSendMessage, map[string]any{"roomId": "r", "message": 7})
	if perr := readError(ctx, t, conn); perr.Code != core.ErrCodeBadRequest {
		t.Fatalf("code = %q, want bad_request", perr.Code)
	}

	send(ctx, t, conn, "dance", nil)
	if perr := readError(ctx, t, conn); perr.Code != core.ErrCodeInvalidMessage {
		t.Fatalf("code = %q, want invalid_message", perr.Code)
	}

	send(ctx, t, conn, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "still-alive"})
	readData(ctx, t, conn, proto.OutboundTypeUserJoined, nil)
}

func TestWebSocketRateLimit(t *testing.T) {
	ts := startTestServer(t, func(cfg *config.Config) { cfg.RateLimit = 2 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(ctx, t, ts)
	for n := 0; n < 3; n++ {
		send(ctx, t, conn, proto.InboundTypeTyping, proto.RoomData{RoomID: "r"})
	}
	if perr := readError(ctx, t, conn); perr.Code != core.ErrCodeRateLimited {
		t.Fatalf("code = %q, want rate_limited", perr.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA, _ := dial(ctx, t, ts)
	connB, _ := dial(ctx, t, ts)
	connC, _ := dial(ctx, t, ts)
	for _, conn := range []*websocket.Conn{connA, connB} {
		send(ctx, t, conn, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "full"})
		readData(ctx, t, conn, proto.OutboundTypeUserJoined, nil)
	}
	send(ctx, t, connC, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: "half"})
	readData(ctx, t, connC, proto.OutboundTypeUserJoined, nil)

	resp, err := ts.Client().Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	defer resp.Body.Close()

	var stats StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats != (StatsResponse{Rooms: 2, FullRooms: 1, Clients: 3}) {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestWebSocketRefusedAfterHubStops(t *testing.T) {
	hub := core.NewHub(nil)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	stopHub()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := hub.Snapshot(context.Background()); errors.Is(err, core.ErrHubStopped) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("hub did not stop")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cfg := config.Default()
	disabledLogger := zerolog.Nop()
	server := NewServer(hub, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	_, _, err = conn.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusGoingAway {
		t.Fatalf("close status = %v (err %v), want %v", got, err, websocket.StatusGoingAway)
	}
}
