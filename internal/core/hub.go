package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Hub coordinates clients and rooms. All registry access happens on the
// goroutine running Run, so every command is handled to completion before
// the next one starts.
type Hub interface {
	Run(ctx context.Context)
	RegisterClient(c *Client) bool
	UnregisterClient(c *Client)
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is a point-in-time copy of the hub state.
type Snapshot struct {
	Clients int
	Rooms   []RoomSnapshot
}

type inbound struct {
	client *Client
	cmd    *Command
}

type hub struct {
	registry  *Registry
	clients   map[string]*Client
	register  chan *Client
	inbox     chan inbound
	snapshots chan chan Snapshot
	done      chan struct{}
	log       *zerolog.Logger

	// overflowed holds clients that missed a control event; they are
	// disconnected once the current command is done.
	overflowed []*Client
}

// NewHub creates a hub with an empty registry. A nil logger disables logging.
func NewHub(logger *zerolog.Logger) Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("module", "hub").Logger()
	return &hub{
		registry:  NewRegistry(),
		clients:   make(map[string]*Client),
		register:  make(chan *Client),
		inbox:     make(chan inbound, 64),
		snapshots: make(chan chan Snapshot),
		done:      make(chan struct{}),
		log:       &l,
	}
}

// Run processes registrations and commands until ctx is cancelled.
func (h *hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case c := <-h.register:
			h.addClient(c)
		case in := <-h.inbox:
			h.handle(in.client, in.cmd)
		case reply := <-h.snapshots:
			reply <- Snapshot{Clients: len(h.clients), Rooms: h.registry.Snapshot()}
		case <-ctx.Done():
			return
		}
		h.evictOverflowed()
	}
}

// RegisterClient makes the hub aware of c and starts forwarding its commands.
// It returns false when the hub has already stopped.
func (h *hub) RegisterClient(c *Client) bool {
	select {
	case h.register <- c:
	case <-h.done:
		return false
	}
	go h.pump(c)
	return true
}

// UnregisterClient queues a disconnect behind everything c already sent.
func (h *hub) UnregisterClient(c *Client) {
	select {
	case c.Commands <- &Command{Kind: CommandDisconnect}:
	case <-h.done:
	}
}

// Snapshot returns a copy of the current rooms and client count.
func (h *hub) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case h.snapshots <- reply:
	case <-h.done:
		return Snapshot{}, ErrHubStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// pump funnels one client's commands into the shared inbox, keeping their order.
func (h *hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- inbound{client: c, cmd: cmd}:
			case <-h.done:
				return
			}
			if cmd.Kind == CommandDisconnect {
				return
			}
		case <-h.done:
			return
		}
	}
}

func (h *hub) addClient(c *Client) {
	h.clients[c.ID] = c
	h.log.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client connected")
	h.send(c, &Event{Kind: EventSession, User: c.ID})
}

func (h *hub) shutdown() {
	for id, c := range h.clients {
		c.state = StateClosed
		close(c.Events)
		delete(h.clients, id)
	}
	close(h.done)
	h.log.Info().Msg("hub stopped")
}

func (h *hub) handle(c *Client, cmd *Command) {
	if _, ok := h.clients[c.ID]; !ok || c.state == StateClosed {
		h.log.Debug().Str("client_id", c.ID).Stringer("event", cmd.Kind).Msg("command from closed client dropped")
		return
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		h.join(c, cmd.Room)
	case CommandCreateRoom:
		h.create(c)
	case CommandSendMessage:
		h.relayMessage(c, cmd)
	case CommandTyping:
		h.relaySignal(c, cmd, EventTyping)
	case CommandStopTyping:
		h.relaySignal(c, cmd, EventStopTyping)
	case CommandToggleGhostMode:
		h.toggleGhostMode(c, cmd)
	case CommandClearChat:
		h.clearChat(c, cmd)
	case CommandDisconnect:
		h.disconnect(c)
	default:
		h.log.Warn().Str("client_id", c.ID).Int("kind", int(cmd.Kind)).Msg("unknown command dropped")
	}
}

func (h *hub) join(c *Client, roomID string) {
	if c.state == StateJoined {
		h.log.Warn().Str("client_id", c.ID).Str("room_id", roomID).Str("joined_room", c.room).Msg("join while already in a room dropped")
		return
	}

	h.registry.EnsureRoom(roomID)
	switch h.registry.TryAddMember(roomID, c.ID) {
	case JoinFull:
		h.log.Info().Str("client_id", c.ID).Str("room_id", roomID).Msg("room full")
		h.send(c, &Event{Kind: EventRoomFull, Room: roomID})
		return
	case JoinAlreadyMember:
		h.log.Warn().Str("client_id", c.ID).Str("room_id", roomID).Msg("client already registered in a room")
		return
	}

	c.state = StateJoined
	c.room = roomID

	room, _ := h.registry.Room(roomID)
	h.log.Info().Str("client_id", c.ID).Str("room_id", roomID).Int("members", room.Len()).Msg("user joined room")
	h.broadcast(room, &Event{Kind: EventUserJoined, Room: roomID, User: c.ID}, "")
}

func (h *hub) create(c *Client) {
	if c.state == StateJoined {
		h.log.Warn().Str("client_id", c.ID).Str("joined_room", c.room).Msg("create while already in a room dropped")
		return
	}
	roomID := h.registry.NewRoomID()
	h.log.Debug().Str("client_id", c.ID).Str("room_id", roomID).Msg("room id generated")
	h.send(c, &Event{Kind: EventRoomCreated, Room: roomID})
	h.join(c, roomID)
}

func (h *hub) relayMessage(c *Client, cmd *Command) {
	room, ok := h.memberRoom(c, cmd)
	if !ok {
		return
	}
	msg := cmd.Message
	msg.Room = room.ID
	msg.From = c.ID
	h.broadcast(room, &Event{Kind: EventMessage, Room: room.ID, User: c.ID, Message: msg}, c.ID)
}

func (h *hub) relaySignal(c *Client, cmd *Command, kind EventKind) {
	room, ok := h.memberRoom(c, cmd)
	if !ok {
		return
	}
	h.broadcast(room, &Event{Kind: kind, Room: room.ID, User: c.ID}, c.ID)
}

func (h *hub) toggleGhostMode(c *Client, cmd *Command) {
	if _, ok := h.memberRoom(c, cmd); !ok {
		return
	}
	if !h.registry.SetGhostMode(cmd.Room, cmd.Ghost) {
		h.log.Debug().Str("client_id", c.ID).Str("room_id", cmd.Room).Msg("ghost mode toggle for unknown room dropped")
		return
	}
	room, _ := h.registry.Room(cmd.Room)
	h.log.Info().
		Str("room_id", room.ID).
		Bool("enabled", room.Ghost.Enabled).
		Int64("timer_ms", room.Ghost.TimerMs).
		Msg("ghost mode updated")
	h.broadcast(room, &Event{Kind: EventGhostModeUpdated, Room: room.ID, User: c.ID, Ghost: room.Ghost}, "")
}

func (h *hub) clearChat(c *Client, cmd *Command) {
	room, ok := h.memberRoom(c, cmd)
	if !ok {
		return
	}
	h.broadcast(room, &Event{Kind: EventClearChat, Room: room.ID, User: c.ID}, "")
}

func (h *hub) disconnect(c *Client) {
	roomID, remaining, found := h.registry.RemoveMember(c.ID)
	if found {
		if room, ok := h.registry.Room(roomID); ok {
			h.log.Info().Str("client_id", c.ID).Str("room_id", roomID).Int("members", remaining).Msg("user left room")
			h.broadcast(room, &Event{Kind: EventUserLeft, Room: roomID, User: c.ID}, c.ID)
		} else {
			h.log.Info().Str("room_id", roomID).Msg("room destroyed")
		}
	}

	c.state = StateClosed
	c.room = ""
	delete(h.clients, c.ID)
	close(c.Events)
	h.log.Debug().Str("client_id", c.ID).Int("clients", len(h.clients)).Msg("client disconnected")
}

// memberRoom resolves the room a command addresses, dropping commands from
// clients that are not members of it.
func (h *hub) memberRoom(c *Client, cmd *Command) (*Room, bool) {
	if c.state != StateJoined {
		h.log.Debug().Str("client_id", c.ID).Stringer("event", cmd.Kind).Msg("event from unjoined client dropped")
		return nil, false
	}
	if cmd.Room != c.room {
		h.log.Warn().
			Str("client_id", c.ID).
			Stringer("event", cmd.Kind).
			Str("room_id", cmd.Room).
			Str("joined_room", c.room).
			Msg("event for foreign room dropped")
		return nil, false
	}
	return h.registry.Room(cmd.Room)
}

// send never blocks. Chat traffic is dropped for a slow consumer; a client
// that misses any other event is queued for disconnect instead.
func (h *hub) send(c *Client, ev *Event) {
	select {
	case c.Events <- ev:
		return
	default:
	}
	if ev.Kind.droppable() {
		h.log.Warn().Str("client_id", c.ID).Stringer("event", ev.Kind).Msg("slow consumer, event dropped")
		return
	}
	h.log.Warn().Str("client_id", c.ID).Stringer("event", ev.Kind).Msg("slow consumer missed control event, evicting")
	h.overflowed = append(h.overflowed, c)
}

// evictOverflowed runs outside broadcast so room membership never changes
// while it is being iterated.
func (h *hub) evictOverflowed() {
	for len(h.overflowed) > 0 {
		c := h.overflowed[0]
		h.overflowed = h.overflowed[1:]
		if _, ok := h.clients[c.ID]; !ok {
			continue
		}
		h.disconnect(c)
	}
	h.overflowed = nil
}

// broadcast delivers ev to every member of room except the member with id except.
func (h *hub) broadcast(room *Room, ev *Event, except string) {
	for _, id := range room.members {
		if id == except {
			continue
		}
		if c, ok := h.clients[id]; ok {
			h.send(c, ev)
		}
	}
}
