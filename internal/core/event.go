package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventSession tells a new connection its own id.
	EventSession EventKind = iota
	// EventRoomCreated tells the creator the generated room id.
	EventRoomCreated
	// EventRoomFull rejects a join on a room at capacity.
	EventRoomFull
	// EventUserJoined notifies all members about a successful join.
	EventUserJoined
	// EventUserLeft notifies the remaining members about a departure.
	EventUserLeft
	// EventMessage carries a relayed chat message.
	EventMessage
	// EventTyping signals that the peer is typing.
	EventTyping
	// EventStopTyping signals that the peer stopped typing.
	EventStopTyping
	// EventGhostModeUpdated carries the room's new ghost mode flags.
	EventGhostModeUpdated
	// EventClearChat instructs clients to clear their transcript.
	EventClearChat
)

var eventNames = map[EventKind]string{
	EventSession:          "session",
	EventRoomCreated:      "room_created",
	EventRoomFull:         "room_full",
	EventUserJoined:       "user_joined",
	EventUserLeft:         "user_left",
	EventMessage:          "receive_message",
	EventTyping:           "typing",
	EventStopTyping:       "stop_typing",
	EventGhostModeUpdated: "ghost_mode_updated",
	EventClearChat:        "clear_chat",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// droppable reports whether a slow consumer may miss an event of this kind.
func (k EventKind) droppable() bool {
	switch k {
	case EventMessage, EventTyping, EventStopTyping:
		return true
	default:
		return false
	}
}

// Event is sent to clients to describe what happened in the system.
// A single Event may be shared between recipients and must not be mutated.
type Event struct {
	Kind    EventKind
	Room    string
	User    string
	Message Message
	Ghost   GhostMode
}
