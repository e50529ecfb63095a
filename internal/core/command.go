package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom binds the client to a room, creating it if needed.
	CommandJoinRoom CommandKind = iota
	// CommandCreateRoom joins a room under a freshly generated id.
	CommandCreateRoom
	// CommandSendMessage relays text to the other member.
	CommandSendMessage
	// CommandTyping tells the other member the client started typing.
	CommandTyping
	// CommandStopTyping tells the other member the client stopped typing.
	CommandStopTyping
	// CommandToggleGhostMode updates the room's ghost mode flags.
	CommandToggleGhostMode
	// CommandClearChat asks every member to clear its local transcript.
	CommandClearChat
	// CommandDisconnect is issued once when the connection goes away.
	CommandDisconnect
)

var commandNames = map[CommandKind]string{
	CommandJoinRoom:        "join_room",
	CommandCreateRoom:      "create_room",
	CommandSendMessage:     "send_message",
	CommandTyping:          "typing",
	CommandStopTyping:      "stop_typing",
	CommandToggleGhostMode: "toggle_ghost_mode",
	CommandClearChat:       "clear_chat",
	CommandDisconnect:      "disconnect",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Room    string
	Message Message
	Ghost   GhostMode
}
