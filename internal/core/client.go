package core

// ClientState is the position of a connection in its session lifecycle.
type ClientState int

const (
	// StateUnjoined is a connected client that is not in a room.
	StateUnjoined ClientState = iota
	// StateJoined is a client that is a member of exactly one room.
	StateJoined
	// StateClosed is terminal.
	StateClosed
)

func (s ClientState) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	clientCommandBuffer = 16
	clientEventBuffer   = 32
)

// Client is a chat participant as seen by the core layer.
// state and room are owned by the hub goroutine.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	state ClientState
	room  string
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, clientCommandBuffer),
		Events:   make(chan *Event, clientEventBuffer),
		state:    StateUnjoined,
	}
}
