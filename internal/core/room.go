package core

// MaxRoomMembers is the capacity of a room: one connection and its peer.
const MaxRoomMembers = 2

// DefaultGhostTimerMs is the ghost timer a new room starts with.
const DefaultGhostTimerMs int64 = 5000

// GhostMode is display metadata shared by both ends of a room.
// The server forwards it and never expires anything.
type GhostMode struct {
	Enabled bool
	TimerMs int64
}

// Room is a transient pairing of at most MaxRoomMembers connections.
type Room struct {
	ID      string
	Ghost   GhostMode
	members []string
}

// NewRoom constructs an empty room with default ghost mode flags.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		Ghost:   GhostMode{TimerMs: DefaultGhostTimerMs},
		members: make([]string, 0, MaxRoomMembers),
	}
}

// Members returns a copy of the member ids in join order.
func (r *Room) Members() []string {
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

// Len returns the number of members.
func (r *Room) Len() int {
	return len(r.members)
}

// Full reports whether another member would exceed capacity.
func (r *Room) Full() bool {
	return len(r.members) >= MaxRoomMembers
}

// Empty returns true if no members are in the room.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

// Has reports whether the connection is a member.
func (r *Room) Has(connID string) bool {
	return r.indexOf(connID) >= 0
}

func (r *Room) add(connID string) bool {
	if r.Full() || r.Has(connID) {
		return false
	}
	r.members = append(r.members, connID)
	return true
}

func (r *Room) remove(connID string) bool {
	i := r.indexOf(connID)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	return true
}

func (r *Room) indexOf(connID string) int {
	for i, id := range r.members {
		if id == connID {
			return i
		}
	}
	return -1
}
