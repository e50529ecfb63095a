package core

import "github.com/vovakirdan/ghostchat-server/internal/utils"

// JoinResult is the outcome of Registry.TryAddMember.
type JoinResult int

const (
	// JoinOK means the connection was appended to the room.
	JoinOK JoinResult = iota
	// JoinFull means the room is at capacity and was left unmodified.
	JoinFull
	// JoinAlreadyMember means the connection already belongs to a room.
	JoinAlreadyMember
)

// maxRoomIDAttempts bounds the retries when a generated room id collides.
const maxRoomIDAttempts = 16

// Registry is the authoritative store of active rooms.
// It is not safe for concurrent use; the hub goroutine owns it.
type Registry struct {
	rooms    map[string]*Room
	memberOf map[string]string
	newID    func() string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		memberOf: make(map[string]string),
		newID:    utils.NewRoomCode,
	}
}

// EnsureRoom creates the room with default flags if it is absent.
func (r *Registry) EnsureRoom(roomID string) *Room {
	room, ok := r.rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		r.rooms[roomID] = room
	}
	return room
}

// TryAddMember appends connID to the room if it has spare capacity.
// A rejected add never leaves an empty room behind.
func (r *Registry) TryAddMember(roomID, connID string) JoinResult {
	room := r.EnsureRoom(roomID)

	var result JoinResult
	switch _, member := r.memberOf[connID]; {
	case member:
		result = JoinAlreadyMember
	case !room.add(connID):
		result = JoinFull
	default:
		r.memberOf[connID] = roomID
		return JoinOK
	}

	if room.Empty() {
		delete(r.rooms, roomID)
	}
	return result
}

// RemoveMember removes connID from whichever room holds it and destroys the
// room once it is empty. found is false if connID was never a member.
func (r *Registry) RemoveMember(connID string) (roomID string, remaining int, found bool) {
	roomID, ok := r.memberOf[connID]
	if !ok {
		return "", 0, false
	}
	delete(r.memberOf, connID)

	room, ok := r.rooms[roomID]
	if !ok {
		return roomID, 0, true
	}
	room.remove(connID)
	if room.Empty() {
		delete(r.rooms, roomID)
	}
	return roomID, room.Len(), true
}

// SetGhostMode updates the room flags. It returns false if the room does not exist.
func (r *Registry) SetGhostMode(roomID string, mode GhostMode) bool {
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	room.Ghost = mode
	return true
}

// Room looks up an active room.
func (r *Registry) Room(roomID string) (*Room, bool) {
	room, ok := r.rooms[roomID]
	return room, ok
}

// Len returns the number of active rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}

// NewRoomID returns a generated id that no active room uses.
func (r *Registry) NewRoomID() string {
	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		id := r.newID()
		if _, taken := r.rooms[id]; !taken {
			return id
		}
	}
	// Short codes exhausted by collisions; widen the space.
	for {
		id := r.newID() + r.newID()
		if _, taken := r.rooms[id]; !taken {
			return id
		}
	}
}

// Snapshot copies the registry state for read-only consumers.
func (r *Registry) Snapshot() []RoomSnapshot {
	out := make([]RoomSnapshot, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, RoomSnapshot{
			ID:      room.ID,
			Members: room.Members(),
			Ghost:   room.Ghost,
		})
	}
	return out
}

// RoomSnapshot is a detached copy of a room's state.
type RoomSnapshot struct {
	ID      string
	Members []string
	Ghost   GhostMode
}
