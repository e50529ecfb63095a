package proto

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeJoinRoom        = "join_room"
	InboundTypeCreateRoom      = "create_room"
	InboundTypeSendMessage     = "send_message"
	InboundTypeTyping          = "typing"
	InboundTypeStopTyping      = "stop_typing"
	InboundTypeToggleGhostMode = "toggle_ghost_mode"
	InboundTypeClearChat       = "clear_chat"

	OutboundTypeSession          = "session"
	OutboundTypeRoomCreated      = "room_created"
	OutboundTypeRoomFull         = "room_full"
	OutboundTypeUserJoined       = "user_joined"
	OutboundTypeUserLeft         = "user_left"
	OutboundTypeReceiveMessage   = "receive_message"
	OutboundTypeTyping           = "typing"
	OutboundTypeStopTyping       = "stop_typing"
	OutboundTypeGhostModeUpdated = "ghost_mode_updated"
	OutboundTypeClearChat        = "clear_chat"
	OutboundTypeError            = "error"
)

// RoomData addresses a room; used by join_room, typing, stop_typing and clear_chat.
type RoomData struct {
	RoomID string `json:"roomId"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	RoomID  string      `json:"roomId"`
	Message *MessageText `json:"message"`
}

// ToggleGhostModeData updates the room's ghost mode flags.
// Timer is optional and falls back to the default ghost timer.
type ToggleGhostModeData struct {
	RoomID  string `json:"roomId"`
	Enabled *bool  `json:"enabled"`
	Timer   *int64 `json:"timer,omitempty"`
}

var errMessageShape = errors.New("message must be a string or an object with a text field")

// MessageText accepts either a bare JSON string or an object {"text": "..."}.
type MessageText string

// UnmarshalJSON implements json.Unmarshaler.
func (m *MessageText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errMessageShape
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = MessageText(s)
		return nil
	case '{':
		var obj struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.Text == nil {
			return errMessageShape
		}
		*m = MessageText(*obj.Text)
		return nil
	default:
		return errMessageShape
	}
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// SessionData tells a connection its own id.
type SessionData struct {
	ID string `json:"id"`
}

// RoomEventData is carried by room_created and room_full.
type RoomEventData struct {
	RoomID string `json:"roomId"`
}

// PresenceData is carried by user_joined and user_left.
type PresenceData struct {
	RoomID string `json:"roomId"`
	User   string `json:"user"`
}

// ReceiveMessageData is a relayed chat message tagged with its sender.
type ReceiveMessageData struct {
	Text string `json:"text"`
	From string `json:"from"`
}

// GhostModeData carries the room's ghost mode flags.
type GhostModeData struct {
	Enabled bool  `json:"enabled"`
	Timer   int64 `json:"timer"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
