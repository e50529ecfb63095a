package http

import (
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/vovakirdan/ghostchat-server/internal/core"
	"github.com/vovakirdan/ghostchat-server/internal/proto"
)

const maxRoomIDLength = 64

var errMissingData = errors.New("data is required")

func inboundToCommand(inbound proto.Inbound) (*core.Command, *core.CoreError) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		return roomCommand(core.CommandJoinRoom, inbound.Data)
	case proto.InboundTypeCreateRoom:
		return &core.Command{Kind: core.CommandCreateRoom}, nil
	case proto.InboundTypeTyping:
		return roomCommand(core.CommandTyping, inbound.Data)
	case proto.InboundTypeStopTyping:
		return roomCommand(core.CommandStopTyping, inbound.Data)
	case proto.InboundTypeClearChat:
		return roomCommand(core.CommandClearChat, inbound.Data)
	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := decodeData(inbound.Data, &msg); err != nil {
			return nil, core.NewCoreError(core.ErrCodeBadRequest, err.Error())
		}
		if cerr := validateRoomID(msg.RoomID); cerr != nil {
			return nil, cerr
		}
		if msg.Message == nil {
			return nil, core.NewCoreError(core.ErrCodeBadRequest, "message is required")
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			Room:    msg.RoomID,
			Message: core.Message{Room: msg.RoomID, Text: string(*msg.Message)},
		}, nil
	case proto.InboundTypeToggleGhostMode:
		var toggle proto.ToggleGhostModeData
		if err := decodeData(inbound.Data, &toggle); err != nil {
			return nil, core.NewCoreError(core.ErrCodeBadRequest, err.Error())
		}
		if cerr := validateRoomID(toggle.RoomID); cerr != nil {
			return nil, cerr
		}
		if toggle.Enabled == nil {
			return nil, core.NewCoreError(core.ErrCodeBadRequest, "enabled is required")
		}
		timer := core.DefaultGhostTimerMs
		if toggle.Timer != nil {
			timer = *toggle.Timer
		}
		if timer < 0 {
			return nil, core.NewCoreError(core.ErrCodeBadRequest, "timer must not be negative")
		}
		return &core.Command{
			Kind:  core.CommandToggleGhostMode,
			Room:  toggle.RoomID,
			Ghost: core.GhostMode{Enabled: *toggle.Enabled, TimerMs: timer},
		}, nil
	default:
		return nil, core.NewCoreError(core.ErrCodeInvalidMessage, "unknown message type")
	}
}

func roomCommand(kind core.CommandKind, data json.RawMessage) (*core.Command, *core.CoreError) {
	var room proto.RoomData
	if err := decodeData(data, &room); err != nil {
		return nil, core.NewCoreError(core.ErrCodeBadRequest, err.Error())
	}
	if cerr := validateRoomID(room.RoomID); cerr != nil {
		return nil, cerr
	}
	return &core.Command{Kind: kind, Room: room.RoomID}, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errMissingData
	}
	return json.Unmarshal(data, v)
}

func validateRoomID(roomID string) *core.CoreError {
	if roomID == "" {
		return core.NewCoreError(core.ErrCodeBadRequest, "roomId is required")
	}
	if utf8.RuneCountInString(roomID) > maxRoomIDLength {
		return core.NewCoreError(core.ErrCodeBadRequest, "roomId is too long")
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventSession:
		return proto.Outbound{Type: proto.OutboundTypeSession, Data: proto.SessionData{ID: event.User}}
	case core.EventRoomCreated:
		return proto.Outbound{Type: proto.OutboundTypeRoomCreated, Data: proto.RoomEventData{RoomID: event.Room}}
	case core.EventRoomFull:
		return proto.Outbound{Type: proto.OutboundTypeRoomFull, Data: proto.RoomEventData{RoomID: event.Room}}
	case core.EventUserJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeUserJoined,
			Data: proto.PresenceData{RoomID: event.Room, User: event.User},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type: proto.OutboundTypeUserLeft,
			Data: proto.PresenceData{RoomID: event.Room, User: event.User},
		}
	case core.EventMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeReceiveMessage,
			Data: proto.ReceiveMessageData{Text: event.Message.Text, From: event.Message.From},
		}
	case core.EventTyping:
		return proto.Outbound{Type: proto.OutboundTypeTyping}
	case core.EventStopTyping:
		return proto.Outbound{Type: proto.OutboundTypeStopTyping}
	case core.EventGhostModeUpdated:
		return proto.Outbound{
			Type: proto.OutboundTypeGhostModeUpdated,
			Data: proto.GhostModeData{Enabled: event.Ghost.Enabled, Timer: event.Ghost.TimerMs},
		}
	case core.EventClearChat:
		return proto.Outbound{Type: proto.OutboundTypeClearChat}
	default:
		return proto.Outbound{Type: event.Kind.String()}
	}
}

func errorOutbound(cerr *core.CoreError) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: cerr.Code, Msg: cerr.Message},
	}
}
