package projector

import (
	"fmt"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
	"github.com/louisbranch/gridwire/internal/platform/apperr"
)

// ProjectRoom folds an ordered event list into RoomState.
func ProjectRoom(rid string, records []event.Record) (*RoomState, error) {
	return ProjectRoomFrom(rid, nil, records)
}

// ProjectRoomFrom resumes folding from a snapshot seed (nil for fresh).
func ProjectRoomFrom(rid string, seed *RoomState, records []event.Record) (*RoomState, error) {
	state := seed
	if state == nil {
		state = &RoomState{
			RID:      rid,
			Users:    map[string]RoomUser{},
			Settings: map[string]any{},
		}
	}

	for _, rec := range records {
		if err := applyRoomEvent(state, rec); err != nil {
			return nil, err
		}
		state.LastSeq = rec.Seq
	}

	return state, nil
}

func applyRoomEvent(state *RoomState, rec event.Record) error {
	switch rec.Type {
	case event.TypeUserJoin:
		var p event.UserJoinPayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return err
		}
		state.Users[p.UserID] = RoomUser{DisplayName: p.DisplayName, JoinedAtMs: rec.TimestampMs}
	case event.TypeUserLeave:
		var p event.UserLeavePayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return err
		}
		delete(state.Users, p.UserID)
	case event.TypeChatMessage:
		var p event.ChatMessagePayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return err
		}
		state.Chat = append(state.Chat, ChatMessage{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Message:     p.Message,
			TimestampMs: rec.TimestampMs,
		})
	case event.TypeRoomSettingsUpdate:
		var p event.RoomSettingsUpdatePayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return err
		}
		if state.Settings == nil {
			state.Settings = map[string]any{}
		}
		for k, v := range p.Settings {
			state.Settings[k] = v
		}
	default:
		return apperr.New(apperr.CodeInvalidEventType, fmt.Sprintf("unknown room event type %q", rec.Type))
	}
	return nil
}
