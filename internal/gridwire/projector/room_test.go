package projector

import (
	"testing"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
)

func TestProjectRoomJoinLeaveSettingsChat(t *testing.T) {
	records := []event.Record{
		{Seq: 1, Type: event.TypeUserJoin, Payload: mustJSON(t, event.UserJoinPayload{UserID: "u1", DisplayName: "Ada"})},
		{Seq: 2, Type: event.TypeUserJoin, Payload: mustJSON(t, event.UserJoinPayload{UserID: "u2", DisplayName: "Bo"})},
		{Seq: 3, Type: event.TypeRoomSettingsUpdate, Payload: mustJSON(t, event.RoomSettingsUpdatePayload{Settings: map[string]any{"difficulty": "hard"}})},
		{Seq: 4, Type: event.TypeChatMessage, Payload: mustJSON(t, event.ChatMessagePayload{UserID: "u1", DisplayName: "Ada", Message: "hi"})},
		{Seq: 5, Type: event.TypeUserLeave, Payload: mustJSON(t, event.UserLeavePayload{UserID: "u2"})},
	}

	state, err := ProjectRoom("r1", records)
	if err != nil {
		t.Fatalf("project room: %v", err)
	}

	if len(state.Users) != 1 {
		t.Fatalf("expected 1 remaining user, got %d", len(state.Users))
	}
	if _, ok := state.Users["u1"]; !ok {
		t.Fatal("expected u1 to remain joined")
	}
	if state.Settings["difficulty"] != "hard" {
		t.Fatalf("expected settings merged, got %v", state.Settings)
	}
	if len(state.Chat) != 1 {
		t.Fatalf("expected 1 chat message, got %d", len(state.Chat))
	}
	if state.LastSeq != 5 {
		t.Fatalf("expected last seq 5, got %d", state.LastSeq)
	}
}

func TestProjectRoomSettingsUpdateMergesNotReplaces(t *testing.T) {
	records := []event.Record{
		{Seq: 1, Type: event.TypeRoomSettingsUpdate, Payload: mustJSON(t, event.RoomSettingsUpdatePayload{Settings: map[string]any{"a": 1}})},
		{Seq: 2, Type: event.TypeRoomSettingsUpdate, Payload: mustJSON(t, event.RoomSettingsUpdatePayload{Settings: map[string]any{"b": 2}})},
	}

	state, err := ProjectRoom("r1", records)
	if err != nil {
		t.Fatalf("project room: %v", err)
	}
	if state.Settings["a"] != float64(1) || state.Settings["b"] != float64(2) {
		t.Fatalf("expected merged settings, got %v", state.Settings)
	}
}
