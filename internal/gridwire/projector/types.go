// Package projector folds event streams into game/room state (C2). Pure;
// no I/O (spec §4.2) — everything here operates on already-read []event.Record.
package projector

import "github.com/louisbranch/gridwire/internal/gridwire/event"

// Cell is a single grid cell's projected state.
type Cell struct {
	Value    string `json:"value,omitempty"`
	Solution string `json:"solution,omitempty"`
	Black    bool   `json:"black,omitempty"`
	Bad      bool   `json:"bad,omitempty"`
	Good     bool   `json:"good,omitempty"`
	Revealed bool   `json:"revealed,omitempty"`
	Pencil   bool   `json:"pencil,omitempty"`
	SolvedBy string `json:"solved_by,omitempty"`
}

// Cursor is a user's last-known grid position.
type Cursor struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ChatMessage is a single appended chat line, shared by game and room streams.
type ChatMessage struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Clock is the game clock state machine (spec §4.2).
type Clock struct {
	Paused        bool  `json:"paused"`
	TotalTimeMs   int64 `json:"total_time_ms"`
	TrueTotalMs   int64 `json:"true_total_ms"`
	LastUpdatedMs int64 `json:"last_updated_ms"`
	CreatedAtMs   int64 `json:"created_at_ms"`
}

// GameUser is a per-user slice of game state (currently just the cursor).
type GameUser struct {
	Cursor *Cursor `json:"cursor,omitempty"`
}

// GameState is the projected state of a game stream.
type GameState struct {
	GID      string             `json:"gid"`
	Pid      string             `json:"pid"`
	Info     event.PuzzleInfo   `json:"info"`
	Grid     [][]Cell           `json:"grid"`
	Solution [][]string         `json:"solution"`
	Clues    map[string]any     `json:"clues,omitempty"`
	Users    map[string]*GameUser `json:"users"`
	Chat     []ChatMessage      `json:"chat"`
	Clock    Clock              `json:"clock"`
	Solved   bool               `json:"solved"`
	LastSeq  int64              `json:"last_seq"`
}

// RoomUser is a joined user's presence record.
type RoomUser struct {
	DisplayName string `json:"display_name"`
	JoinedAtMs  int64  `json:"joined_at_ms"`
}

// RoomState is the projected state of a room stream.
type RoomState struct {
	RID      string              `json:"rid"`
	Users    map[string]RoomUser `json:"users"`
	Settings map[string]any      `json:"settings"`
	Chat     []ChatMessage       `json:"chat"`
	LastSeq  int64               `json:"last_seq"`
}
