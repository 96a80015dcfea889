// Package event defines the closed event type taxonomy and envelope shared
// by game and room streams (spec §3).
package event

// Kind identifies whether a stream is a game stream or a room stream.
type Kind string

const (
	KindGame Kind = "game"
	KindRoom Kind = "room"
)

// IsValid reports whether kind is one of the two known stream kinds.
func (k Kind) IsValid() bool {
	return k == KindGame || k == KindRoom
}

// Type identifies the kind of event carried in an envelope.
type Type string

// Game stream events.
const (
	TypeCreate       Type = "create"
	TypeCellFill     Type = "cell_fill"
	TypeCellClear    Type = "cell_clear"
	TypeCellCheck    Type = "cell_check"
	TypeCellReveal   Type = "cell_reveal"
	TypeCursorMove   Type = "cursor_move"
	TypeClockUpdate  Type = "clock_update"
	TypePuzzleSolved Type = "puzzle_solved"
)

// Room stream events.
const (
	TypeUserJoin           Type = "user_join"
	TypeUserLeave          Type = "user_leave"
	TypeRoomSettingsUpdate Type = "room_settings_update"
)

// Shared between game and room streams.
const TypeChatMessage Type = "chat_message"

// gameTypes and roomTypes partition the closed taxonomy by stream kind.
var gameTypes = map[Type]bool{
	TypeCreate:       true,
	TypeCellFill:     true,
	TypeCellClear:    true,
	TypeCellCheck:    true,
	TypeCellReveal:   true,
	TypeCursorMove:   true,
	TypeChatMessage:  true,
	TypeClockUpdate:  true,
	TypePuzzleSolved: true,
}

var roomTypes = map[Type]bool{
	TypeUserJoin:           true,
	TypeUserLeave:          true,
	TypeChatMessage:        true,
	TypeRoomSettingsUpdate: true,
}

// IsValid reports whether t is a non-empty known tag.
func (t Type) IsValid() bool {
	return gameTypes[t] || roomTypes[t]
}

// ValidFor reports whether t belongs to the taxonomy for the given stream kind.
func (t Type) ValidFor(kind Kind) bool {
	switch kind {
	case KindGame:
		return gameTypes[t]
	case KindRoom:
		return roomTypes[t]
	default:
		return false
	}
}

// SchemaVersion is the default envelope schema_version.
const SchemaVersion = 1

// Record is a persisted event: the common envelope plus a raw JSON payload
// matching Type. Assigned Seq is unique per (StreamKind, StreamID) and forms
// the contiguous prefix 1..N (I1).
type Record struct {
	StreamKind    Kind
	StreamID      string
	Seq           int64
	Type          Type
	Payload       []byte
	UserID        string
	TimestampMs   int64
	SchemaVersion int
}

// Draft is a not-yet-persisted event as submitted by a publisher. Payload
// may still contain `{".sv":"timestamp"}` sentinels (§6) that the hub
// normalizes before append.
type Draft struct {
	StreamKind Kind
	StreamID   string
	Type       Type
	Payload    []byte
	UserID     string
}
