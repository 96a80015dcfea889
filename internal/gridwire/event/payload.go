package event

// Cell identifies a single grid coordinate, used both directly and inside
// a Scope slice for bulk reveal/check operations.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// GridCell is a projected cell's state (lives in GameState, not an event
// payload, but shared here since CreatePayload seeds it).
type GridCell struct {
	Value    string `json:"value,omitempty"`
	Solution string `json:"solution,omitempty"`
	Black    bool   `json:"black,omitempty"`
	Bad      bool   `json:"bad,omitempty"`
	Good     bool   `json:"good,omitempty"`
	Revealed bool   `json:"revealed,omitempty"`
	Pencil   bool   `json:"pencil,omitempty"`
	SolvedBy string `json:"solved_by,omitempty"`
}

// PuzzleInfo carries the descriptive metadata copied onto a game at create
// time, mirroring Puzzle.Content.Info.
type PuzzleInfo struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Type        string `json:"type,omitempty"`
	Copyright   string `json:"copyright,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreatePayload captures the payload for a `create` event: the seed state
// for a new game, derived from the source puzzle's solution.
type CreatePayload struct {
	Pid      string          `json:"pid"`
	Info     PuzzleInfo      `json:"info"`
	Grid     [][]GridCell    `json:"grid"`
	Solution [][]string      `json:"solution"`
	Clues    map[string]any  `json:"clues,omitempty"`
	Circles  [][]Cell        `json:"circles,omitempty"`
	Shades   [][]Cell        `json:"shades,omitempty"`
}

// CellFillPayload captures the payload for `cell_fill` events.
type CellFillPayload struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Value    string `json:"value"`
	Pencil   bool   `json:"pencil,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	SolvedBy string `json:"solved_by,omitempty"`
}

// CellClearPayload captures the payload for `cell_clear` events.
type CellClearPayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// CellCheckPayload captures the payload for `cell_check` events. Scope, if
// present, extends the check beyond the single (row,col) cell.
type CellCheckPayload struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Scope []Cell `json:"scope,omitempty"`
}

// CellRevealPayload captures the payload for `cell_reveal` events.
type CellRevealPayload struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Scope []Cell `json:"scope,omitempty"`
}

// CursorMovePayload captures the payload for `cursor_move` events.
type CursorMovePayload struct {
	UserID string `json:"user_id"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

// ClockAction is the action tag carried by `clock_update` events.
type ClockAction string

const (
	ClockStart  ClockAction = "start"
	ClockPause  ClockAction = "pause"
	ClockResume ClockAction = "resume"
)

// ClockUpdatePayload captures the payload for `clock_update` events.
type ClockUpdatePayload struct {
	Action      ClockAction `json:"action"`
	TotalTimeMs *int64      `json:"total_time_ms,omitempty"`
}

// PuzzleSolvedPayload captures the payload for `puzzle_solved` events.
type PuzzleSolvedPayload struct {
	SolvedAtMs    int64  `json:"solved_at"`
	TimeTakenSecs int    `json:"time_taken"`
	TotalTimeMs   *int64 `json:"total_time_ms,omitempty"`
}

// ChatMessagePayload captures the payload for `chat_message` events on
// either a game or a room stream.
type ChatMessagePayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Message     string `json:"message"`
}

// UserJoinPayload captures the payload for `user_join` events.
type UserJoinPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// UserLeavePayload captures the payload for `user_leave` events.
type UserLeavePayload struct {
	UserID string `json:"user_id"`
}

// RoomSettingsUpdatePayload captures the payload for
// `room_settings_update` events. Settings is merged into the
// projected room's settings map, field by field.
type RoomSettingsUpdatePayload struct {
	Settings map[string]any `json:"settings"`
}
