package projector

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/gridwire/internal/gridwire/event"
	"github.com/louisbranch/gridwire/internal/platform/apperr"
)

// ProjectGame folds an ordered event list into GameState. The first event
// must be a `create`; its absence is an apperr.Error with
// apperr.CodeNoCreateEvent (spec §4.2).
func ProjectGame(gid string, records []event.Record) (*GameState, error) {
	return ProjectGameFrom(gid, nil, records)
}

// ProjectGameFrom resumes folding from a snapshot (seed may be nil for a
// fresh projection) and applies records with seq greater than the
// snapshot's snapshot_seq is the caller's responsibility — records passed
// here are applied unconditionally, in order.
func ProjectGameFrom(gid string, seed *GameState, records []event.Record) (*GameState, error) {
	state := seed
	if state == nil {
		if len(records) == 0 || records[0].Type != event.TypeCreate {
			return nil, apperr.New(apperr.CodeNoCreateEvent, "game stream has no create event")
		}
	}

	for _, rec := range records {
		next, err := applyGameEvent(gid, state, rec)
		if err != nil {
			return nil, err
		}
		state = next
	}

	if state == nil {
		return nil, apperr.New(apperr.CodeNoCreateEvent, "game stream has no create event")
	}
	return state, nil
}

func applyGameEvent(gid string, state *GameState, rec event.Record) (*GameState, error) {
	switch rec.Type {
	case event.TypeCreate:
		return applyGameCreate(gid, rec)
	}

	if state == nil {
		return nil, apperr.New(apperr.CodeNoCreateEvent, "game stream has no create event")
	}

	switch rec.Type {
	case event.TypeCellFill:
		var p event.CellFillPayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return nil, err
		}
		cell := cellAt(state.Grid, p.Row, p.Col)
		if cell == nil {
			return state, nil
		}
		cell.Value = p.Value
		cell.Bad = false
		cell.Pencil = p.Pencil
		if p.SolvedBy != "" {
			cell.SolvedBy = p.SolvedBy
		}
	case event.TypeCellClear:
		var p event.CellClearPayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return nil, err
		}
		cell := cellAt(state.Grid, p.Row, p.Col)
		if cell != nil {
			cell.Value = ""
			cell.Pencil = false
		}
	case event.TypeCellCheck:
		var p event.CellCheckPayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return nil, err
		}
		for _, c := range checkScope(p.Row, p.Col, p.Scope) {
			cell := cellAt(state.Grid, c.Row, c.Col)
			if cell == nil {
				continue
			}
			if cell.Value != "" && cell.Value == cell.Solution {
				cell.Good = true
				cell.Bad = false
			} else {
				cell.Bad = true
				cell.Good = false
			}
		}
	case event.TypeCellReveal:
		var p event.CellRevealPayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return nil, err
		}
		for _, c := range checkScope(p.Row, p.Col, p.Scope) {
			cell := cellAt(state.Grid, c.Row, c.Col)
			if cell == nil {
				continue
			}
			cell.Value = cell.Solution
			cell.Revealed = true
		}
	case event.TypeCursorMove:
		var p event.CursorMovePayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return state, nil
		}
		if state.Users == nil {
			state.Users = map[string]*GameUser{}
		}
		state.Users[p.UserID] = &GameUser{Cursor: &Cursor{Row: p.Row, Col: p.Col}}
	case event.TypeChatMessage:
		var p event.ChatMessagePayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return nil, err
		}
		state.Chat = append(state.Chat, ChatMessage{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Message:     p.Message,
			TimestampMs: rec.TimestampMs,
		})
	case event.TypeClockUpdate:
		var p event.ClockUpdatePayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return nil, err
		}
		applyClockUpdate(&state.Clock, p, rec.TimestampMs)
	case event.TypePuzzleSolved:
		var p event.PuzzleSolvedPayload
		if err := unmarshalPayload(rec, &p); err != nil {
			return nil, err
		}
		state.Solved = true
		if p.TotalTimeMs != nil {
			state.Clock.TotalTimeMs = *p.TotalTimeMs
		}
	default:
		return nil, apperr.New(apperr.CodeInvalidEventType, fmt.Sprintf("unknown game event type %q", rec.Type))
	}

	state.LastSeq = rec.Seq
	return state, nil
}

func applyGameCreate(gid string, rec event.Record) (*GameState, error) {
	var p event.CreatePayload
	if err := unmarshalPayload(rec, &p); err != nil {
		return nil, err
	}

	grid := make([][]Cell, len(p.Grid))
	for r, row := range p.Grid {
		grid[r] = make([]Cell, len(row))
		for c, src := range row {
			grid[r][c] = Cell{
				Value:    src.Value,
				Black:    src.Black,
				Revealed: src.Revealed,
			}
			if len(p.Solution) > r && len(p.Solution[r]) > c {
				grid[r][c].Solution = p.Solution[r][c]
			}
		}
	}

	return &GameState{
		GID:      gid,
		Pid:      p.Pid,
		Info:     p.Info,
		Grid:     grid,
		Solution: p.Solution,
		Clues:    p.Clues,
		Users:    map[string]*GameUser{},
		Clock: Clock{
			Paused:      true,
			CreatedAtMs: rec.TimestampMs,
		},
		LastSeq: rec.Seq,
	}, nil
}

func cellAt(grid [][]Cell, row, col int) *Cell {
	if row < 0 || row >= len(grid) {
		return nil
	}
	if col < 0 || col >= len(grid[row]) {
		return nil
	}
	return &grid[row][col]
}

// checkScope returns the cells an event applies to: the explicit scope
// if present (as given, duplicates included), else the single (row, col).
func checkScope(row, col int, scope []event.Cell) []event.Cell {
	if len(scope) > 0 {
		return scope
	}
	return []event.Cell{{Row: row, Col: col}}
}

func unmarshalPayload(rec event.Record, dst any) error {
	if err := json.Unmarshal(rec.Payload, dst); err != nil {
		return apperr.Wrap(apperr.CodeMissingPayloadField, fmt.Sprintf("malformed %s payload", rec.Type), err)
	}
	return nil
}
