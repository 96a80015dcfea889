// Package catalog is the minimal puzzle catalog surface the core needs
// (C5): lookup by public identifier, a solve-count increment hook used
// only from the solve service's transaction, and a paginated public
// listing.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	glebarezsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/louisbranch/gridwire/internal/platform/apperr"
)

// puzzleRow is the GORM binding for the puzzles table (spec §6).
type puzzleRow struct {
	ID          int64         `gorm:"column:id;primaryKey;autoIncrement"`
	Pid         string        `gorm:"column:pid;uniqueIndex"`
	PidNumeric  sql.NullInt64 `gorm:"column:pid_numeric"`
	IsPublic    bool          `gorm:"column:is_public"`
	UploadedAt  int64         `gorm:"column:uploaded_at"`
	TimesSolved int64         `gorm:"column:times_solved"`
	Content     string        `gorm:"column:content"`
	CreatedBy   string        `gorm:"column:created_by"`
}

func (puzzleRow) TableName() string { return "puzzles" }

// Content is the puzzle's descriptive payload, decoded from the content
// JSON column. content.solution is the puzzle's ground truth, the
// solution a game's `create` event carries for the projector.
type Content struct {
	Info      Info       `json:"info"`
	Grid      [][]Cell   `json:"grid"`
	Solution  [][]string `json:"solution"`
	Clues     any        `json:"clues,omitempty"`
	Circles   [][]Cell   `json:"circles,omitempty"`
	Shades    [][]Cell   `json:"shades,omitempty"`
}

// Info is a puzzle's descriptive metadata.
type Info struct {
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Type        string `json:"type,omitempty"`
	Copyright   string `json:"copyright,omitempty"`
	Description string `json:"description,omitempty"`
}

// Cell is a grid coordinate, used by Circles/Shades.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Puzzle is the fully decoded puzzle record.
type Puzzle struct {
	ID          int64
	Pid         string
	PidNumeric  *int64
	IsPublic    bool
	UploadedAt  int64
	TimesSolved int64
	Content     Content
	CreatedBy   string
}

// PuzzleListing is the reduced shape ListPublic returns.
type PuzzleListing struct {
	Pid         string
	Title       string
	Author      string
	Type        string
	TimesSolved int64
	IsPublic    bool
}

// Filter narrows ListPublic (spec §4.5).
type Filter struct {
	Types  []string
	Search string
}

// Catalog is the puzzle catalog, backed by SQLite via GORM.
type Catalog struct {
	db *gorm.DB
}

// Open opens the catalog against the same SQLite file the event store
// uses; the puzzles table is created by the store's migrations, not
// here.
func Open(path string) (*Catalog, error) {
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := gorm.Open(glebarezsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap catalog db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &Catalog{db: db}, nil
}

func decodeRow(row puzzleRow) (Puzzle, error) {
	var content Content
	if err := json.Unmarshal([]byte(row.Content), &content); err != nil {
		return Puzzle{}, fmt.Errorf("decode puzzle content: %w", err)
	}
	p := Puzzle{
		ID:          row.ID,
		Pid:         row.Pid,
		IsPublic:    row.IsPublic,
		UploadedAt:  row.UploadedAt,
		TimesSolved: row.TimesSolved,
		Content:     content,
		CreatedBy:   row.CreatedBy,
	}
	if row.PidNumeric.Valid {
		p.PidNumeric = &row.PidNumeric.Int64
	}
	return p, nil
}

// FindByPid returns the puzzle with the given public identifier, or nil
// if none exists.
func (c *Catalog) FindByPid(ctx context.Context, pid string) (*Puzzle, error) {
	var row puzzleRow
	err := c.db.WithContext(ctx).Where("pid = ?", pid).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find puzzle by pid: %w", err)
	}

	puzzle, err := decodeRow(row)
	if err != nil {
		return nil, err
	}
	return &puzzle, nil
}

// IncrementSolveCount bumps times_solved for pid by one. It must be
// called only from within the solve service's transaction (spec §4.4,
// I3) — it takes a raw *sql.Tx rather than the catalog's own *gorm.DB so
// it can participate in that transaction.
func (c *Catalog) IncrementSolveCount(ctx context.Context, tx *sql.Tx, pid string) error {
	res, err := tx.ExecContext(ctx, `UPDATE puzzles SET times_solved = times_solved + 1 WHERE pid = ?`, pid)
	if err != nil {
		return fmt.Errorf("increment times_solved: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.New(apperr.CodePuzzleNotFound, fmt.Sprintf("puzzle %q not found", pid))
	}
	return nil
}

// ListPublic returns a page of public puzzles matching filter, ordered by
// pid_numeric descending with NULLs last (spec §4.5). Ordering by a
// near-immutable field keeps pagination stable across concurrent inserts.
func (c *Catalog) ListPublic(ctx context.Context, filter Filter, limit, offset int) ([]PuzzleListing, error) {
	query := c.db.WithContext(ctx).Model(&puzzleRow{}).Where("is_public = ?", true)

	if len(filter.Types) > 0 {
		query = query.Where("json_extract(content, '$.info.type') IN ?", filter.Types)
	}

	for _, token := range strings.Fields(filter.Search) {
		like := "%" + strings.ToLower(token) + "%"
		query = query.Where(
			"LOWER(json_extract(content, '$.info.title') || ' ' || json_extract(content, '$.info.author')) LIKE ?",
			like,
		)
	}

	var rows []puzzleRow
	err := query.
		Order("pid_numeric IS NULL, pid_numeric DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list public puzzles: %w", err)
	}

	listings := make([]PuzzleListing, 0, len(rows))
	for _, row := range rows {
		puzzle, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		listings = append(listings, PuzzleListing{
			Pid:         puzzle.Pid,
			Title:       puzzle.Content.Info.Title,
			Author:      puzzle.Content.Info.Author,
			Type:        puzzle.Content.Info.Type,
			TimesSolved: puzzle.TimesSolved,
			IsPublic:    puzzle.IsPublic,
		})
	}
	return listings, nil
}
