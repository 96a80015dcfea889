package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const createPuzzlesTableSQL = `
CREATE TABLE puzzles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pid TEXT NOT NULL UNIQUE,
    pid_numeric INTEGER,
    is_public INTEGER NOT NULL DEFAULT 1,
    uploaded_at INTEGER NOT NULL,
    times_solved INTEGER NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    created_by TEXT NOT NULL DEFAULT ''
);
`

func openTestCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.sqlite")

	seedDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	if _, err := seedDB.Exec(createPuzzlesTableSQL); err != nil {
		t.Fatalf("create puzzles table: %v", err)
	}
	if err := seedDB.Close(); err != nil {
		t.Fatalf("close seed db: %v", err)
	}

	c, err := Open(path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	return c, path
}

func seedPuzzle(t *testing.T, path, pid string, pidNumeric *int64, isPublic bool, content Content) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db for seed: %v", err)
	}
	defer db.Close()

	payload, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}

	_, err = db.Exec(
		`INSERT INTO puzzles (pid, pid_numeric, is_public, uploaded_at, times_solved, content) VALUES (?, ?, ?, ?, 0, ?)`,
		pid, pidNumeric, isPublic, 1000, string(payload),
	)
	if err != nil {
		t.Fatalf("seed puzzle: %v", err)
	}
}

func TestFindByPid(t *testing.T) {
	c, path := openTestCatalog(t)
	seedPuzzle(t, path, "p1", nil, true, Content{Info: Info{Title: "Crossings", Author: "Ada"}})

	puzzle, err := c.FindByPid(context.Background(), "p1")
	if err != nil {
		t.Fatalf("find by pid: %v", err)
	}
	if puzzle == nil {
		t.Fatal("expected puzzle")
	}
	if puzzle.Content.Info.Title != "Crossings" {
		t.Fatalf("expected title Crossings, got %q", puzzle.Content.Info.Title)
	}
}

func TestFindByPidMissing(t *testing.T) {
	c, _ := openTestCatalog(t)
	puzzle, err := c.FindByPid(context.Background(), "missing")
	if err != nil {
		t.Fatalf("find by pid: %v", err)
	}
	if puzzle != nil {
		t.Fatal("expected nil for missing puzzle")
	}
}

func TestIncrementSolveCount(t *testing.T) {
	c, path := openTestCatalog(t)
	seedPuzzle(t, path, "p1", nil, true, Content{Info: Info{Title: "Crossings"}})

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if err := c.IncrementSolveCount(context.Background(), tx, "p1"); err != nil {
		t.Fatalf("increment solve count: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	puzzle, err := c.FindByPid(context.Background(), "p1")
	if err != nil {
		t.Fatalf("find by pid: %v", err)
	}
	if puzzle.TimesSolved != 1 {
		t.Fatalf("expected times_solved 1, got %d", puzzle.TimesSolved)
	}
}

func TestIncrementSolveCountMissingPuzzle(t *testing.T) {
	c, path := openTestCatalog(t)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback()

	if err := c.IncrementSolveCount(context.Background(), tx, "missing"); err == nil {
		t.Fatal("expected error for missing puzzle")
	}
}

func TestListPublicOrderingAndFilter(t *testing.T) {
	c, path := openTestCatalog(t)

	n10, n5, n1 := int64(10), int64(5), int64(1)
	seedPuzzle(t, path, "p10", &n10, true, Content{Info: Info{Title: "Alpha Crossword", Author: "Ada", Type: "Mini"}})
	seedPuzzle(t, path, "p5", &n5, true, Content{Info: Info{Title: "Beta Puzzle", Author: "Bo", Type: "Standard"}})
	seedPuzzle(t, path, "p1", &n1, true, Content{Info: Info{Title: "Gamma Grid", Author: "Cy", Type: "Mini"}})
	seedPuzzle(t, path, "pnull", nil, true, Content{Info: Info{Title: "Delta", Author: "Dee", Type: "Mini"}})
	seedPuzzle(t, path, "private", &n10, false, Content{Info: Info{Title: "Hidden", Author: "Eve", Type: "Mini"}})

	listings, err := c.ListPublic(context.Background(), Filter{}, 10, 0)
	if err != nil {
		t.Fatalf("list public: %v", err)
	}
	if len(listings) != 4 {
		t.Fatalf("expected 4 public listings, got %d", len(listings))
	}
	if listings[0].Pid != "p10" || listings[1].Pid != "p5" || listings[2].Pid != "p1" {
		t.Fatalf("expected descending pid_numeric order, got %+v", listings)
	}
	if listings[3].Pid != "pnull" {
		t.Fatalf("expected NULL pid_numeric last, got %+v", listings)
	}

	filtered, err := c.ListPublic(context.Background(), Filter{Types: []string{"Standard"}}, 10, 0)
	if err != nil {
		t.Fatalf("list public filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Pid != "p5" {
		t.Fatalf("expected only p5 for Standard type, got %+v", filtered)
	}

	searched, err := c.ListPublic(context.Background(), Filter{Search: "ada"}, 10, 0)
	if err != nil {
		t.Fatalf("list public searched: %v", err)
	}
	if len(searched) != 1 || searched[0].Pid != "p10" {
		t.Fatalf("expected only p10 for search 'ada', got %+v", searched)
	}
}
