package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/louisbranch/gridwire/internal/gridwire/catalog"
	"github.com/louisbranch/gridwire/internal/gridwire/event"
	"github.com/louisbranch/gridwire/internal/gridwire/solve"
)

type fakeHub struct {
	subscribeChan chan event.Record
	syncRecords   []event.Record
	syncErr       error
	publishRecord event.Record
	publishErr    error
	publishedDraft event.Draft
}

func (f *fakeHub) Subscribe(ctx context.Context, kind event.Kind, id string) (<-chan event.Record, func()) {
	return f.subscribeChan, func() {}
}

func (f *fakeHub) Publish(ctx context.Context, draft event.Draft) (event.Record, error) {
	f.publishedDraft = draft
	return f.publishRecord, f.publishErr
}

func (f *fakeHub) Sync(ctx context.Context, kind event.Kind, id string) ([]event.Record, error) {
	return f.syncRecords, f.syncErr
}

func TestNewHTTPHandlerRejectsMissingHub(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatal("expected error when Hub is nil")
	}
}

func TestHandleSyncRejectsUnknownKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Params = gin.Params{{Key: "kind", Value: "bogus"}, {Key: "id", Value: "g1"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/streams/bogus/g1/sync", nil)

	h := &httpHandler{hub: &fakeHub{}, logger: zap.NewNop()}
	h.handleSync(c)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestHandleSyncReturnsRecordsAsRawPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Params = gin.Params{{Key: "kind", Value: "game"}, {Key: "id", Value: "g1"}}
	c.Request = httptest.NewRequest(http.MethodGet, "/streams/game/g1/sync", nil)

	fake := &fakeHub{syncRecords: []event.Record{
		{StreamKind: event.KindGame, StreamID: "g1", Seq: 1, Type: event.TypeCreate, Payload: []byte(`{"pid":"p1"}`)},
	}}
	h := &httpHandler{hub: fake, logger: zap.NewNop()}
	h.handleSync(c)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var body struct {
		Events []struct {
			Payload json.RawMessage `json:"payload"`
			Seq     int64           `json:"seq"`
		} `json:"events"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].Seq != 1 {
		t.Fatalf("expected one event with seq 1, got %+v", body.Events)
	}
	if !strings.Contains(string(body.Events[0].Payload), `"pid":"p1"`) {
		t.Fatalf("expected raw JSON payload preserved, got %s", body.Events[0].Payload)
	}
}

func TestHandlePublishBindsDraftAndReturnsRecord(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Params = gin.Params{{Key: "kind", Value: "game"}, {Key: "id", Value: "g1"}}

	body := `{"type":"cell_fill","payload":{"row":0,"col":0,"value":"A"},"user_id":"u1"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/streams/game/g1/events", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	fake := &fakeHub{publishRecord: event.Record{StreamKind: event.KindGame, StreamID: "g1", Seq: 1, Type: event.TypeCellFill, Payload: []byte(`{"row":0,"col":0,"value":"A"}`)}}
	h := &httpHandler{hub: fake, logger: zap.NewNop()}
	h.handlePublish(c)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if fake.publishedDraft.StreamID != "g1" || fake.publishedDraft.Type != event.TypeCellFill {
		t.Fatalf("expected draft forwarded to hub, got %+v", fake.publishedDraft)
	}
	if fake.publishedDraft.UserID != "u1" {
		t.Fatalf("expected user_id forwarded, got %q", fake.publishedDraft.UserID)
	}
}

type fakeSolveRecorder struct {
	record solve.Record
	err    error
}

func (f *fakeSolveRecorder) RecordSolve(ctx context.Context, pid, gid string, timeToSolveSeconds int) (solve.Record, error) {
	return f.record, f.err
}

type fakeCatalog struct {
	listings []catalog.PuzzleListing
	err      error
	gotLimit, gotOffset int
	gotFilter catalog.Filter
}

func (f *fakeCatalog) ListPublic(ctx context.Context, filter catalog.Filter, limit, offset int) ([]catalog.PuzzleListing, error) {
	f.gotFilter, f.gotLimit, f.gotOffset = filter, limit, offset
	return f.listings, f.err
}

func TestHandleRecordSolveReturnsCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Params = gin.Params{{Key: "pid", Value: "p1"}, {Key: "gid", Value: "g1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/puzzles/p1/games/g1/solve", strings.NewReader(`{"time_to_solve_seconds":42}`))
	c.Request.Header.Set("Content-Type", "application/json")

	fake := &fakeSolveRecorder{record: solve.Record{
		Pid: "p1", GID: "g1", SolvedAt: time.Unix(0, 0).UTC(),
		TimeTakenSeconds: 42, RevealedSquaresCount: 0, CheckedSquaresCount: 2,
	}}
	h := &httpHandler{solve: fake, logger: zap.NewNop()}
	h.handleRecordSolve(c)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var body struct {
		TimeTakenSeconds    int `json:"time_taken_seconds"`
		CheckedSquaresCount int `json:"checked_squares_count"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TimeTakenSeconds != 42 || body.CheckedSquaresCount != 2 {
		t.Fatalf("unexpected response body: %+v", body)
	}
}

func TestHandleListPuzzlesAppliesFilterAndPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/puzzles?search=ada&types=Mini,Standard&limit=5&offset=10", nil)

	fake := &fakeCatalog{listings: []catalog.PuzzleListing{{Pid: "p1", Title: "Alpha"}}}
	h := &httpHandler{catalog: fake, logger: zap.NewNop()}
	h.handleListPuzzles(c)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if fake.gotFilter.Search != "ada" {
		t.Fatalf("expected search forwarded, got %q", fake.gotFilter.Search)
	}
	if len(fake.gotFilter.Types) != 2 || fake.gotFilter.Types[0] != "Mini" {
		t.Fatalf("expected types split, got %+v", fake.gotFilter.Types)
	}
	if fake.gotLimit != 5 || fake.gotOffset != 10 {
		t.Fatalf("expected limit=5 offset=10, got limit=%d offset=%d", fake.gotLimit, fake.gotOffset)
	}
}

func TestHandleListPuzzlesCapsLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/puzzles?limit=999", nil)

	fake := &fakeCatalog{}
	h := &httpHandler{catalog: fake, logger: zap.NewNop()}
	h.handleListPuzzles(c)

	if fake.gotLimit != maxPuzzleListLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxPuzzleListLimit, fake.gotLimit)
	}
}

func TestHandlePublishRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Params = gin.Params{{Key: "kind", Value: "game"}, {Key: "id", Value: "g1"}}
	c.Request = httptest.NewRequest(http.MethodPost, "/streams/game/g1/events", strings.NewReader("not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	h := &httpHandler{hub: &fakeHub{}, logger: zap.NewNop()}
	h.handlePublish(c)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}
