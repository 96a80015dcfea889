package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/louisbranch/gridwire/internal/gridwire/catalog"
	"github.com/louisbranch/gridwire/internal/gridwire/event"
)

// handleStreamEvents is GET /streams/:kind/:id/events: joins the stream's
// subscriber registry on connect and pushes every subsequent event as an
// SSE frame until the client disconnects, leaving on disconnect (spec
// §4.7).
func (h *httpHandler) handleStreamEvents(c *gin.Context) {
	kind, ok := parseStreamKind(c)
	if !ok {
		return
	}
	id := c.Param("id")

	ctx := c.Request.Context()
	events, leave := h.hub.Subscribe(ctx, kind, id)
	defer leave()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case rec, open := <-events:
			if !open {
				return false // dropped for backpressure; client must resync (spec §7)
			}
			payload, err := json.Marshal(toRecordDTO(rec))
			if err != nil {
				h.logger.Error("marshal event for sse", zap.Error(err))
				return false
			}
			c.SSEvent(string(rec.Type), string(payload))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// handleSync is GET /streams/:kind/:id/sync: returns the full persisted
// stream for a reconnecting client to fold from scratch (spec §4.3, §4.7).
func (h *httpHandler) handleSync(c *gin.Context) {
	kind, ok := parseStreamKind(c)
	if !ok {
		return
	}
	id := c.Param("id")

	records, err := h.hub.Sync(c.Request.Context(), kind, id)
	if err != nil {
		writeAppError(c, err)
		return
	}
	dtos := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toRecordDTO(rec))
	}
	c.JSON(http.StatusOK, gin.H{"events": dtos})
}

type publishRequest struct {
	Type    event.Type      `json:"type"`
	Payload json.RawMessage `json:"payload"`
	UserID  string          `json:"user_id"`
}

// recordDTO is the wire shape of a persisted event, keeping Payload as
// raw JSON rather than letting encoding/json base64-encode event.Record's
// []byte field.
type recordDTO struct {
	StreamKind    event.Kind      `json:"stream_kind"`
	StreamID      string          `json:"stream_id"`
	Seq           int64           `json:"seq"`
	Type          event.Type      `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	UserID        string          `json:"user_id,omitempty"`
	TimestampMs   int64           `json:"ts"`
	SchemaVersion int             `json:"schema_version"`
}

func toRecordDTO(rec event.Record) recordDTO {
	return recordDTO{
		StreamKind:    rec.StreamKind,
		StreamID:      rec.StreamID,
		Seq:           rec.Seq,
		Type:          rec.Type,
		Payload:       json.RawMessage(rec.Payload),
		UserID:        rec.UserID,
		TimestampMs:   rec.TimestampMs,
		SchemaVersion: rec.SchemaVersion,
	}
}

// handlePublish is POST /streams/:kind/:id/events: accepts a draft event,
// hands it to the hub for sentinel substitution, persistence and fan-out
// (spec §4.3, §6, §4.7).
func (h *httpHandler) handlePublish(c *gin.Context) {
	kind, ok := parseStreamKind(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": fmt.Sprintf("%v", err)})
		return
	}

	rec, err := h.hub.Publish(c.Request.Context(), event.Draft{
		StreamKind: kind,
		StreamID:   id,
		Type:       req.Type,
		Payload:    req.Payload,
		UserID:     req.UserID,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRecordDTO(rec))
}

type recordSolveRequest struct {
	TimeToSolveSeconds int `json:"time_to_solve_seconds"`
}

// handleRecordSolve is POST /puzzles/:pid/games/:gid/solve: records that
// gid finished pid, deriving assist counters from the game's own event
// stream (spec §4.4).
func (h *httpHandler) handleRecordSolve(c *gin.Context) {
	pid := c.Param("pid")
	gid := c.Param("gid")

	var req recordSolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": fmt.Sprintf("%v", err)})
		return
	}

	rec, err := h.solve.RecordSolve(c.Request.Context(), pid, gid, req.TimeToSolveSeconds)
	if err != nil {
		writeAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pid":                    rec.Pid,
		"gid":                    rec.GID,
		"solved_at":              rec.SolvedAt,
		"time_taken_seconds":     rec.TimeTakenSeconds,
		"revealed_squares_count": rec.RevealedSquaresCount,
		"checked_squares_count":  rec.CheckedSquaresCount,
	})
}

const (
	defaultPuzzleListLimit = 25
	maxPuzzleListLimit     = 100
)

// handleListPuzzles is GET /puzzles: a filtered, paginated page of the
// public puzzle catalog (spec §4.5).
func (h *httpHandler) handleListPuzzles(c *gin.Context) {
	filter := catalog.Filter{Search: c.Query("search")}
	if types := c.Query("types"); types != "" {
		filter.Types = strings.Split(types, ",")
	}

	limit := defaultPuzzleListLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPuzzleListLimit {
		limit = maxPuzzleListLimit
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	listings, err := h.catalog.ListPublic(c.Request.Context(), filter, limit, offset)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"puzzles": listings})
}
