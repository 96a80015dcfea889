// Package realtime is the HTTP boundary (C7) in front of the hub: SSE
// push, full-stream sync, and publish, over gin. It is intentionally
// thin — none of gridwire's invariants live here.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/louisbranch/gridwire/internal/gridwire/catalog"
	"github.com/louisbranch/gridwire/internal/gridwire/event"
	"github.com/louisbranch/gridwire/internal/gridwire/solve"
	"github.com/louisbranch/gridwire/internal/platform/apperr"
)

var errMissingHub = errors.New("hub service dependency required")

// Hub is the hub capability the transport depends on, matching
// hub.Service's exported methods.
type Hub interface {
	Subscribe(ctx context.Context, kind event.Kind, id string) (<-chan event.Record, func())
	Publish(ctx context.Context, draft event.Draft) (event.Record, error)
	Sync(ctx context.Context, kind event.Kind, id string) ([]event.Record, error)
}

// SolveRecorder is the C4 capability the transport exposes at
// /puzzles/:pid/games/:gid/solve.
type SolveRecorder interface {
	RecordSolve(ctx context.Context, pid, gid string, timeToSolveSeconds int) (solve.Record, error)
}

// PuzzleCatalog is the C5 capability the transport exposes at
// /puzzles.
type PuzzleCatalog interface {
	ListPublic(ctx context.Context, filter catalog.Filter, limit, offset int) ([]catalog.PuzzleListing, error)
}

// Dependencies wires the transport to its collaborators. Solve and
// Catalog are optional: when nil, the corresponding routes are not
// registered.
type Dependencies struct {
	Hub     Hub
	Solve   SolveRecorder
	Catalog PuzzleCatalog
	Logger  *zap.Logger
}

// NewHTTPHandler builds the gin router exposing the realtime stream
// endpoints, grounded on gravity's server.NewHTTPHandler shape (gin.New +
// gin.Recovery + permissive CORS, a small httpHandler with injected
// dependencies).
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Hub == nil {
		return nil, errMissingHub
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	h := &httpHandler{hub: deps.Hub, solve: deps.Solve, catalog: deps.Catalog, logger: logger}

	streams := router.Group("/streams/:kind/:id")
	streams.GET("/events", h.handleStreamEvents)
	streams.GET("/sync", h.handleSync)
	streams.POST("/events", h.handlePublish)

	if deps.Solve != nil {
		router.POST("/puzzles/:pid/games/:gid/solve", h.handleRecordSolve)
	}
	if deps.Catalog != nil {
		router.GET("/puzzles", h.handleListPuzzles)
	}

	return router, nil
}

type httpHandler struct {
	hub     Hub
	solve   SolveRecorder
	catalog PuzzleCatalog
	logger  *zap.Logger
}

func parseStreamKind(c *gin.Context) (event.Kind, bool) {
	kind := event.Kind(c.Param("kind"))
	if !kind.IsValid() {
		writeAppError(c, apperr.New(apperr.CodeInvalidStreamKind, fmt.Sprintf("unknown stream kind %q", c.Param("kind"))))
		return "", false
	}
	return kind, true
}

func writeAppError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.Code.HTTPStatus(), gin.H{"error": appErr.Code, "message": appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
