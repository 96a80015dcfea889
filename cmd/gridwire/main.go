package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	gridwireconfig "github.com/louisbranch/gridwire/internal/gridwire/config"
	"github.com/louisbranch/gridwire/internal/gridwire/catalog"
	"github.com/louisbranch/gridwire/internal/gridwire/hub"
	"github.com/louisbranch/gridwire/internal/gridwire/solve"
	"github.com/louisbranch/gridwire/internal/gridwire/store"
	entrypoint "github.com/louisbranch/gridwire/internal/platform/cmd"
	"github.com/louisbranch/gridwire/internal/platform/logging"
	"github.com/louisbranch/gridwire/internal/platform/timeouts"
	"github.com/louisbranch/gridwire/internal/transport/realtime"
)

func main() {
	cfg, err := gridwireconfig.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetPrefix("[GRIDWIRE] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

func run(ctx context.Context, cfg gridwireconfig.Config) error {
	return entrypoint.RunWithTelemetry(ctx, cfg.OTelServiceName, func(ctx context.Context) error {
		return serve(ctx, cfg)
	})
}

func serve(ctx context.Context, cfg gridwireconfig.Config) error {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	eventStore, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer eventStore.Close()

	puzzleCatalog, err := catalog.Open(cfg.StorePath)
	if err != nil {
		return err
	}

	bus := hub.NewInMemoryBus()
	hubService := hub.NewServiceWithBuffer(eventStore, bus, cfg.SubscriberBuffer)
	solveService := solve.NewService(eventStore, puzzleCatalog)

	handler, err := realtime.NewHTTPHandler(realtime.Dependencies{
		Hub:     hubService,
		Solve:   solveService,
		Catalog: puzzleCatalog,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", cfg.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
