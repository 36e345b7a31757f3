package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mmcdole/lector/internal/adapter"
	"github.com/mmcdole/lector/internal/backend"
	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/service"
	"github.com/mmcdole/lector/internal/store"
	"golang.org/x/sync/errgroup"
)

const bootstrapTimeout = 20 * time.Second

// app holds everything the commands share
type app struct {
	cfg     *adapter.Config
	logger  *slog.Logger
	logFile io.Closer

	client  *backend.Client
	store   *store.ReaderStore
	session *service.SessionService
	voices  *service.VoiceService
	reader  *service.ReaderService
}

// newApp loads configuration and builds the backend, store and services
func newApp() (*app, error) {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, logFile, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)

	a := buildApp(cfg, logger, adapter.GetCachePath())
	a.logFile = logFile
	return a, nil
}

// buildApp wires the services for cfg. An empty cacheDir keeps the store
// in memory.
func buildApp(cfg *adapter.Config, logger *slog.Logger, cacheDir string) *app {
	a := &app{cfg: cfg, logger: logger}

	a.client = backend.NewClient(cfg.Backend.URL, backend.Options{
		Timeout:           cfg.Backend.Timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		MaxRetries:        cfg.Backend.Retries,
	}, logger)

	var err error
	a.store, err = store.NewReaderStore(cacheDir, cfg.Backend.URL)
	if err != nil {
		logger.Warn("cache unavailable, using memory store", "error", err)
		a.store, _ = store.NewReaderStore("", "")
	}

	user := domain.User{ID: cfg.User.ID, Email: cfg.User.Email, Name: cfg.User.Name}
	a.session = service.NewSessionService(a.client, user, logger)
	a.voices = service.NewVoiceService(a.client, logger)
	a.reader = service.NewReaderService(a.client, a.store, a.session, service.ReaderOptions{
		SummaryLength: cfg.Reader.SummaryLength,
		DemoText:      cfg.Reader.DemoText,
		Defaults: domain.Settings{
			Voice: cfg.Reader.Voice,
			Rate:  cfg.Reader.Rate,
			Pitch: cfg.Reader.Pitch,
		},
	}, logger)
	return a
}

// bootstrap checks the backend, fetches voices and syncs the user
// concurrently. An unreachable backend cancels the other calls and is
// returned; other failures are logged and the reader still opens.
func (a *app) bootstrap(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.client.Health(gctx)
		switch {
		case backend.IsOffline(err):
			return fmt.Errorf("backend %s: %w", a.client.BaseURL(), err)
		case err != nil:
			a.logger.Warn("backend health check failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := a.voices.Load(gctx); err != nil && gctx.Err() == nil {
			a.logger.Warn("voices unavailable at startup", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		plan, err := a.session.Sync(gctx)
		switch {
		case errors.Is(err, domain.ErrNotSignedIn):
			a.logger.Debug("no user to sync")
		case err != nil:
			if gctx.Err() == nil {
				a.logger.Warn("user sync failed", "error", err)
			}
		default:
			a.logger.Info("user synced", "plan", plan)
		}
		return nil
	})
	g.Go(func() error {
		if n := a.store.PruneSynthesis(a.cfg.Cache.SynthesisTTL); n > 0 {
			a.logger.Debug("pruned synthesis cache", "entries", n)
		}
		return nil
	})
	return g.Wait()
}

// Close releases the store and the log file
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close store", "error", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
