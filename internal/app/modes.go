package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/betledger/internal/server"
	"github.com/alanyoungcy/betledger/internal/server/handler"
	"github.com/alanyoungcy/betledger/internal/server/ws"
)

// writerLockKey is the Redis key for the ledger writer lock. Exactly one
// instance may hold it; a second instance fails fast at startup instead of
// silently forking the ledger state.
const writerLockKey = "betledger:writer"

// shutdownTimeout bounds graceful HTTP shutdown after the context is
// cancelled.
const shutdownTimeout = 10 * time.Second

// ServerMode runs the full ledger service: the writer lock, the event
// recorder, the WebSocket hub, the HTTP API, and (when enabled) the periodic
// settlement archive loop. It blocks until the context is cancelled or a
// component fails.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering server mode",
		slog.String("operator", deps.Engine.Operator().Hex()),
		slog.String("custody", deps.Engine.Custody().Hex()),
	)

	unlock, err := deps.LockManager.Acquire(ctx, writerLockKey, a.cfg.Redis.WriterLockTTL.Duration)
	if err != nil {
		return fmt.Errorf("server mode: acquire writer lock: %w", err)
	}
	defer unlock()

	g, ctx := errgroup.WithContext(ctx)

	// Event fan-out worker.
	g.Go(func() error {
		return deps.Recorder.Run(ctx)
	})

	// WebSocket hub bridging the signal bus to browser clients.
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// HTTP API.
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Token:   handler.NewTokenHandler(deps.Engine, a.logger),
		Native:  handler.NewNativeHandler(deps.Engine, a.logger),
		Project: handler.NewProjectHandler(deps.Engine, a.logger),
		Ticket:  handler.NewTicketHandler(deps.Engine, a.logger),
		Order:   handler.NewOrderHandler(deps.Engine, a.logger),
		Ledger:  handler.NewLedgerHandler(deps.Engine, deps.AuditStore, deps.SettlementStore, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Periodic settlement archiving.
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server mode: %w", err)
	}
	return nil
}

// ArchiveMode runs a single settlement archive pass and exits. Intended for
// cron-style invocation against the same database as the running server.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: s3 is not configured")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	count, err := deps.Archiver.ArchiveSettlements(ctx, cutoff, archiveBatchLimit)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("settlements", count),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// archiveBatchLimit caps how many settlements a single archive pass exports.
const archiveBatchLimit = 10000

// archiveLoop runs the settlement archiver on the configured interval until
// the context is cancelled. Failures are logged and retried next tick.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
			count, err := deps.Archiver.ArchiveSettlements(ctx, cutoff, archiveBatchLimit)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				a.logger.InfoContext(ctx, "archive pass complete",
					slog.Int64("settlements", count),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}
