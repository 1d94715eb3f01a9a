// Package server assembles the HTTP + WebSocket API over the ledger engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/server/handler"
	"github.com/alanyoungcy/betledger/internal/server/middleware"
	"github.com/alanyoungcy/betledger/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per window per client IP; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Token   *handler.TokenHandler
	Native  *handler.NativeHandler
	Project *handler.ProjectHandler
	Ticket  *handler.TicketHandler
	Order   *handler.OrderHandler
	Ledger  *handler.LedgerHandler
}

// Server is the HTTP + WebSocket API server for the ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, logging, rate limit, auth) applied. limiter
// may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required for everything below either; the API
	// key gates the whole surface when configured).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Ledger overview, event journal, settlement records.
	mux.HandleFunc("GET /api/ledger", handlers.Ledger.Overview)
	mux.HandleFunc("GET /api/ledger/events", handlers.Ledger.Events)
	mux.HandleFunc("GET /api/settlements/{projectId}", handlers.Ledger.Settlement)

	// Credit token.
	mux.HandleFunc("POST /api/token/claim", handlers.Token.Claim)
	mux.HandleFunc("POST /api/token/mint", handlers.Token.Mint)
	mux.HandleFunc("POST /api/token/transfer", handlers.Token.Transfer)
	mux.HandleFunc("POST /api/token/transfer-from", handlers.Token.TransferFrom)
	mux.HandleFunc("POST /api/token/approve", handlers.Token.Approve)
	mux.HandleFunc("GET /api/token/balance/{address}", handlers.Token.Balance)
	mux.HandleFunc("GET /api/token/claimed/{address}", handlers.Token.Claimed)
	mux.HandleFunc("GET /api/token/allowance", handlers.Token.Allowance)

	// Native-currency accounts.
	mux.HandleFunc("POST /api/native/deposit", handlers.Native.Deposit)
	mux.HandleFunc("POST /api/native/withdraw", handlers.Native.Withdraw)
	mux.HandleFunc("GET /api/native/balance/{address}", handlers.Native.Balance)

	// Projects and staking.
	mux.HandleFunc("POST /api/projects", handlers.Project.Create)
	mux.HandleFunc("GET /api/projects", handlers.Project.List)
	mux.HandleFunc("GET /api/projects/{id}", handlers.Project.Get)
	mux.HandleFunc("GET /api/projects/{id}/totals", handlers.Project.Totals)
	mux.HandleFunc("POST /api/projects/{id}/tickets", handlers.Project.BuyTicket)
	mux.HandleFunc("POST /api/projects/{id}/finish", handlers.Project.Finish)

	// Tickets.
	mux.HandleFunc("GET /api/tickets", handlers.Ticket.List)
	mux.HandleFunc("GET /api/tickets/{id}", handlers.Ticket.Get)
	mux.HandleFunc("POST /api/tickets/{id}/transfer", handlers.Ticket.Transfer)
	mux.HandleFunc("POST /api/tickets/{id}/approve", handlers.Ticket.Approve)
	mux.HandleFunc("GET /api/tickets/{id}/approved", handlers.Ticket.Approved)
	mux.HandleFunc("GET /api/tickets/{id}/order", handlers.Order.TicketOrder)

	// Order book.
	mux.HandleFunc("POST /api/orders", handlers.Order.Create)
	mux.HandleFunc("GET /api/orders", handlers.Order.List)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Order.Get)
	mux.HandleFunc("POST /api/orders/{id}/cancel", handlers.Order.Cancel)
	mux.HandleFunc("POST /api/orders/{id}/buy", handlers.Order.Buy)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey, logger)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
