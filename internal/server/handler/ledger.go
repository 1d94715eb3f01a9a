package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/engine"
)

// LedgerHandler serves the ledger overview, the persisted event journal, and
// settlement records.
type LedgerHandler struct {
	engine      *engine.Engine
	audit       domain.AuditStore
	settlements domain.SettlementStore
	logger      *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler. The audit and settlement stores
// may be nil when the instance runs without Postgres; the corresponding
// endpoints then report 503.
func NewLedgerHandler(eng *engine.Engine, audit domain.AuditStore, settlements domain.SettlementStore, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		engine:      eng,
		audit:       audit,
		settlements: settlements,
		logger:      logger,
	}
}

// Overview returns the ledger identities and custody balance.
// GET /api/ledger
func (h *LedgerHandler) Overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"operator":        h.engine.Operator().Hex(),
		"custody":         h.engine.Custody().Hex(),
		"custody_balance": domain.AmountString(h.engine.CustodyBalance()),
		"project_count":   h.engine.ProjectCount(),
	})
}

// Events returns the persisted audit journal, newest first.
// GET /api/ledger/events?limit=50&offset=0&since=RFC3339&until=RFC3339
func (h *LedgerHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "event journal not configured")
		return
	}

	opts := parseListOpts(r)
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since timestamp")
			return
		}
		opts.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid until timestamp")
			return
		}
		opts.Until = &t
	}

	events, err := h.audit.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	if events == nil {
		events = []domain.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// settlementView is the wire shape of a settlement summary.
type settlementView struct {
	ProjectID         uint64 `json:"project_id"`
	WinningOption     int    `json:"winning_option"`
	PrizePool         string `json:"prize_pool"`
	TotalWinningStake string `json:"total_winning_stake"`
	LedgerBalance     string `json:"ledger_balance"`
	SettledAt         string `json:"settled_at"`
}

// payoutView is the wire shape of a single payout record.
type payoutView struct {
	TicketID uint64 `json:"ticket_id"`
	Amount   string `json:"amount"`
	Winner   string `json:"winner"`
	PaidAt   string `json:"paid_at"`
}

// Settlement returns the persisted settlement record for a finished project.
// GET /api/settlements/{projectId}
func (h *LedgerHandler) Settlement(w http.ResponseWriter, r *http.Request) {
	if h.settlements == nil {
		writeError(w, http.StatusServiceUnavailable, "settlement store not configured")
		return
	}

	projectID, err := parseID(r, "projectId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, payouts, err := h.settlements.GetByProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "settlement not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get settlement failed",
			slog.Uint64("project_id", projectID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get settlement")
		return
	}

	pv := make([]payoutView, 0, len(payouts))
	for _, p := range payouts {
		pv = append(pv, payoutView{
			TicketID: p.TicketID,
			Amount:   domain.AmountString(p.Amount),
			Winner:   p.Winner.Hex(),
			PaidAt:   p.PaidAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settlement": settlementView{
			ProjectID:         summary.ProjectID,
			WinningOption:     summary.WinningOption,
			PrizePool:         domain.AmountString(summary.PrizePool),
			TotalWinningStake: domain.AmountString(summary.TotalWinningStake),
			LedgerBalance:     domain.AmountString(summary.LedgerBalance),
			SettledAt:         summary.SettledAt.UTC().Format(time.RFC3339),
		},
		"payouts": pv,
	})
}
