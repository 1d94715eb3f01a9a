package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/engine"
)

// TicketHandler serves the ticket registry endpoints: lookups, transfers,
// and the approval surface used to escrow tickets for sale.
type TicketHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewTicketHandler creates a TicketHandler over the ledger engine.
func NewTicketHandler(eng *engine.Engine, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{
		engine: eng,
		logger: logger,
	}
}

// ticketView is the wire shape of a ticket.
type ticketView struct {
	ID            uint64 `json:"id"`
	ProjectID     uint64 `json:"project_id"`
	OptionID      int    `json:"option_id"`
	BetAmount     string `json:"bet_amount"`
	Owner         string `json:"owner"`
	OriginalBuyer string `json:"original_buyer"`
	PurchasedAt   string `json:"purchased_at"`
}

func toTicketView(t domain.Ticket) ticketView {
	return ticketView{
		ID:            t.ID,
		ProjectID:     t.ProjectID,
		OptionID:      t.OptionID,
		BetAmount:     domain.AmountString(t.BetAmount),
		Owner:         t.Owner.Hex(),
		OriginalBuyer: t.OriginalBuyer.Hex(),
		PurchasedAt:   t.PurchasedAt.UTC().Format(time.RFC3339),
	}
}

// listTicketsResponse wraps the list tickets response.
type listTicketsResponse struct {
	Tickets []ticketView `json:"tickets"`
}

// List returns tickets filtered by owner or project.
// GET /api/tickets?owner=0x...  or  GET /api/tickets?project_id=N
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ownerParam := q.Get("owner")
	projectParam := q.Get("project_id")

	if ownerParam == "" && projectParam == "" {
		writeError(w, http.StatusBadRequest, "owner or project_id query parameter required")
		return
	}

	var tickets []domain.Ticket
	if ownerParam != "" {
		owner, err := parseAddress("owner", ownerParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tickets = h.engine.TicketsByOwner(owner)
	} else {
		id, err := parseQueryID(projectParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		tickets = h.engine.TicketsByProject(id)
	}

	views := make([]ticketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, toTicketView(t))
	}

	writeJSON(w, http.StatusOK, listTicketsResponse{Tickets: views})
}

// Get returns a single ticket by ID.
// GET /api/tickets/{id}
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.engine.Ticket(id)
	if err != nil {
		writeDomainError(w, h.logger, "get ticket", err)
		return
	}

	writeJSON(w, http.StatusOK, toTicketView(t))
}

type transferTicketRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
}

// Transfer moves a ticket to a new owner. The caller must be the current
// owner or the ticket's approved address. A transfer delists any active
// sell order and clears the approval.
// POST /api/tickets/{id}/transfer
func (h *TicketHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req transferTicketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.TransferTicket(caller, id, to); err != nil {
		writeDomainError(w, h.logger, "transfer ticket", err)
		return
	}

	t, err := h.engine.Ticket(id)
	if err != nil {
		writeDomainError(w, h.logger, "transfer ticket", err)
		return
	}

	writeJSON(w, http.StatusOK, toTicketView(t))
}

type approveTicketRequest struct {
	Caller  string `json:"caller"`
	Spender string `json:"spender"`
}

// Approve sets the single transfer approval on a ticket. Only the ticket
// owner may approve; listing for sale requires approving the ledger custody
// address.
// POST /api/tickets/{id}/approve
func (h *TicketHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req approveTicketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.ApproveTicket(caller, id, spender); err != nil {
		writeDomainError(w, h.logger, "approve ticket", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket_id": id,
		"approved":  spender.Hex(),
	})
}

// Approved returns the address approved to transfer a ticket.
// GET /api/tickets/{id}/approved
func (h *TicketHandler) Approved(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	spender, err := h.engine.TicketApproved(id)
	if err != nil {
		writeDomainError(w, h.logger, "get ticket approval", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket_id": id,
		"approved":  spender.Hex(),
	})
}
