package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/engine"
)

// ProjectHandler serves the prediction-market project endpoints: creation,
// listing, stake placement, and settlement.
type ProjectHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewProjectHandler creates a ProjectHandler over the ledger engine.
func NewProjectHandler(eng *engine.Engine, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		engine: eng,
		logger: logger,
	}
}

// projectView is the wire shape of a project. Amounts are decimal strings.
type projectView struct {
	ID            uint64   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Options       []string `json:"options"`
	PrizePool     string   `json:"prize_pool"`
	BetTotals     []string `json:"bet_totals"`
	TotalStaked   string   `json:"total_staked"`
	Creator       string   `json:"creator"`
	CreatedAt     string   `json:"created_at"`
	EndTime       string   `json:"end_time"`
	IsActive      bool     `json:"is_active"`
	IsFinished    bool     `json:"is_finished"`
	WinningOption *int     `json:"winning_option,omitempty"`
}

func toProjectView(p domain.Project) projectView {
	v := projectView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Options:     p.Options,
		PrizePool:   domain.AmountString(p.PrizePool),
		BetTotals:   amountStrings(p.BetTotals),
		TotalStaked: domain.AmountString(p.TotalStaked()),
		Creator:     p.Creator.Hex(),
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
		EndTime:     p.EndTime.UTC().Format(time.RFC3339),
		IsActive:    p.IsActive,
		IsFinished:  p.IsFinished,
	}
	if p.IsFinished {
		win := p.WinningOption
		v.WinningOption = &win
	}
	return v
}

type createProjectRequest struct {
	Creator         string   `json:"creator"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Options         []string `json:"options"`
	PrizePool       string   `json:"prize_pool"`
	DurationSeconds int64    `json:"duration_seconds"`
}

// Create opens a new project. The creator must be the ledger operator and
// must have approved custody for at least the prize pool.
// POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	creator, err := parseAddress("creator", req.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pool, err := parseAmount("prize_pool", req.PrizePool)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DurationSeconds <= 0 {
		writeError(w, http.StatusBadRequest, "duration_seconds must be positive")
		return
	}

	id, err := h.engine.CreateProject(creator, req.Title, req.Description,
		req.Options, pool, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeDomainError(w, h.logger, "create project", err)
		return
	}

	p, err := h.engine.Project(id)
	if err != nil {
		writeDomainError(w, h.logger, "create project", err)
		return
	}

	writeJSON(w, http.StatusCreated, toProjectView(p))
}

// listProjectsResponse wraps the list projects response.
type listProjectsResponse struct {
	Projects []projectView `json:"projects"`
	Count    uint64        `json:"count"`
}

// List returns every project on the ledger, newest first.
// GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects := h.engine.Projects()

	views := make([]projectView, 0, len(projects))
	for i := len(projects) - 1; i >= 0; i-- {
		views = append(views, toProjectView(projects[i]))
	}

	writeJSON(w, http.StatusOK, listProjectsResponse{
		Projects: views,
		Count:    h.engine.ProjectCount(),
	})
}

// Get returns a single project by ID.
// GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.engine.Project(id)
	if err != nil {
		writeDomainError(w, h.logger, "get project", err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectView(p))
}

// Totals returns the per-option bet totals of a project.
// GET /api/projects/{id}/totals
func (h *ProjectHandler) Totals(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	totals, err := h.engine.BetTotals(id)
	if err != nil {
		writeDomainError(w, h.logger, "get bet totals", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": id,
		"bet_totals": amountStrings(totals),
	})
}

type buyTicketRequest struct {
	Buyer    string `json:"buyer"`
	OptionID int    `json:"option_id"`
	Amount   string `json:"amount"`
}

// BuyTicket stakes credit tokens on an option and mints a ticket. The buyer
// must have approved custody for at least the stake.
// POST /api/projects/{id}/tickets
func (h *ProjectHandler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req buyTicketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	buyer, err := parseAddress("buyer", req.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticketID, err := h.engine.BuyTicket(buyer, id, req.OptionID, amount)
	if err != nil {
		writeDomainError(w, h.logger, "buy ticket", err)
		return
	}

	t, err := h.engine.Ticket(ticketID)
	if err != nil {
		writeDomainError(w, h.logger, "buy ticket", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTicketView(t))
}

type finishProjectRequest struct {
	Caller        string `json:"caller"`
	WinningOption int    `json:"winning_option"`
}

// Finish settles a project: marks the winning option, distributes the prize
// pool across winning stakes, and closes the project permanently.
// POST /api/projects/{id}/finish
func (h *ProjectHandler) Finish(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req finishProjectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.FinishProject(caller, id, req.WinningOption); err != nil {
		writeDomainError(w, h.logger, "finish project", err)
		return
	}

	p, err := h.engine.Project(id)
	if err != nil {
		writeDomainError(w, h.logger, "finish project", err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectView(p))
}
