package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/engine"
)

// OrderHandler serves the secondary-market order book endpoints: listing a
// ticket for sale, cancelling, and buying from an order.
type OrderHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler over the ledger engine.
func NewOrderHandler(eng *engine.Engine, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		engine: eng,
		logger: logger,
	}
}

// orderView is the wire shape of a sell order.
type orderView struct {
	ID        uint64 `json:"id"`
	TicketID  uint64 `json:"ticket_id"`
	Price     string `json:"price"`
	Seller    string `json:"seller"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toOrderView(o domain.SellOrder) orderView {
	return orderView{
		ID:        o.ID,
		TicketID:  o.TicketID,
		Price:     domain.AmountString(o.Price),
		Seller:    o.Seller.Hex(),
		IsActive:  o.IsActive,
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createOrderRequest struct {
	Seller   string `json:"seller"`
	TicketID uint64 `json:"ticket_id"`
	Price    string `json:"price"`
}

// Create lists a ticket for sale. The seller must own the ticket and have
// approved the ledger custody address on it, and the ticket must not
// already carry an active order.
// POST /api/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	seller, err := parseAddress("seller", req.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TicketID == 0 {
		writeError(w, http.StatusBadRequest, "ticket_id is required")
		return
	}
	price, err := parseAmount("price", req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.engine.CreateSellOrder(seller, req.TicketID, price)
	if err != nil {
		writeDomainError(w, h.logger, "create sell order", err)
		return
	}

	o, err := h.engine.Order(id)
	if err != nil {
		writeDomainError(w, h.logger, "create sell order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderView(o))
}

type cancelOrderRequest struct {
	Caller string `json:"caller"`
}

// Cancel deactivates an active order. Only the seller may cancel; the
// ticket approval is left in place.
// POST /api/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req cancelOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.CancelSellOrder(caller, id); err != nil {
		writeDomainError(w, h.logger, "cancel sell order", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "cancelled",
		"order_id": id,
	})
}

type buyOrderRequest struct {
	Buyer   string `json:"buyer"`
	Payment string `json:"payment"`
}

// Buy fills an active order: the buyer pays the exact listed price in
// native currency and receives the ticket.
// POST /api/orders/{id}/buy
func (h *OrderHandler) Buy(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req buyOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	buyer, err := parseAddress("buyer", req.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment, err := parseAmount("payment", req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.BuyFromOrder(buyer, id, payment); err != nil {
		writeDomainError(w, h.logger, "buy from order", err)
		return
	}

	o, err := h.engine.Order(id)
	if err != nil {
		writeDomainError(w, h.logger, "buy from order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderView(o))
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []orderView `json:"orders"`
}

// List returns the active sell orders for a project's tickets.
// GET /api/orders?project_id=N
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	projectParam := r.URL.Query().Get("project_id")
	if projectParam == "" {
		writeError(w, http.StatusBadRequest, "project_id query parameter required")
		return
	}
	projectID, err := parseQueryID(projectParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders := h.engine.ActiveSellOrders(projectID)

	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: views})
}

// Get returns a single order by ID, active or not.
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.engine.Order(id)
	if err != nil {
		writeDomainError(w, h.logger, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderView(o))
}

// TicketOrder returns the active order for a ticket, if any.
// GET /api/tickets/{id}/order
func (h *OrderHandler) TicketOrder(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orderID := h.engine.TicketActiveOrder(ticketID)
	if orderID == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"ticket_id": ticketID,
			"order":     nil,
		})
		return
	}

	o, err := h.engine.Order(orderID)
	if err != nil {
		writeDomainError(w, h.logger, "get ticket order", err)
		return
	}

	view := toOrderView(o)
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket_id": ticketID,
		"order":     &view,
	})
}
