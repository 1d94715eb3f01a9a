package engine

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// CreateSellOrder lists a ticket for sale in native currency. The seller
// must own the ticket and must already have approved the custody account at
// the registry; escrow never takes ownership, it only requires the standing
// approval used at purchase time. At most one active order may exist per
// ticket.
func (e *Engine) CreateSellOrder(seller common.Address, ticketID uint64, price *big.Int) (uint64, error) {
	e.mu.Lock()
	id, events, err := e.createSellOrderLocked(seller, ticketID, price)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	e.emit(events)
	return id, nil
}

func (e *Engine) createSellOrderLocked(seller common.Address, ticketID uint64, price *big.Int) (uint64, []domain.Event, error) {
	if !domain.IsPositive(price) {
		return 0, nil, fmt.Errorf("engine: order price must be positive: %w", domain.ErrInvalidArgument)
	}

	owner, err := e.registry.OwnerOf(ticketID)
	if err != nil {
		return 0, nil, fmt.Errorf("engine: list ticket %d: %w", ticketID, domain.ErrNotFound)
	}
	if owner != seller {
		return 0, nil, fmt.Errorf("engine: list ticket %d by non-owner %s: %w", ticketID, seller.Hex(), domain.ErrUnauthorized)
	}

	approved, err := e.registry.GetApproved(ticketID)
	if err != nil {
		return 0, nil, err
	}
	if approved != e.custody {
		return 0, nil, fmt.Errorf("engine: ticket %d is not approved for ledger escrow: %w", ticketID, domain.ErrInvalidState)
	}

	if e.activeOrderByTicket[ticketID] != 0 {
		return 0, nil, fmt.Errorf("engine: ticket %d: %w", ticketID, domain.ErrAlreadyListed)
	}

	id := e.nextOrderID
	e.nextOrderID++

	e.orders[id] = &domain.SellOrder{
		ID:        id,
		TicketID:  ticketID,
		Price:     domain.CopyAmount(price),
		Seller:    seller,
		IsActive:  true,
		CreatedAt: e.now().UTC(),
	}
	e.activeOrderByTicket[ticketID] = id

	e.logger.Info("sell order created",
		slog.Uint64("order_id", id),
		slog.Uint64("ticket_id", ticketID),
		slog.String("price", domain.AmountString(price)),
		slog.String("seller", seller.Hex()),
	)

	ev := e.newEvent(domain.EventOrderCreated, map[string]any{
		"order_id":  id,
		"ticket_id": ticketID,
		"price":     domain.AmountString(price),
		"seller":    seller.Hex(),
	})
	return id, []domain.Event{ev}, nil
}

// CancelSellOrder deactivates an active order. Only the seller may cancel;
// the registry approval is left in place, revoking it is the owner's
// separate action.
func (e *Engine) CancelSellOrder(caller common.Address, orderID uint64) error {
	e.mu.Lock()
	events, err := e.cancelSellOrderLocked(caller, orderID)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.emit(events)
	return nil
}

func (e *Engine) cancelSellOrderLocked(caller common.Address, orderID uint64) ([]domain.Event, error) {
	o, ok := e.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("engine: order %d: %w", orderID, domain.ErrNotFound)
	}
	if !o.IsActive {
		return nil, fmt.Errorf("engine: order %d is not active: %w", orderID, domain.ErrInvalidState)
	}
	if caller != o.Seller {
		return nil, fmt.Errorf("engine: cancel order %d by %s: %w", orderID, caller.Hex(), domain.ErrUnauthorized)
	}

	o.IsActive = false
	delete(e.activeOrderByTicket, o.TicketID)

	ev := e.newEvent(domain.EventOrderCancelled, map[string]any{
		"order_id":  orderID,
		"ticket_id": o.TicketID,
		"seller":    o.Seller.Hex(),
	})
	return []domain.Event{ev}, nil
}

// BuyFromOrder fills an active order: the ticket moves from seller to buyer
// through the registry's approved-transfer path, and the exact payment moves
// from the buyer's native balance to the seller's. Either both legs complete
// or neither does.
func (e *Engine) BuyFromOrder(buyer common.Address, orderID uint64, payment *big.Int) error {
	e.mu.Lock()
	events, err := e.buyFromOrderLocked(buyer, orderID, payment)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.emit(events)
	return nil
}

func (e *Engine) buyFromOrderLocked(buyer common.Address, orderID uint64, payment *big.Int) ([]domain.Event, error) {
	o, ok := e.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("engine: order %d: %w", orderID, domain.ErrNotFound)
	}
	if !o.IsActive {
		return nil, fmt.Errorf("engine: order %d is not active: %w", orderID, domain.ErrInvalidState)
	}
	if payment == nil || payment.Cmp(o.Price) != 0 {
		return nil, fmt.Errorf("engine: order %d wants %s, got %s: %w",
			orderID, domain.AmountString(o.Price), domain.AmountString(payment), domain.ErrPriceMismatch)
	}

	// The owner may have moved the ticket out-of-band since listing, which
	// clears the approval. Re-verify both legs before mutating anything.
	owner, err := e.registry.OwnerOf(o.TicketID)
	if err != nil {
		return nil, err
	}
	if owner != o.Seller {
		return nil, fmt.Errorf("engine: order %d seller no longer owns ticket %d: %w", orderID, o.TicketID, domain.ErrInvalidState)
	}
	approved, err := e.registry.GetApproved(o.TicketID)
	if err != nil {
		return nil, err
	}
	if approved != e.custody {
		return nil, fmt.Errorf("engine: ticket %d escrow approval revoked: %w", o.TicketID, domain.ErrInvalidState)
	}
	if bal := e.native[buyer]; bal == nil || bal.Cmp(payment) < 0 {
		return nil, fmt.Errorf("engine: native balance of %s: %w", buyer.Hex(), domain.ErrInsufficientBalance)
	}

	if err := e.registry.Transfer(e.custody, o.TicketID, buyer); err != nil {
		return nil, fmt.Errorf("engine: escrow transfer of ticket %d: %w", o.TicketID, err)
	}
	e.native[buyer].Sub(e.native[buyer], payment)
	e.creditNative(o.Seller, payment)

	o.IsActive = false
	delete(e.activeOrderByTicket, o.TicketID)

	e.logger.Info("order filled",
		slog.Uint64("order_id", orderID),
		slog.Uint64("ticket_id", o.TicketID),
		slog.String("price", domain.AmountString(o.Price)),
		slog.String("buyer", buyer.Hex()),
		slog.String("seller", o.Seller.Hex()),
	)

	ev := e.newEvent(domain.EventOrderFilled, map[string]any{
		"order_id":  orderID,
		"ticket_id": o.TicketID,
		"price":     domain.AmountString(o.Price),
		"buyer":     buyer.Hex(),
		"seller":    o.Seller.Hex(),
	})
	return []domain.Event{ev}, nil
}

// Order returns a copy of the order record, active or not.
func (e *Engine) Order(orderID uint64) (domain.SellOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok {
		return domain.SellOrder{}, fmt.Errorf("engine: order %d: %w", orderID, domain.ErrNotFound)
	}
	return copyOrder(o), nil
}

// TicketActiveOrder returns the ID of the ticket's active order, or 0 when
// the ticket is not listed.
func (e *Engine) TicketActiveOrder(ticketID uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeOrderByTicket[ticketID]
}

// ActiveSellOrders returns the active orders whose tickets belong to the
// given project, in order-ID order.
func (e *Engine) ActiveSellOrders(projectID uint64) []domain.SellOrder {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.SellOrder
	for id := uint64(1); id < e.nextOrderID; id++ {
		o, ok := e.orders[id]
		if !ok || !o.IsActive {
			continue
		}
		t, err := e.registry.TicketInfo(o.TicketID)
		if err != nil || t.ProjectID != projectID {
			continue
		}
		out = append(out, copyOrder(o))
	}
	return out
}

func copyOrder(o *domain.SellOrder) domain.SellOrder {
	c := *o
	c.Price = domain.CopyAmount(o.Price)
	return c
}
