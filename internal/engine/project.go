package engine

import (
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// CreateProject opens a new prediction project funded by the creator's
// credit tokens. Operator-only; requires at least two options and a positive
// prize pool. The pool is pulled from the creator via the token allowance
// path, so the creator must have approved the custody account first.
func (e *Engine) CreateProject(creator common.Address, title, description string, options []string, prizePool *big.Int, duration time.Duration) (uint64, error) {
	e.mu.Lock()
	id, events, err := e.createProjectLocked(creator, title, description, options, prizePool, duration)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	e.emit(events)
	return id, nil
}

func (e *Engine) createProjectLocked(creator common.Address, title, description string, options []string, prizePool *big.Int, duration time.Duration) (uint64, []domain.Event, error) {
	if creator != e.operator {
		return 0, nil, fmt.Errorf("engine: create project by %s: %w", creator.Hex(), domain.ErrUnauthorized)
	}
	if len(options) < 2 {
		return 0, nil, fmt.Errorf("engine: create project needs at least 2 options, got %d: %w", len(options), domain.ErrInvalidArgument)
	}
	if !domain.IsPositive(prizePool) {
		return 0, nil, fmt.Errorf("engine: prize pool must be positive: %w", domain.ErrInvalidArgument)
	}

	// Pull the pool into custody. Token failures propagate unchanged so the
	// caller sees the exact allowance/balance problem.
	if err := e.token.TransferFrom(e.custody, creator, e.custody, prizePool); err != nil {
		return 0, nil, fmt.Errorf("engine: fund prize pool: %w", err)
	}

	id := e.nextProjectID
	e.nextProjectID++

	now := e.now().UTC()
	p := &domain.Project{
		ID:          id,
		Title:       title,
		Description: description,
		Options:     append([]string(nil), options...),
		PrizePool:   domain.CopyAmount(prizePool),
		BetTotals:   make([]*big.Int, len(options)),
		Creator:     creator,
		CreatedAt:   now,
		EndTime:     now.Add(duration),
		IsActive:    true,
		IsFinished:  false,
	}
	for i := range p.BetTotals {
		p.BetTotals[i] = new(big.Int)
	}
	e.projects[id] = p

	e.logger.Info("project created",
		slog.Uint64("project_id", id),
		slog.String("title", title),
		slog.Int("options", len(options)),
		slog.String("prize_pool", domain.AmountString(prizePool)),
	)

	ev := e.newEvent(domain.EventProjectCreated, map[string]any{
		"project_id": id,
		"title":      title,
		"options":    p.Options,
		"prize_pool": domain.AmountString(prizePool),
		"end_time":   p.EndTime,
		"creator":    creator.Hex(),
	})
	return id, []domain.Event{ev}, nil
}

// BuyTicket stakes amount credit tokens on the given option and mints a
// ticket recording the stake. The stake is pulled via the buyer's token
// allowance for the custody account; the debit and the mint succeed or fail
// together.
func (e *Engine) BuyTicket(buyer common.Address, projectID uint64, optionID int, amount *big.Int) (uint64, error) {
	e.mu.Lock()
	id, events, err := e.buyTicketLocked(buyer, projectID, optionID, amount)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	e.emit(events)
	return id, nil
}

func (e *Engine) buyTicketLocked(buyer common.Address, projectID uint64, optionID int, amount *big.Int) (uint64, []domain.Event, error) {
	p, ok := e.projects[projectID]
	if !ok {
		return 0, nil, fmt.Errorf("engine: project %d: %w", projectID, domain.ErrNotFound)
	}
	if p.IsFinished || !p.IsActive {
		return 0, nil, fmt.Errorf("engine: project %d is not accepting stakes: %w", projectID, domain.ErrInvalidState)
	}
	if !p.ValidOption(optionID) {
		return 0, nil, fmt.Errorf("engine: option %d out of range for project %d: %w", optionID, projectID, domain.ErrInvalidArgument)
	}
	if !domain.IsPositive(amount) {
		return 0, nil, fmt.Errorf("engine: stake must be positive: %w", domain.ErrInvalidArgument)
	}
	if !e.registry.IsMinter(e.custody) {
		return 0, nil, fmt.Errorf("engine: custody account is not an enabled ticket minter: %w", domain.ErrInvalidState)
	}

	if err := e.token.TransferFrom(e.custody, buyer, e.custody, amount); err != nil {
		return 0, nil, fmt.Errorf("engine: pull stake: %w", err)
	}

	ticketID, err := e.registry.Mint(e.custody, buyer, projectID, optionID, amount)
	if err != nil {
		// Unwind the debit so the failed purchase leaves no trace.
		if txErr := e.token.Transfer(e.custody, buyer, amount); txErr != nil {
			e.logger.Error("stake refund failed after mint error",
				slog.String("buyer", buyer.Hex()),
				slog.String("amount", domain.AmountString(amount)),
				slog.String("error", txErr.Error()),
			)
		}
		return 0, nil, fmt.Errorf("engine: mint ticket: %w", err)
	}

	p.BetTotals[optionID].Add(p.BetTotals[optionID], amount)

	e.logger.Info("ticket purchased",
		slog.Uint64("project_id", projectID),
		slog.Uint64("ticket_id", ticketID),
		slog.Int("option_id", optionID),
		slog.String("amount", domain.AmountString(amount)),
		slog.String("buyer", buyer.Hex()),
	)

	ev := e.newEvent(domain.EventTicketMinted, map[string]any{
		"project_id": projectID,
		"ticket_id":  ticketID,
		"option_id":  optionID,
		"amount":     domain.AmountString(amount),
		"buyer":      buyer.Hex(),
	})
	return ticketID, []domain.Event{ev}, nil
}

// TransferTicket moves a ticket to a new owner through the registry's
// owner/approved transfer path, outside the order book. The registry clears
// the escrow approval on transfer, so any active sell order on the ticket is
// delisted here as well.
func (e *Engine) TransferTicket(caller common.Address, ticketID uint64, to common.Address) error {
	e.mu.Lock()
	err := e.registry.Transfer(caller, ticketID, to)
	var events []domain.Event
	if err == nil {
		if orderID := e.activeOrderByTicket[ticketID]; orderID != 0 {
			o := e.orders[orderID]
			o.IsActive = false
			delete(e.activeOrderByTicket, ticketID)
			events = append(events, e.newEvent(domain.EventOrderCancelled, map[string]any{
				"order_id":  orderID,
				"ticket_id": ticketID,
				"seller":    o.Seller.Hex(),
			}))
		}
		events = append(events, e.newEvent(domain.EventTicketTransferred, map[string]any{
			"ticket_id": ticketID,
			"from":      caller.Hex(),
			"to":        to.Hex(),
		}))
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.emit(events)
	return nil
}

// Project returns a copy of the project record.
func (e *Engine) Project(projectID uint64) (domain.Project, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[projectID]
	if !ok {
		return domain.Project{}, fmt.Errorf("engine: project %d: %w", projectID, domain.ErrNotFound)
	}
	return copyProject(p), nil
}

// Projects returns copies of every project, ordered by ID.
func (e *Engine) Projects() []domain.Project {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.Project, 0, len(e.projects))
	for id := uint64(1); id < e.nextProjectID; id++ {
		if p, ok := e.projects[id]; ok {
			out = append(out, copyProject(p))
		}
	}
	return out
}

// ProjectCount returns the number of projects ever created.
func (e *Engine) ProjectCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextProjectID - 1
}

// BetTotals returns the per-option staked totals for the project.
func (e *Engine) BetTotals(projectID uint64) ([]*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("engine: project %d: %w", projectID, domain.ErrNotFound)
	}
	out := make([]*big.Int, len(p.BetTotals))
	for i, t := range p.BetTotals {
		out[i] = domain.CopyAmount(t)
	}
	return out, nil
}

func copyProject(p *domain.Project) domain.Project {
	c := *p
	c.Options = append([]string(nil), p.Options...)
	c.PrizePool = domain.CopyAmount(p.PrizePool)
	c.BetTotals = make([]*big.Int, len(p.BetTotals))
	for i, t := range p.BetTotals {
		c.BetTotals[i] = domain.CopyAmount(t)
	}
	return c
}
