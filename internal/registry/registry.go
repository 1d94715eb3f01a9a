// Package registry implements the non-fungible ticket registry: immutable
// ticket records with a mutable owner, minting gated by a global-minter
// capability set, and single-ticket approvals used as the escrow precondition
// by the order book.
package registry

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// Registry is the ticket ownership ledger. It is the sole mutator of ticket
// ownership; other components only read it or call through its transfer path.
type Registry struct {
	mu sync.RWMutex

	// owner is the registry administrator, allowed to toggle minters.
	owner common.Address

	// minters is the global-minter capability set: any enabled address may
	// mint tickets on behalf of arbitrary buyers. This keeps the registry
	// decoupled from the identity of the project ledger.
	minters map[common.Address]bool

	tickets   map[uint64]*domain.Ticket
	byOwner   map[common.Address][]uint64
	byProject map[uint64][]uint64

	// approvals holds the single approved spender per ticket, cleared on
	// every transfer.
	approvals map[uint64]common.Address

	nextID uint64
	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty registry administered by owner. Ticket IDs start at 1
// so zero can mean "no ticket" in lookups.
func New(owner common.Address, logger *slog.Logger) *Registry {
	return &Registry{
		owner:     owner,
		minters:   make(map[common.Address]bool),
		tickets:   make(map[uint64]*domain.Ticket),
		byOwner:   make(map[common.Address][]uint64),
		byProject: make(map[uint64][]uint64),
		approvals: make(map[uint64]common.Address),
		nextID:    1,
		logger:    logger.With(slog.String("component", "registry")),
		now:       time.Now,
	}
}

// SetGlobalMinter toggles whether minter may mint tickets. Only the registry
// owner may call this.
func (r *Registry) SetGlobalMinter(caller, minter common.Address, enabled bool) error {
	if caller != r.owner {
		return fmt.Errorf("registry: set minter by %s: %w", caller.Hex(), domain.ErrUnauthorized)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if enabled {
		r.minters[minter] = true
	} else {
		delete(r.minters, minter)
	}

	r.logger.Info("global minter updated",
		slog.String("minter", minter.Hex()),
		slog.Bool("enabled", enabled),
	)
	return nil
}

// IsMinter reports whether addr is an enabled global minter.
func (r *Registry) IsMinter(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.minters[addr]
}

// Mint allocates a new immutable ticket record owned by to and returns its
// ID. Only enabled global minters may mint.
func (r *Registry) Mint(caller, to common.Address, projectID uint64, optionID int, betAmount *big.Int) (uint64, error) {
	if !domain.IsPositive(betAmount) {
		return 0, fmt.Errorf("registry: mint bet amount must be positive: %w", domain.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.minters[caller] {
		return 0, fmt.Errorf("registry: mint by %s: %w", caller.Hex(), domain.ErrUnauthorized)
	}

	id := r.nextID
	r.nextID++

	r.tickets[id] = &domain.Ticket{
		ID:            id,
		ProjectID:     projectID,
		OptionID:      optionID,
		BetAmount:     domain.CopyAmount(betAmount),
		Owner:         to,
		OriginalBuyer: to,
		PurchasedAt:   r.now().UTC(),
	}
	r.byOwner[to] = append(r.byOwner[to], id)
	r.byProject[projectID] = append(r.byProject[projectID], id)

	return id, nil
}

// Transfer moves ticket ownership to to. The caller must be the current
// owner or the ticket's approved spender; any approval is cleared.
func (r *Registry) Transfer(caller common.Address, ticketID uint64, to common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[ticketID]
	if !ok {
		return fmt.Errorf("registry: transfer ticket %d: %w", ticketID, domain.ErrNotFound)
	}
	if caller != t.Owner && caller != r.approvals[ticketID] {
		return fmt.Errorf("registry: transfer ticket %d by %s: %w", ticketID, caller.Hex(), domain.ErrUnauthorized)
	}

	r.removeFromOwner(t.Owner, ticketID)
	t.Owner = to
	r.byOwner[to] = append(r.byOwner[to], ticketID)
	delete(r.approvals, ticketID)
	return nil
}

// Approve grants spender permission to transfer the ticket. Only the current
// owner may approve; a new approval replaces the previous one.
func (r *Registry) Approve(caller common.Address, ticketID uint64, spender common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[ticketID]
	if !ok {
		return fmt.Errorf("registry: approve ticket %d: %w", ticketID, domain.ErrNotFound)
	}
	if caller != t.Owner {
		return fmt.Errorf("registry: approve ticket %d by %s: %w", ticketID, caller.Hex(), domain.ErrUnauthorized)
	}
	r.approvals[ticketID] = spender
	return nil
}

// GetApproved returns the approved spender for the ticket, or the zero
// address when none is set.
func (r *Registry) GetApproved(ticketID uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.tickets[ticketID]; !ok {
		return common.Address{}, fmt.Errorf("registry: get approved for ticket %d: %w", ticketID, domain.ErrNotFound)
	}
	return r.approvals[ticketID], nil
}

// TicketInfo returns a copy of the ticket record.
func (r *Registry) TicketInfo(ticketID uint64) (domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[ticketID]
	if !ok {
		return domain.Ticket{}, fmt.Errorf("registry: ticket %d: %w", ticketID, domain.ErrNotFound)
	}
	return copyTicket(t), nil
}

// OwnerOf returns the current owner of the ticket.
func (r *Registry) OwnerOf(ticketID uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[ticketID]
	if !ok {
		return common.Address{}, fmt.Errorf("registry: ticket %d: %w", ticketID, domain.ErrNotFound)
	}
	return t.Owner, nil
}

// TicketsByOwner returns copies of every ticket currently owned by owner, in
// acquisition order.
func (r *Registry) TicketsByOwner(owner common.Address) []domain.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byOwner[owner]
	out := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyTicket(r.tickets[id]))
	}
	return out
}

// TicketsByProject returns copies of every ticket ever minted against the
// project, in mint order. The per-project index is maintained incrementally
// at mint time so settlement cost scales with this project's ticket count,
// not the global ticket table.
func (r *Registry) TicketsByProject(projectID uint64) []domain.Ticket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byProject[projectID]
	out := make([]domain.Ticket, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyTicket(r.tickets[id]))
	}
	return out
}

// removeFromOwner drops ticketID from owner's index slice. Write lock held.
func (r *Registry) removeFromOwner(owner common.Address, ticketID uint64) {
	ids := r.byOwner[owner]
	for i, id := range ids {
		if id == ticketID {
			r.byOwner[owner] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func copyTicket(t *domain.Ticket) domain.Ticket {
	c := *t
	c.BetAmount = domain.CopyAmount(t.BetAmount)
	return c
}
