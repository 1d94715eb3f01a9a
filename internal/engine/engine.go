// Package engine implements the ledger & settlement core: project lifecycle,
// stake accounting, the escrow-based order book, the native-currency account
// ledger, and parimutuel prize distribution.
//
// Every public write operation is a single serializable unit: the engine
// mutex is held from first precondition check to last state mutation, and
// events are collected under the lock but dispatched only after it is
// released, so no observer or side effect can re-enter a half-applied
// operation.
package engine

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/registry"
	"github.com/alanyoungcy/betledger/internal/token"
)

// Engine owns the project records, the order book, and the native-currency
// balances, and coordinates the token ledger and ticket registry.
type Engine struct {
	mu sync.Mutex

	// operator is the notary: the only identity allowed to create and
	// finish projects.
	operator common.Address

	// custody is the engine's own account. Prize pools and stakes are
	// escrowed here, ticket approvals for order-book escrow point here, and
	// the registry lists it as a global minter.
	custody common.Address

	token    *token.Ledger
	registry *registry.Registry

	projects      map[uint64]*domain.Project
	nextProjectID uint64

	orders      map[uint64]*domain.SellOrder
	nextOrderID uint64

	// activeOrderByTicket enforces the at-most-one-active-order invariant
	// and backs the ticket→order lookup (0 when unlisted).
	activeOrderByTicket map[uint64]uint64

	// native holds native-currency account balances for order-book
	// payments.
	native map[common.Address]*big.Int

	sink   domain.EventSink
	logger *slog.Logger
	now    func() time.Time
}

// New creates an engine over the given token ledger and ticket registry.
// The caller must separately enable custody as a global minter on the
// registry before tickets can be sold.
func New(operator, custody common.Address, tok *token.Ledger, reg *registry.Registry, sink domain.EventSink, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Engine{
		operator:            operator,
		custody:             custody,
		token:               tok,
		registry:            reg,
		projects:            make(map[uint64]*domain.Project),
		nextProjectID:       1,
		orders:              make(map[uint64]*domain.SellOrder),
		nextOrderID:         1,
		activeOrderByTicket: make(map[uint64]uint64),
		native:              make(map[common.Address]*big.Int),
		sink:                sink,
		logger:              logger.With(slog.String("component", "engine")),
		now:                 time.Now,
	}
}

// Operator returns the notary address.
func (e *Engine) Operator() common.Address {
	return e.operator
}

// Custody returns the engine's escrow account address. Buyers approve this
// address on the token ledger before staking, and ticket owners approve it
// on the registry before listing.
func (e *Engine) Custody() common.Address {
	return e.custody
}

// CustodyBalance returns the credit-token balance currently held in ledger
// custody (escrowed prize pools plus stakes, minus distributed payouts).
func (e *Engine) CustodyBalance() *big.Int {
	return e.token.BalanceOf(e.custody)
}

// newEvent stamps a ledger event with a fresh ID and the engine clock.
func (e *Engine) newEvent(t domain.EventType, detail map[string]any) domain.Event {
	return domain.Event{
		ID:     uuid.New().String(),
		Type:   t,
		At:     e.now().UTC(),
		Detail: detail,
	}
}

// emit dispatches committed events to the sink. Callers must have released
// the engine mutex first.
func (e *Engine) emit(events []domain.Event) {
	if len(events) > 0 {
		e.sink.Record(events...)
	}
}
