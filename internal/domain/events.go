package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies the kind of ledger event.
type EventType string

const (
	EventTokensClaimed     EventType = "tokens_claimed"
	EventTokensMinted      EventType = "tokens_minted"
	EventProjectCreated    EventType = "project_created"
	EventTicketMinted      EventType = "ticket_minted"
	EventTicketTransferred EventType = "ticket_transferred"
	EventProjectFinished   EventType = "project_finished"
	EventPayout            EventType = "payout"
	EventOrderCreated      EventType = "order_created"
	EventOrderCancelled    EventType = "order_cancelled"
	EventOrderFilled       EventType = "order_filled"

	// EventSettlementsArchived marks a completed export of settlement
	// records to blob storage.
	EventSettlementsArchived EventType = "settlements_archived"
)

// Pub/sub channel names used to fan ledger events out over the signal bus.
// ChannelLedger carries every event; the per-concern channels duplicate the
// subset named by the channel.
const (
	ChannelLedger     = "ch:ledger"
	ChannelToken      = "ch:token"
	ChannelProject    = "ch:project"
	ChannelTicket     = "ch:ticket"
	ChannelOrder      = "ch:order"
	ChannelSettlement = "ch:settlement"
)

// Channel returns the per-concern pub/sub channel for an event type.
func (t EventType) Channel() string {
	switch t {
	case EventTokensClaimed, EventTokensMinted:
		return ChannelToken
	case EventProjectCreated:
		return ChannelProject
	case EventTicketMinted, EventTicketTransferred:
		return ChannelTicket
	case EventOrderCreated, EventOrderCancelled, EventOrderFilled:
		return ChannelOrder
	case EventProjectFinished, EventPayout:
		return ChannelSettlement
	default:
		return ChannelLedger
	}
}

// Event is a single entry on the ledger's audit trail. Events are emitted
// after the originating operation has committed and are delivered to
// observers (logs, pub/sub, WebSocket clients, the audit journal) on a
// best-effort basis; no internal component relies on them for correctness.
type Event struct {
	ID     string         `json:"id"`
	Type   EventType      `json:"type"`
	At     time.Time      `json:"at"`
	Detail map[string]any `json:"detail"`

	// Summary and Payout carry the typed settlement records for events of
	// type project_finished and payout, so the recorder can persist them
	// without re-parsing the detail map. Nil for all other event types.
	Summary *SettlementSummary `json:"-"`
	Payout  *PayoutRecord      `json:"-"`
}

// SettlementSummary is the per-project settlement audit record: one per
// finished project, capturing the pool, the total winning stake, and the
// custody token balance after distribution.
type SettlementSummary struct {
	ProjectID         uint64
	WinningOption     int
	PrizePool         *big.Int
	TotalWinningStake *big.Int
	LedgerBalance     *big.Int
	SettledAt         time.Time
}

// PayoutRecord is the per-ticket payout audit record emitted during
// settlement, identifying the winning ticket and the owner paid.
type PayoutRecord struct {
	ProjectID uint64
	TicketID  uint64
	Amount    *big.Int
	Winner    common.Address
	PaidAt    time.Time
}

// EventSink receives committed ledger events. Implementations must not call
// back into the engine; delivery happens strictly after the originating
// operation has released its lock.
type EventSink interface {
	Record(events ...Event)
}

// NopSink discards all events. Used in tests and as the default before the
// recorder is wired.
type NopSink struct{}

// Record implements EventSink.
func (NopSink) Record(...Event) {}
