package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Ticket is a non-fungible record binding a stake to an owner. Everything
// except Owner is fixed at mint; payout rights travel with ownership, so
// whoever holds a winning ticket at settlement time receives the payout.
type Ticket struct {
	ID        uint64
	ProjectID uint64

	// OptionID is the index of the chosen option in the project's option
	// list, validated against the project at mint time.
	OptionID int

	// BetAmount is the credit-token stake recorded at mint.
	BetAmount *big.Int

	Owner         common.Address
	OriginalBuyer common.Address
	PurchasedAt   time.Time
}
