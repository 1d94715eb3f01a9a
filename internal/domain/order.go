package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SellOrder is a secondary-market listing for a ticket, priced in native
// currency. At most one active order may exist per ticket; an order goes
// inactive exactly once (cancel or fill) and never reactivates. Orders are
// kept after deactivation for audit.
type SellOrder struct {
	ID       uint64
	TicketID uint64

	// Price is the exact native-currency payment required to fill the
	// order; no change-making.
	Price *big.Int

	Seller    common.Address
	IsActive  bool
	CreatedAt time.Time
}
