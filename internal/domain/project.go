package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Project is a single prediction market: a set of named outcome options, a
// prize pool funded by the operator at creation, and running per-option bet
// totals. A project is created exactly once and mutated only by stake
// placement (bet totals) and the single finish transition.
type Project struct {
	ID          uint64
	Title       string
	Description string
	Options     []string

	// PrizePool is the amount of credit token pulled from the creator into
	// ledger custody at creation. Immutable once set.
	PrizePool *big.Int

	// BetTotals accumulates staked amounts per option index. Monotonically
	// increasing until the project finishes.
	BetTotals []*big.Int

	Creator   common.Address
	CreatedAt time.Time

	// EndTime is the nominal deadline (creation time + duration). It is
	// informational only; staking is gated solely by the lifecycle flags.
	EndTime time.Time

	IsActive   bool
	IsFinished bool

	// WinningOption is meaningful only once IsFinished is true.
	WinningOption int
}

// TotalStaked returns the sum of bet totals across every option.
func (p *Project) TotalStaked() *big.Int {
	sum := new(big.Int)
	for _, t := range p.BetTotals {
		if t != nil {
			sum.Add(sum, t)
		}
	}
	return sum
}

// ValidOption reports whether idx is a valid index into the option list.
func (p *Project) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(p.Options)
}
