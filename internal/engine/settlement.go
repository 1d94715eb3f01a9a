package engine

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// FinishProject declares the winning option and distributes the prize pool
// parimutuel-style to the current owners of winning tickets. Operator-only
// and terminal: once a project is finished it can never be finished again,
// enforced by the IsFinished guard. Finishing and payout form a single
// atomic unit; if distribution cannot complete, the project stays unfinished
// so a corrected retry is possible.
func (e *Engine) FinishProject(caller common.Address, projectID uint64, winningOption int) error {
	e.mu.Lock()
	events, err := e.finishProjectLocked(caller, projectID, winningOption)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.emit(events)
	return nil
}

func (e *Engine) finishProjectLocked(caller common.Address, projectID uint64, winningOption int) ([]domain.Event, error) {
	if caller != e.operator {
		return nil, fmt.Errorf("engine: finish project by %s: %w", caller.Hex(), domain.ErrUnauthorized)
	}
	p, ok := e.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("engine: project %d: %w", projectID, domain.ErrNotFound)
	}
	if p.IsFinished {
		return nil, fmt.Errorf("engine: project %d already finished: %w", projectID, domain.ErrInvalidState)
	}
	if !p.ValidOption(winningOption) {
		return nil, fmt.Errorf("engine: winning option %d out of range for project %d: %w", winningOption, projectID, domain.ErrInvalidArgument)
	}

	totalWinningStake := domain.CopyAmount(p.BetTotals[winningOption])

	// Plan every payout before moving a single token, and verify custody can
	// cover the sum, so the transfer loop below cannot fail partway.
	payouts, payoutSum := e.planPayouts(p, winningOption, totalWinningStake)
	if e.token.BalanceOf(e.custody).Cmp(payoutSum) < 0 {
		return nil, fmt.Errorf("engine: custody balance below planned payouts for project %d: %w", projectID, domain.ErrInsufficientBalance)
	}

	now := e.now().UTC()
	events := make([]domain.Event, 0, len(payouts)+1)
	for i := range payouts {
		po := &payouts[i]
		if err := e.token.Transfer(e.custody, po.Winner, po.Amount); err != nil {
			return nil, fmt.Errorf("engine: pay ticket %d: %w", po.TicketID, err)
		}
		po.PaidAt = now

		ev := e.newEvent(domain.EventPayout, map[string]any{
			"project_id": po.ProjectID,
			"ticket_id":  po.TicketID,
			"amount":     domain.AmountString(po.Amount),
			"winner":     po.Winner.Hex(),
		})
		ev.Payout = po
		events = append(events, ev)
	}

	p.IsFinished = true
	p.IsActive = false
	p.WinningOption = winningOption

	summary := &domain.SettlementSummary{
		ProjectID:         projectID,
		WinningOption:     winningOption,
		PrizePool:         domain.CopyAmount(p.PrizePool),
		TotalWinningStake: totalWinningStake,
		LedgerBalance:     e.token.BalanceOf(e.custody),
		SettledAt:         now,
	}
	ev := e.newEvent(domain.EventProjectFinished, map[string]any{
		"project_id":          projectID,
		"winning_option":      winningOption,
		"prize_pool":          domain.AmountString(summary.PrizePool),
		"total_winning_stake": domain.AmountString(summary.TotalWinningStake),
		"ledger_balance":      domain.AmountString(summary.LedgerBalance),
		"payouts":             len(payouts),
	})
	ev.Summary = summary
	events = append(events, ev)

	e.logger.Info("project settled",
		slog.Uint64("project_id", projectID),
		slog.Int("winning_option", winningOption),
		slog.String("prize_pool", domain.AmountString(summary.PrizePool)),
		slog.String("total_winning_stake", domain.AmountString(summary.TotalWinningStake)),
		slog.Int("payouts", len(payouts)),
	)
	return events, nil
}

// planPayouts walks the project's tickets (pre-indexed at mint) and computes
// each winning ticket's share: betAmount * prizePool / totalWinningStake,
// rounded down. The truncation remainder stays in custody; with zero winning
// stake there are no payouts and the whole pool stays escrowed.
func (e *Engine) planPayouts(p *domain.Project, winningOption int, totalWinningStake *big.Int) ([]domain.PayoutRecord, *big.Int) {
	sum := new(big.Int)
	if totalWinningStake.Sign() == 0 {
		return nil, sum
	}

	var payouts []domain.PayoutRecord
	for _, t := range e.registry.TicketsByProject(p.ID) {
		if t.OptionID != winningOption {
			continue
		}
		amount := new(big.Int).Mul(t.BetAmount, p.PrizePool)
		amount.Div(amount, totalWinningStake)
		if amount.Sign() == 0 {
			continue
		}
		payouts = append(payouts, domain.PayoutRecord{
			ProjectID: p.ID,
			TicketID:  t.ID,
			Amount:    amount,
			Winner:    t.Owner,
		})
		sum.Add(sum, amount)
	}
	return payouts, sum
}
