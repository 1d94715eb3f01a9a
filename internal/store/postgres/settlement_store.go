package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL.
// Amounts are stored as NUMERIC(78,0) and travel as decimal strings so
// wei-scale values round-trip exactly.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a new SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// RecordSettlement persists a settlement summary together with its payouts
// in a single transaction. Re-recording the same project is a no-op, so the
// recorder can safely retry.
func (s *SettlementStore) RecordSettlement(ctx context.Context, summary domain.SettlementSummary, payouts []domain.PayoutRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin settlement tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSummary = `
		INSERT INTO settlements (
			project_id, winning_option, prize_pool,
			total_winning_stake, ledger_balance, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id) DO NOTHING`
	_, err = tx.Exec(ctx, insertSummary,
		summary.ProjectID, summary.WinningOption,
		domain.AmountString(summary.PrizePool),
		domain.AmountString(summary.TotalWinningStake),
		domain.AmountString(summary.LedgerBalance),
		summary.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert settlement %d: %w", summary.ProjectID, err)
	}

	const insertPayout = `
		INSERT INTO payouts (project_id, ticket_id, amount, winner, paid_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id, ticket_id) DO NOTHING`
	for _, p := range payouts {
		_, err := tx.Exec(ctx, insertPayout,
			p.ProjectID, p.TicketID,
			domain.AmountString(p.Amount),
			p.Winner.Hex(), p.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert payout %d/%d: %w", p.ProjectID, p.TicketID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit settlement %d: %w", summary.ProjectID, err)
	}
	return nil
}

// GetByProject returns the settlement summary and payouts for a project.
func (s *SettlementStore) GetByProject(ctx context.Context, projectID uint64) (domain.SettlementSummary, []domain.PayoutRecord, error) {
	const summaryQuery = `
		SELECT project_id, winning_option, prize_pool::text,
		       total_winning_stake::text, ledger_balance::text, settled_at
		FROM settlements WHERE project_id = $1`

	var summary domain.SettlementSummary
	var pool, stake, balance string
	err := s.pool.QueryRow(ctx, summaryQuery, projectID).Scan(
		&summary.ProjectID, &summary.WinningOption,
		&pool, &stake, &balance, &summary.SettledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SettlementSummary{}, nil, fmt.Errorf("postgres: settlement for project %d: %w", projectID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.SettlementSummary{}, nil, fmt.Errorf("postgres: get settlement %d: %w", projectID, err)
	}
	if summary.PrizePool, err = parseAmount(pool); err != nil {
		return domain.SettlementSummary{}, nil, err
	}
	if summary.TotalWinningStake, err = parseAmount(stake); err != nil {
		return domain.SettlementSummary{}, nil, err
	}
	if summary.LedgerBalance, err = parseAmount(balance); err != nil {
		return domain.SettlementSummary{}, nil, err
	}

	const payoutQuery = `
		SELECT project_id, ticket_id, amount::text, winner, paid_at
		FROM payouts WHERE project_id = $1 ORDER BY ticket_id`
	rows, err := s.pool.Query(ctx, payoutQuery, projectID)
	if err != nil {
		return domain.SettlementSummary{}, nil, fmt.Errorf("postgres: list payouts %d: %w", projectID, err)
	}
	defer rows.Close()

	var payouts []domain.PayoutRecord
	for rows.Next() {
		var p domain.PayoutRecord
		var amount, winner string
		if err := rows.Scan(&p.ProjectID, &p.TicketID, &amount, &winner, &p.PaidAt); err != nil {
			return domain.SettlementSummary{}, nil, fmt.Errorf("postgres: scan payout: %w", err)
		}
		if p.Amount, err = parseAmount(amount); err != nil {
			return domain.SettlementSummary{}, nil, err
		}
		p.Winner = common.HexToAddress(winner)
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return domain.SettlementSummary{}, nil, fmt.Errorf("postgres: list payouts rows: %w", err)
	}
	return summary, payouts, nil
}

// ListSettledBefore returns settlement summaries settled before the cutoff,
// oldest first, for the archive exporter.
func (s *SettlementStore) ListSettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SettlementSummary, error) {
	const query = `
		SELECT project_id, winning_option, prize_pool::text,
		       total_winning_stake::text, ledger_balance::text, settled_at
		FROM settlements
		WHERE settled_at < $1
		ORDER BY settled_at
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements before %s: %w", cutoff, err)
	}
	defer rows.Close()

	var out []domain.SettlementSummary
	for rows.Next() {
		var summary domain.SettlementSummary
		var pool, stake, balance string
		if err := rows.Scan(&summary.ProjectID, &summary.WinningOption, &pool, &stake, &balance, &summary.SettledAt); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		if summary.PrizePool, err = parseAmount(pool); err != nil {
			return nil, err
		}
		if summary.TotalWinningStake, err = parseAmount(stake); err != nil {
			return nil, err
		}
		if summary.LedgerBalance, err = parseAmount(balance); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list settlements rows: %w", err)
	}
	return out, nil
}

// parseAmount converts a NUMERIC::text column back into a big.Int.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("postgres: parse amount %q: %w", s, domain.ErrInvalidArgument)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.SettlementStore = (*SettlementStore)(nil)
