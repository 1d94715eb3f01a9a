package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/betledger/internal/domain"
)

// multipartThreshold is the JSONL buffer size above which the archiver
// switches from a single PutObject to a multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// settlementExport is the JSONL line shape for an archived settlement:
// the summary plus its payouts, amounts as decimal strings.
type settlementExport struct {
	ProjectID         uint64         `json:"project_id"`
	WinningOption     int            `json:"winning_option"`
	PrizePool         string         `json:"prize_pool"`
	TotalWinningStake string         `json:"total_winning_stake"`
	LedgerBalance     string         `json:"ledger_balance"`
	SettledAt         time.Time      `json:"settled_at"`
	Payouts           []payoutExport `json:"payouts"`
}

type payoutExport struct {
	TicketID uint64    `json:"ticket_id"`
	Amount   string    `json:"amount"`
	Winner   string    `json:"winner"`
	PaidAt   time.Time `json:"paid_at"`
}

// Archiver exports settled projects to blob storage as JSONL, one line per
// settlement with its payouts inlined. Deletion of archived rows from the
// primary store is intentionally not performed here; that is a separate,
// explicit step to be executed after the archive has been verified.
type Archiver struct {
	writer      *Writer
	settlements domain.SettlementStore
	audit       domain.AuditStore
}

// NewArchiver creates an Archiver over the given writer and stores. The
// audit store may be nil; archive runs are then not journaled.
func NewArchiver(writer *Writer, settlements domain.SettlementStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer:      writer,
		settlements: settlements,
		audit:       audit,
	}
}

// ArchiveSettlements exports all settlements recorded strictly before the
// cutoff to archive/settlements/YYYY-MM.jsonl and returns the number of
// records written. A run that finds nothing to archive uploads nothing.
func (a *Archiver) ArchiveSettlements(ctx context.Context, before time.Time, limit int) (int64, error) {
	summaries, err := a.settlements.ListSettledBefore(ctx, before, limit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}
	if len(summaries) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, s := range summaries {
		_, payouts, err := a.settlements.GetByProject(ctx, s.ProjectID)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive settlements payouts for project %d: %w", s.ProjectID, err)
		}

		rec := settlementExport{
			ProjectID:         s.ProjectID,
			WinningOption:     s.WinningOption,
			PrizePool:         domain.AmountString(s.PrizePool),
			TotalWinningStake: domain.AmountString(s.TotalWinningStake),
			LedgerBalance:     domain.AmountString(s.LedgerBalance),
			SettledAt:         s.SettledAt.UTC(),
			Payouts:           make([]payoutExport, 0, len(payouts)),
		}
		for _, p := range payouts {
			rec.Payouts = append(rec.Payouts, payoutExport{
				TicketID: p.TicketID,
				Amount:   domain.AmountString(p.Amount),
				Winner:   p.Winner.Hex(),
				PaidAt:   p.PaidAt.UTC(),
			})
		}

		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("s3blob: archive settlements encode project %d: %w", s.ProjectID, err)
		}
	}

	path := archivePath(before)
	if buf.Len() > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf.Bytes()), 0)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements upload: %w", err)
	}

	count := int64(len(summaries))

	if a.audit != nil {
		evt := domain.Event{
			ID:   fmt.Sprintf("archive-%s-%d", before.Format("2006-01"), before.UnixNano()),
			Type: domain.EventSettlementsArchived,
			At:   time.Now().UTC(),
			Detail: map[string]any{
				"path":   path,
				"count":  count,
				"before": before.Format(time.RFC3339),
			},
		}
		if err := a.audit.Log(ctx, evt); err != nil {
			return count, fmt.Errorf("s3blob: archive settlements audit log: %w", err)
		}
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/settlements/2026-08.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/settlements/%s.jsonl", before.Format("2006-01"))
}
