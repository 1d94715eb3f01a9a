// Package audit fans committed ledger events out to the observers: the
// structured log, the Postgres event journal, the Redis signal bus (which
// feeds WebSocket clients), the settlement store, and operator notifications.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/betledger/internal/domain"
	"github.com/alanyoungcy/betledger/internal/notify"
)

// queueSize is the buffer between the engine's emit path and the recorder
// worker. Enqueue never blocks an engine operation; overflow drops events
// from observation, never from the ledger itself.
const queueSize = 1024

// Recorder implements domain.EventSink. Events are queued by Record and
// processed by a single worker goroutine started with Run.
type Recorder struct {
	ch          chan domain.Event
	audit       domain.AuditStore
	settlements domain.SettlementStore
	bus         domain.SignalBus
	notifier    *notify.Notifier
	logger      *slog.Logger

	// pendingPayouts collects payout records per project until the matching
	// project_finished event arrives, so a settlement is persisted as one
	// batch. Only touched by the worker goroutine.
	pendingPayouts map[uint64][]domain.PayoutRecord
}

// NewRecorder creates a Recorder. Any of audit, settlements, bus, and
// notifier may be nil; the corresponding fan-out step is skipped.
func NewRecorder(audit domain.AuditStore, settlements domain.SettlementStore, bus domain.SignalBus, notifier *notify.Notifier, logger *slog.Logger) *Recorder {
	return &Recorder{
		ch:             make(chan domain.Event, queueSize),
		audit:          audit,
		settlements:    settlements,
		bus:            bus,
		notifier:       notifier,
		logger:         logger.With(slog.String("component", "audit")),
		pendingPayouts: make(map[uint64][]domain.PayoutRecord),
	}
}

// Record implements domain.EventSink. It never blocks; if the queue is full
// the event is dropped from observation with a warning.
func (r *Recorder) Record(events ...domain.Event) {
	for _, e := range events {
		select {
		case r.ch <- e:
		default:
			r.logger.Warn("audit: queue full, dropping event",
				slog.String("event_id", e.ID),
				slog.String("type", string(e.Type)),
			)
		}
	}
}

// Run processes queued events until the context is cancelled. It should be
// called in a goroutine.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-r.ch:
			r.handle(ctx, e)
		}
	}
}

// handle applies every fan-out step to a single event. Steps are
// independent; one failing does not stop the others.
func (r *Recorder) handle(ctx context.Context, e domain.Event) {
	r.logger.Info("ledger event",
		slog.String("event_id", e.ID),
		slog.String("type", string(e.Type)),
		slog.Any("detail", e.Detail),
	)

	if r.audit != nil {
		if err := r.audit.Log(ctx, e); err != nil {
			r.logger.Error("audit: journal write failed",
				slog.String("event_id", e.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	r.publish(ctx, e)

	if e.Payout != nil {
		p := *e.Payout
		r.pendingPayouts[p.ProjectID] = append(r.pendingPayouts[p.ProjectID], p)
	}

	if e.Summary != nil {
		r.recordSettlement(ctx, *e.Summary)
	}
}

// publish pushes the event JSON onto the firehose channel and its
// per-concern channel.
func (r *Recorder) publish(ctx context.Context, e domain.Event) {
	if r.bus == nil {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		r.logger.Error("audit: marshal event failed",
			slog.String("event_id", e.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	channels := []string{domain.ChannelLedger}
	if ch := e.Type.Channel(); ch != domain.ChannelLedger {
		channels = append(channels, ch)
	}
	for _, ch := range channels {
		if err := r.bus.Publish(ctx, ch, data); err != nil {
			r.logger.Error("audit: publish failed",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
		}
	}
}

// recordSettlement persists the settlement batch (summary plus the payouts
// collected for the project) and alerts operators.
func (r *Recorder) recordSettlement(ctx context.Context, summary domain.SettlementSummary) {
	payouts := r.pendingPayouts[summary.ProjectID]
	delete(r.pendingPayouts, summary.ProjectID)

	if r.settlements != nil {
		if err := r.settlements.RecordSettlement(ctx, summary, payouts); err != nil {
			r.logger.Error("audit: record settlement failed",
				slog.Uint64("project_id", summary.ProjectID),
				slog.String("error", err.Error()),
			)
		}
	}

	if r.notifier != nil {
		title := fmt.Sprintf("Project %d settled", summary.ProjectID)
		msg := fmt.Sprintf("winning option %d, prize pool %s, %d payout(s), total winning stake %s",
			summary.WinningOption,
			domain.AmountString(summary.PrizePool),
			len(payouts),
			domain.AmountString(summary.TotalWinningStake),
		)
		if err := r.notifier.Notify(ctx, string(domain.EventProjectFinished), title, msg); err != nil {
			r.logger.Error("audit: settlement notification failed",
				slog.Uint64("project_id", summary.ProjectID),
				slog.String("error", err.Error()),
			)
		}
	}
}

var _ domain.EventSink = (*Recorder)(nil)
