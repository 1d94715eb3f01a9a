package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditStore persists the append-only ledger event journal.
type AuditStore interface {
	Log(ctx context.Context, event Event) error
	List(ctx context.Context, opts ListOpts) ([]Event, error)
}

// SettlementStore persists settlement summaries and their payouts.
type SettlementStore interface {
	RecordSettlement(ctx context.Context, summary SettlementSummary, payouts []PayoutRecord) error
	GetByProject(ctx context.Context, projectID uint64) (SettlementSummary, []PayoutRecord, error)
	// ListSettledBefore returns summaries settled before the cutoff, used by
	// the archive exporter.
	ListSettledBefore(ctx context.Context, cutoff time.Time, limit int) ([]SettlementSummary, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. The engine acquires the ledger
// writer lock at startup so only one instance mutates the ledger at a time.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of ledger events to external observers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter uploads an object to blob storage under the given key.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
