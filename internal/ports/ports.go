package ports

import (
	"context"
	"time"

	"OpportunityMonitor/internal/domain"
)

// EntrySource retrieves raw entries for every supported source.
// Sources whose type has no registered scanner are left out of the result.
type EntrySource interface {
	FetchAll(ctx context.Context, sources []domain.Source) []domain.SourceBatch
}

// SeenLedger records which fingerprints were already eligible for notification.
type SeenLedger interface {
	Contains(ctx context.Context, id string) (bool, error)
	MarkSeen(ctx context.Context, id string) error
}

// Notifier delivers a rendered digest (e-mail or other channels).
type Notifier interface {
	SendDigest(ctx context.Context, subject, htmlBody string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
