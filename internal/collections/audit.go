package collections

import (
	"context"
	"sync"
	"time"

	"dca-workers/internal/models"
)

// AuditLog stamps and appends audit entries. Entries are written through the
// caller's Repository so they commit or roll back with the mutation they describe.
type AuditLog struct {
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

type AuditOption func(*AuditLog)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) AuditOption {
	return func(a *AuditLog) {
		a.now = now
	}
}

func NewAuditLog(opts ...AuditOption) *AuditLog {
	a := &AuditLog{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// stamp never returns a time before the previous stamp, even if the wall clock steps back.
func (a *AuditLog) stamp() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := a.now().UTC()
	if t.Before(a.last) {
		t = a.last
	}
	a.last = t
	return t
}

// Record appends one entry. caseID may be nil for batch actions.
func (a *AuditLog) Record(ctx context.Context, repo Repository, caseID *int64, actorID int64, action models.ActionType, description string) (*models.AuditEntry, error) {
	entry := models.AuditEntry{
		CaseID:      caseID,
		ActorID:     actorID,
		ActionType:  action,
		Description: description,
		Timestamp:   a.stamp(),
	}

	id, err := repo.AppendAudit(ctx, entry)
	if err != nil {
		return nil, err
	}
	entry.ID = id
	return &entry, nil
}

// Recent returns the newest limit entries, newest first.
func (a *AuditLog) Recent(ctx context.Context, r Reader, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentAuditLimit
	}
	return r.RecentAudit(ctx, limit)
}

const DefaultRecentAuditLimit = 10
