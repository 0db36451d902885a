// Package collections implements the debt-collection case engine: import,
// risk classification, agency allocation, the case lifecycle and its audit trail.
package collections

import (
	"context"

	"dca-workers/internal/models"
)

// CaseFilter narrows ListCases. Zero values match everything. Results are
// always ordered by ascending case id.
type CaseFilter struct {
	Status   models.CaseStatus
	Risk     models.RiskLabel
	AgencyID int64
	Limit    int
}

// Reader is the read surface shared by transactional and plain access.
type Reader interface {
	ListCases(ctx context.Context, filter CaseFilter) ([]models.Case, error)
	// GetCase returns a NOT_FOUND error for unknown ids.
	GetCase(ctx context.Context, id int64) (*models.Case, error)
	// ListAgencies returns every agency ordered by id.
	ListAgencies(ctx context.Context) ([]models.Agency, error)
	// GetAgency returns a NOT_FOUND error for unknown ids.
	GetAgency(ctx context.Context, id int64) (*models.Agency, error)
	// RecentAudit returns the newest entries first, joined with actor names.
	RecentAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// Repository is the mutation surface, valid only inside Store.InTx.
type Repository interface {
	Reader

	// InsertCases inserts every row as a New, unscored case and returns the ids in row order.
	InsertCases(ctx context.Context, rows []models.NewCase) ([]int64, error)
	// SetRiskLabel labels a case only while it is still New.
	SetRiskLabel(ctx context.Context, caseID int64, label models.RiskLabel) (bool, error)

	// EligibleAgencies returns high-risk eligible agencies ordered by id.
	EligibleAgencies(ctx context.Context) ([]models.Agency, error)
	// AssignIfNew assigns a case only while it is still New.
	AssignIfNew(ctx context.Context, caseID, agencyID int64) (bool, error)
	// Assign sets the agency and the Assigned status unconditionally.
	Assign(ctx context.Context, caseID, agencyID int64) error

	// LockCase reads a case and holds it until the transaction ends.
	LockCase(ctx context.Context, caseID int64) (*models.Case, error)
	UpdateStatus(ctx context.Context, caseID int64, status models.CaseStatus) error

	ResetEligibility(ctx context.Context) error
	// SetEligible flags the given agencies and returns the ids that exist.
	SetEligible(ctx context.Context, agencyIDs []int64) ([]int64, error)
	InsertAgency(ctx context.Context, agency models.Agency) (int64, error)

	AppendAudit(ctx context.Context, entry models.AuditEntry) (int64, error)
}

// Store commits fn's mutations atomically, or none of them when fn returns an error.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
