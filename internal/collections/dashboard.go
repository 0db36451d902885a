package collections

import (
	"context"

	"dca-workers/internal/common/logger"
	"dca-workers/internal/models"
)

type AdminDashboard struct {
	Cases       []models.Case       `json:"cases"`
	Agencies    []models.Agency     `json:"agencies"`
	RecentAudit []models.AuditEntry `json:"recentAudit"`
}

type AgencyDashboard struct {
	AgencyID int64                 `json:"agencyId"`
	Cases    []models.Case         `json:"cases"`
	Counters models.AgencyCounters `json:"counters"`
}

// Dashboards assembles the read-only views. It never opens a write transaction.
type Dashboards struct {
	store       Store
	audit       *AuditLog
	recentLimit int
	logger      logger.Logger
}

func NewDashboards(store Store, audit *AuditLog, recentLimit int, log logger.Logger) *Dashboards {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentAuditLimit
	}
	return &Dashboards{
		store:       store,
		audit:       audit,
		recentLimit: recentLimit,
		logger:      log.WithFields(map[string]interface{}{"component": "dashboards"}),
	}
}

func (d *Dashboards) Admin(ctx context.Context, actor models.Actor) (*AdminDashboard, error) {
	if err := Authorize(actor, ActionAdminDashboard); err != nil {
		return nil, err
	}

	cases, err := d.store.ListCases(ctx, CaseFilter{})
	if err != nil {
		return nil, err
	}
	agencies, err := d.store.ListAgencies(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := d.audit.Recent(ctx, d.store, d.recentLimit)
	if err != nil {
		return nil, err
	}

	return &AdminDashboard{Cases: cases, Agencies: agencies, RecentAudit: recent}, nil
}

func (d *Dashboards) Agency(ctx context.Context, actor models.Actor) (*AgencyDashboard, error) {
	if err := Authorize(actor, ActionAgencyDashboard); err != nil {
		return nil, err
	}

	cases, err := d.store.ListCases(ctx, CaseFilter{AgencyID: actor.ID})
	if err != nil {
		return nil, err
	}

	return &AgencyDashboard{
		AgencyID: actor.ID,
		Cases:    cases,
		Counters: CountCases(cases),
	}, nil
}

// CountCases buckets cases into pending (active), completed (Paid) and rejected.
func CountCases(cases []models.Case) models.AgencyCounters {
	var c models.AgencyCounters
	for _, cs := range cases {
		switch {
		case cs.Status == models.StatusPaid:
			c.Completed++
		case cs.Status == models.StatusRejected:
			c.Rejected++
		case cs.Status.Active():
			c.Pending++
		}
	}
	return c
}
