package collections

import (
	"context"
	"fmt"
	"sort"
	"strings"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

type Assignment struct {
	CaseID   int64 `json:"caseId"`
	AgencyID int64 `json:"agencyId"`
}

type AllocationResult struct {
	Assigned     int          `json:"assigned"`
	AgenciesUsed int          `json:"agenciesUsed"`
	Assignments  []Assignment `json:"assignments"`
}

// Allocator routes cases to agencies.
type Allocator struct {
	store  Store
	audit  *AuditLog
	logger logger.Logger
}

func NewAllocator(store Store, audit *AuditLog, log logger.Logger) *Allocator {
	return &Allocator{
		store:  store,
		audit:  audit,
		logger: log.WithFields(map[string]interface{}{"component": "allocator"}),
	}
}

// AutoAllocate deals High Risk New cases, by ascending id, round robin over the
// eligible agencies, by ascending id. Each assignment only applies while the
// case is still New, so a concurrent run cannot reassign it.
func (a *Allocator) AutoAllocate(ctx context.Context, actor models.Actor) (*AllocationResult, error) {
	if err := Authorize(actor, ActionAutoAllocate); err != nil {
		return nil, err
	}

	result := &AllocationResult{Assignments: []Assignment{}}
	err := a.store.InTx(ctx, func(ctx context.Context, repo Repository) error {
		agencies, err := repo.EligibleAgencies(ctx)
		if err != nil {
			return err
		}
		if len(agencies) == 0 {
			return apperr.NewNoEligibleAgencyError()
		}
		sort.Slice(agencies, func(i, j int) bool { return agencies[i].ID < agencies[j].ID })

		cases, err := repo.ListCases(ctx, CaseFilter{Status: models.StatusNew, Risk: models.RiskHigh})
		if err != nil {
			return err
		}

		used := map[int64]struct{}{}
		for i, cs := range cases {
			agency := agencies[i%len(agencies)]
			ok, err := repo.AssignIfNew(ctx, cs.ID, agency.ID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			used[agency.ID] = struct{}{}
			result.Assignments = append(result.Assignments, Assignment{CaseID: cs.ID, AgencyID: agency.ID})
		}

		result.Assigned = len(result.Assignments)
		result.AgenciesUsed = len(used)
		if result.Assigned == 0 {
			return nil
		}

		desc := fmt.Sprintf("Auto-allocated %d high-risk cases across %d agencies", result.Assigned, result.AgenciesUsed)
		_, err = a.audit.Record(ctx, repo, nil, actor.ID, models.ActionAutoAllocate, desc)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.CasesAllocated.WithLabelValues("auto").Add(float64(result.Assigned))
	a.logger.Info("auto allocation finished", map[string]interface{}{
		"assigned":     result.Assigned,
		"agenciesUsed": result.AgenciesUsed,
	})
	return result, nil
}

// ManualAssign assigns one case regardless of its status or the agency's eligibility.
func (a *Allocator) ManualAssign(ctx context.Context, actor models.Actor, caseID, agencyID int64) (*models.Case, error) {
	if err := Authorize(actor, ActionManualAssign); err != nil {
		return nil, err
	}

	var assigned *models.Case
	err := a.store.InTx(ctx, func(ctx context.Context, repo Repository) error {
		cs, err := repo.LockCase(ctx, caseID)
		if err != nil {
			return err
		}
		agency, err := repo.GetAgency(ctx, agencyID)
		if err != nil {
			return err
		}

		if err := repo.Assign(ctx, caseID, agencyID); err != nil {
			return err
		}

		desc := fmt.Sprintf("Case %d assigned to agency %s (%d)", caseID, agency.Name, agencyID)
		if _, err := a.audit.Record(ctx, repo, &caseID, actor.ID, models.ActionManualAssign, desc); err != nil {
			return err
		}

		cs.AssignedAgencyID = &agencyID
		cs.Status = models.StatusAssigned
		assigned = cs
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CasesAllocated.WithLabelValues("manual").Inc()
	a.logger.Info("case assigned manually", map[string]interface{}{
		"caseId":   caseID,
		"agencyId": agencyID,
	})
	return assigned, nil
}

// SetEligibility replaces the eligible set with exactly agencyIDs. An empty set
// disables every agency. Unknown ids abort the whole change.
func (a *Allocator) SetEligibility(ctx context.Context, actor models.Actor, agencyIDs []int64) ([]int64, error) {
	if err := Authorize(actor, ActionSetEligibility); err != nil {
		return nil, err
	}

	ids := uniqueSorted(agencyIDs)
	err := a.store.InTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.ResetEligibility(ctx); err != nil {
			return err
		}

		if len(ids) > 0 {
			found, err := repo.SetEligible(ctx, ids)
			if err != nil {
				return err
			}
			if missing, ok := firstMissing(ids, found); ok {
				return apperr.NewNotFoundError("agency", missing)
			}
		}

		desc := "High-risk eligibility cleared for all agencies"
		if len(ids) > 0 {
			desc = fmt.Sprintf("High-risk eligibility set to agencies [%s]", joinIDs(ids))
		}
		_, err := a.audit.Record(ctx, repo, nil, actor.ID, models.ActionEligibilityUpdate, desc)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("eligibility replaced", map[string]interface{}{"agencyIds": ids})
	return ids, nil
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func firstMissing(want, found []int64) (int64, bool) {
	have := make(map[int64]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := have[id]; !ok {
			return id, true
		}
	}
	return 0, false
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
