package collections

import (
	"context"
	"errors"
	"fmt"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/metrics"
	"dca-workers/internal/models"
)

// CanTransition reports whether an agency may move a case from one status to another.
// New is left only by assignment, Paid and Rejected are never left, and a
// status cannot be set to itself.
func CanTransition(from, to models.CaseStatus) bool {
	if !from.Active() || from == to {
		return false
	}
	return to.Active() || to.Terminal()
}

type StatusUpdate struct {
	CaseID  int64             `json:"caseId"`
	Status  models.CaseStatus `json:"status"`
	Applied bool              `json:"applied"`
}

// Lifecycle applies agency-driven status changes.
type Lifecycle struct {
	store  Store
	audit  *AuditLog
	logger logger.Logger
}

func NewLifecycle(store Store, audit *AuditLog, log logger.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		audit:  audit,
		logger: log.WithFields(map[string]interface{}{"component": "lifecycle"}),
	}
}

// UpdateStatus moves a case owned by the acting agency to status.
// A case that does not exist or is not assigned to the actor is left untouched
// and reported as not applied, without error. Setting the current status again
// is also a no-op. Paid and Rejected cases reject every update.
func (l *Lifecycle) UpdateStatus(ctx context.Context, actor models.Actor, caseID int64, status models.CaseStatus) (*StatusUpdate, error) {
	if err := Authorize(actor, ActionUpdateStatus); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if status == models.StatusNew {
		return nil, apperr.NewValidationError("status", "cases cannot be moved back to New")
	}

	update := &StatusUpdate{CaseID: caseID, Status: status}
	err := l.store.InTx(ctx, func(ctx context.Context, repo Repository) error {
		cs, err := repo.LockCase(ctx, caseID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if !cs.OwnedBy(actor.ID) || cs.Status == status {
			return nil
		}
		if !CanTransition(cs.Status, status) {
			return apperr.NewInvalidTransitionError(string(cs.Status), string(status))
		}

		if err := repo.UpdateStatus(ctx, caseID, status); err != nil {
			return err
		}

		desc := fmt.Sprintf("Case %d status changed from %s to %s", caseID, cs.Status, status)
		if _, err := l.audit.Record(ctx, repo, &caseID, actor.ID, models.ActionStatusUpdate, desc); err != nil {
			return err
		}
		update.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if update.Applied {
		metrics.StatusTransitions.WithLabelValues(string(status)).Inc()
	}
	l.logger.Info("status update processed", map[string]interface{}{
		"caseId":   caseID,
		"agencyId": actor.ID,
		"status":   status,
		"applied":  update.Applied,
	})
	return update, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
