package collections

import (
	"context"
	"fmt"
	"strings"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/common/validation"
	"dca-workers/internal/models"
)

type AgencyRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Agencies onboards new collection agencies.
type Agencies struct {
	store  Store
	audit  *AuditLog
	logger logger.Logger
}

func NewAgencies(store Store, audit *AuditLog, log logger.Logger) *Agencies {
	return &Agencies{
		store:  store,
		audit:  audit,
		logger: log.WithFields(map[string]interface{}{"component": "agencies"}),
	}
}

// Onboard creates an agency. New agencies are never eligible for high-risk allocation.
func (a *Agencies) Onboard(ctx context.Context, actor models.Actor, req AgencyRequest) (*models.Agency, error) {
	if err := Authorize(actor, ActionOnboardAgency); err != nil {
		return nil, err
	}

	agency := models.Agency{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		Phone: strings.TrimSpace(req.Phone),
	}
	if agency.Name == "" {
		return nil, apperr.NewValidationError("name", "agency name is required")
	}
	if agency.Email != "" && !validation.ValidateEmail(agency.Email) {
		return nil, apperr.NewValidationError("email", "malformed email address")
	}
	if agency.Phone != "" && !validation.ValidatePhone(agency.Phone) {
		return nil, apperr.NewValidationError("phone", "malformed phone number")
	}

	err := a.store.InTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.InsertAgency(ctx, agency)
		if err != nil {
			return err
		}
		agency.ID = id

		desc := fmt.Sprintf("Onboarded agency %s (%d)", agency.Name, id)
		_, err = a.audit.Record(ctx, repo, nil, actor.ID, models.ActionAgencyOnboard, desc)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("agency onboarded", map[string]interface{}{
		"agencyId": agency.ID,
		"name":     agency.Name,
	})
	return &agency, nil
}
