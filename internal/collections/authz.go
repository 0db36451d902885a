package collections

import (
	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/models"
)

type Action string

const (
	ActionImportCases     Action = "import_cases"
	ActionClassifyCases   Action = "classify_cases"
	ActionAutoAllocate    Action = "auto_allocate"
	ActionManualAssign    Action = "manual_assign"
	ActionSetEligibility  Action = "set_eligibility"
	ActionOnboardAgency   Action = "onboard_agency"
	ActionAdminDashboard  Action = "admin_dashboard"
	ActionIndexCases      Action = "index_cases"
	ActionNotifyAgency    Action = "notify_agency"
	ActionUpdateStatus    Action = "update_status"
	ActionAgencyDashboard Action = "agency_dashboard"
	ActionSearchCases     Action = "search_cases"
)

var permissions = map[Action][]models.Role{
	ActionImportCases:     {models.RoleAdmin},
	ActionClassifyCases:   {models.RoleAdmin},
	ActionAutoAllocate:    {models.RoleAdmin},
	ActionManualAssign:    {models.RoleAdmin},
	ActionSetEligibility:  {models.RoleAdmin},
	ActionOnboardAgency:   {models.RoleAdmin},
	ActionAdminDashboard:  {models.RoleAdmin},
	ActionIndexCases:      {models.RoleAdmin},
	ActionNotifyAgency:    {models.RoleAdmin},
	ActionUpdateStatus:    {models.RoleAgency},
	ActionAgencyDashboard: {models.RoleAgency},
	ActionSearchCases:     {models.RoleAdmin, models.RoleAgency},
}

// Authorize reports whether actor may perform action. It depends only on its arguments.
func Authorize(actor models.Actor, action Action) error {
	for _, role := range permissions[action] {
		if actor.Role == role && actor.ID > 0 {
			return nil
		}
	}
	return apperr.NewUnauthorizedError(string(actor.Role), actor.ID, string(action))
}
