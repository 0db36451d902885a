// internal/workers/reporting/build-dashboard/models.go
package builddashboard

import (
	"dca-workers/internal/collections"
	"dca-workers/internal/models"
)

const (
	ViewAdmin  = "admin"
	ViewAgency = "agency"
)

type Input struct {
	Actor models.Actor `json:"actor"`
}

// Output carries exactly one of Admin or Agency, named by View.
type Output struct {
	View   string                       `json:"view"`
	Admin  *collections.AdminDashboard  `json:"admin,omitempty"`
	Agency *collections.AgencyDashboard `json:"agency,omitempty"`
}
