// internal/workers/allocation/manual-assign-case/models.go
package manualassigncase

import "dca-workers/internal/models"

type Input struct {
	Actor    models.Actor `json:"actor"`
	CaseID   int64        `json:"caseId"`
	AgencyID int64        `json:"agencyId"`
}

type Output struct {
	Case models.Case `json:"case"`
	// AgencyID and CaseIDs match the notify-agency input.
	AgencyID int64   `json:"agencyId"`
	CaseIDs  []int64 `json:"caseIds"`
}
