// internal/workers/cases/update-case-status/models.go
package updatecasestatus

import "dca-workers/internal/models"

type Input struct {
	Actor  models.Actor `json:"actor"`
	CaseID int64        `json:"caseId"`
	Status string       `json:"status"`
}

type Output struct {
	CaseID  int64  `json:"caseId"`
	Status  string `json:"status"`
	Applied bool   `json:"applied"`
}
