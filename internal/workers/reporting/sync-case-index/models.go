// internal/workers/reporting/sync-case-index/models.go
package synccaseindex

import "dca-workers/internal/models"

// Input optionally restricts the sync to one status.
type Input struct {
	Actor  models.Actor      `json:"actor"`
	Status models.CaseStatus `json:"status,omitempty"`
}

type Output struct {
	Indexed int    `json:"indexed"`
	Total   int    `json:"total"`
	Index   string `json:"index"`
}
