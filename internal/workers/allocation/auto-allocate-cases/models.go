// internal/workers/allocation/auto-allocate-cases/models.go
package autoallocatecases

import "dca-workers/internal/models"

type Input struct {
	Actor models.Actor `json:"actor"`
}

// AgencyBatch groups the cases one agency received, for a per-agency
// notification multi-instance.
type AgencyBatch struct {
	AgencyID int64   `json:"agencyId"`
	CaseIDs  []int64 `json:"caseIds"`
}

type Output struct {
	Assigned     int           `json:"assigned"`
	AgenciesUsed int           `json:"agenciesUsed"`
	Batches      []AgencyBatch `json:"agencyBatches"`
}
