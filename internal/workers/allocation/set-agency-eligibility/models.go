// internal/workers/allocation/set-agency-eligibility/models.go
package setagencyeligibility

import "dca-workers/internal/models"

type Input struct {
	Actor     models.Actor `json:"actor"`
	AgencyIDs []int64      `json:"agencyIds"`
}

type Output struct {
	EligibleAgencyIDs []int64 `json:"eligibleAgencyIds"`
}
