// internal/workers/reporting/search-cases/models.go
package searchcases

import (
	"dca-workers/internal/common/search"
	"dca-workers/internal/models"
)

type Input struct {
	Actor    models.Actor `json:"actor"`
	Query    string       `json:"query,omitempty"`
	Status   string       `json:"status,omitempty"`
	Risk     string       `json:"risk,omitempty"`
	AgencyID int64        `json:"agencyId,omitempty"`
	From     int          `json:"from,omitempty"`
	Size     int          `json:"size,omitempty"`
}

type Output struct {
	Total int64            `json:"total"`
	Cases []search.CaseDoc `json:"cases"`
	Took  int              `json:"took"`
}
