// internal/workers/cases/import-cases/models.go
package importcases

import "dca-workers/internal/models"

// Input carries either the raw CSV upload or already decoded rows.
type Input struct {
	Actor    models.Actor             `json:"actor"`
	FileName string                   `json:"fileName,omitempty"`
	CSV      string                   `json:"csv,omitempty"`
	Rows     []map[string]interface{} `json:"rows,omitempty"`
}

type Output struct {
	BatchID       string  `json:"batchId"`
	Source        string  `json:"source"`
	Committed     int     `json:"committed"`
	CaseIDs       []int64 `json:"caseIds"`
	Failed        bool    `json:"importFailed"`
	FailedRow     int     `json:"failedRow,omitempty"`
	FailedColumn  string  `json:"failedColumn,omitempty"`
	FailureReason string  `json:"failureReason,omitempty"`
}
