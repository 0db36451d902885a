// internal/workers/cases/classify-cases/models.go
package classifycases

import "dca-workers/internal/models"

type Input struct {
	Actor models.Actor `json:"actor"`
}

type Output struct {
	Updated        int            `json:"updated"`
	Skipped        int            `json:"skipped"`
	ModelAvailable bool           `json:"modelAvailable"`
	Labels         map[string]int `json:"labels"`
}
