// internal/workers/agencies/onboard-agency/models.go
package onboardagency

import "dca-workers/internal/models"

type Input struct {
	Actor models.Actor `json:"actor"`
	Name  string       `json:"name"`
	Email string       `json:"email,omitempty"`
	Phone string       `json:"phone,omitempty"`
}

type Output struct {
	Agency models.Agency `json:"agency"`
}
