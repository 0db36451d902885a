// internal/models/actor.go
package models

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAgency Role = "agency"
)

// Actor identifies who is performing an operation. For agencies ID is the agency id.
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsAgency() bool { return a.Role == RoleAgency }
