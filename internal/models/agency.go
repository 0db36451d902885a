// internal/models/agency.go
package models

// Agency is a collection agency. Agencies live in the users table with the agency role.
type Agency struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	HighRiskEligible bool   `json:"highRiskEligible"`
}

// AgencyCounters summarises an agency's caseload.
type AgencyCounters struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
}
