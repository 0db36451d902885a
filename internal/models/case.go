// internal/models/case.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CaseStatus string

const (
	StatusNew        CaseStatus = "New"
	StatusAssigned   CaseStatus = "Assigned"
	StatusInProgress CaseStatus = "In Progress"
	StatusContacted  CaseStatus = "Contacted"
	StatusPaid       CaseStatus = "Paid"
	StatusRejected   CaseStatus = "Rejected"
)

// Valid reports whether s is one of the known lifecycle states.
func (s CaseStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusContacted, StatusPaid, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no agency transition may leave s.
func (s CaseStatus) Terminal() bool {
	return s == StatusPaid || s == StatusRejected
}

// Active reports whether s is owned and being worked by an agency.
func (s CaseStatus) Active() bool {
	return s == StatusAssigned || s == StatusInProgress || s == StatusContacted
}

type RiskLabel string

const (
	RiskLow      RiskLabel = "Low Risk"
	RiskModerate RiskLabel = "Moderate Risk"
	RiskHigh     RiskLabel = "High Risk"
)

// Case is one overdue-debt collection case.
type Case struct {
	ID               int64           `json:"id"`
	CustomerName     string          `json:"customerName"`
	AmountDue        decimal.Decimal `json:"amountDue"`
	DaysOverdue      int             `json:"daysOverdue"`
	Status           CaseStatus      `json:"status"`
	RiskLabel        *RiskLabel      `json:"riskLabel,omitempty"`
	AssignedAgencyID *int64          `json:"assignedAgencyId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// Scored reports whether the case carries a risk label.
func (c *Case) Scored() bool {
	return c.RiskLabel != nil
}

// OwnedBy reports whether the case is currently assigned to agencyID.
func (c *Case) OwnedBy(agencyID int64) bool {
	return c.AssignedAgencyID != nil && *c.AssignedAgencyID == agencyID
}

// NewCase is a validated import row awaiting insertion.
type NewCase struct {
	CustomerName string
	AmountDue    decimal.Decimal
	DaysOverdue  int
}
