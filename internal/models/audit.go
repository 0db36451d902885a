// internal/models/audit.go
package models

import "time"

type ActionType string

const (
	ActionBulkUpload        ActionType = "BULK_UPLOAD"
	ActionRiskScoring       ActionType = "RISK_SCORING"
	ActionAutoAllocate      ActionType = "AUTO_ALLOCATE"
	ActionManualAssign      ActionType = "MANUAL_ASSIGN"
	ActionStatusUpdate      ActionType = "STATUS_UPDATE"
	ActionEligibilityUpdate ActionType = "ELIGIBILITY_UPDATE"
	ActionAgencyOnboard     ActionType = "AGENCY_ONBOARD"
)

// AuditEntry is one append-only record of a mutating action.
type AuditEntry struct {
	ID          int64      `json:"id"`
	CaseID      *int64     `json:"caseId,omitempty"`
	ActorID     int64      `json:"actorId"`
	ActorName   string     `json:"actorName,omitempty"`
	ActionType  ActionType `json:"actionType"`
	Description string     `json:"description"`
	Timestamp   time.Time  `json:"timestamp"`
}
