// internal/workers/agencies/notify-agency/models.go
package notifyagency

import "dca-workers/internal/models"

// Input names the agency and, optionally, the cases to announce. Without
// caseIds every case the agency currently holds in Assigned is announced.
type Input struct {
	Actor    models.Actor `json:"actor"`
	AgencyID int64        `json:"agencyId"`
	CaseIDs  []int64      `json:"caseIds,omitempty"`
}

type Output struct {
	Notifications []models.Notification `json:"notifications"`
	Sent          int                   `json:"sent"`
}
