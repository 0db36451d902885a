// internal/models/notification.go
package models

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	NotificationSent     = "sent"
	NotificationFailed   = "failed"
	NotificationDisabled = "disabled"
)

// Notification records a notice sent to an agency about newly assigned cases.
type Notification struct {
	ID        string  `json:"id"`
	AgencyID  int64   `json:"agencyId"`
	CaseIDs   []int64 `json:"caseIds"`
	Channel   string  `json:"channel"`
	Status    string  `json:"status"`
	MessageID string  `json:"messageId,omitempty"`
	Subject   string  `json:"subject,omitempty"`
	Body      string  `json:"body"`
	Error     string  `json:"error,omitempty"`
	SentAt    string  `json:"sentAt"`
}
