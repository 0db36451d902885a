package aws

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperr "dca-workers/internal/common/errors"
	"dca-workers/internal/common/logger"
	"dca-workers/internal/models"
)

// Notifier tells an agency which cases were assigned to it, by email and SMS.
// A nil sender disables its channel.
type Notifier struct {
	email  *EmailSender
	sms    *SMSSender
	logger logger.Logger
	now    func() time.Time
}

func NewNotifier(email *EmailSender, sms *SMSSender, log logger.Logger) *Notifier {
	return &Notifier{
		email:  email,
		sms:    sms,
		logger: log.WithFields(map[string]interface{}{"component": "agency-notifier"}),
		now:    time.Now,
	}
}

// NotifyAssignment attempts every channel and returns one record per channel.
// It fails only when a channel was attempted and none succeeded.
func (n *Notifier) NotifyAssignment(ctx context.Context, agency models.Agency, caseIDs []int64) ([]models.Notification, error) {
	subject := fmt.Sprintf("%d new case(s) assigned to %s", len(caseIDs), agency.Name)
	body := assignmentBody(agency, caseIDs)

	emailNote := n.record(agency, caseIDs, models.ChannelEmail, subject, body)
	switch {
	case n.email == nil || agency.Email == "":
		emailNote.Status = models.NotificationDisabled
	default:
		id, err := n.email.Send(ctx, agency.Email, subject, body)
		n.settle(&emailNote, id, err)
	}

	smsNote := n.record(agency, caseIDs, models.ChannelSMS, "", subject)
	switch {
	case n.sms == nil || agency.Phone == "":
		smsNote.Status = models.NotificationDisabled
	default:
		id, err := n.sms.Send(ctx, agency.Phone, subject)
		n.settle(&smsNote, id, err)
	}

	notes := []models.Notification{emailNote, smsNote}
	attempted, sent := 0, 0
	var firstFailure *models.Notification
	for i := range notes {
		switch notes[i].Status {
		case models.NotificationSent:
			attempted++
			sent++
		case models.NotificationFailed:
			attempted++
			if firstFailure == nil {
				firstFailure = &notes[i]
			}
		}
	}
	if attempted > 0 && sent == 0 {
		return notes, apperr.NewNotificationSendFailedError(firstFailure.Channel, fmt.Errorf("%s", firstFailure.Error))
	}
	return notes, nil
}

func (n *Notifier) record(agency models.Agency, caseIDs []int64, channel, subject, body string) models.Notification {
	return models.Notification{
		ID:       uuid.New().String(),
		AgencyID: agency.ID,
		CaseIDs:  caseIDs,
		Channel:  channel,
		Subject:  subject,
		Body:     body,
	}
}

func (n *Notifier) settle(note *models.Notification, messageID string, err error) {
	if err != nil {
		note.Status = models.NotificationFailed
		note.Error = err.Error()
		n.logger.Error("notification send failed", map[string]interface{}{
			"agencyId": note.AgencyID,
			"channel":  note.Channel,
			"error":    err.Error(),
		})
		return
	}
	note.Status = models.NotificationSent
	note.MessageID = messageID
	note.SentAt = n.now().UTC().Format(time.RFC3339)
	n.logger.Info("notification sent", map[string]interface{}{
		"agencyId":  note.AgencyID,
		"channel":   note.Channel,
		"messageId": messageID,
	})
}

func assignmentBody(agency models.Agency, caseIDs []int64) string {
	ids := make([]string, len(caseIDs))
	for i, id := range caseIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("Hello %s,\n\nThe following cases are now assigned to you: %s.\nPlease review them on your dashboard.",
		agency.Name, strings.Join(ids, ", "))
}
