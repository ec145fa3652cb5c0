package notify

import (
	"context"

	"submission-backend/internal/shared/telemetry"
)

// Notification is one rendered message for one recipient.
type Notification struct {
	To           string
	Name         string
	Subject      string
	Body         string
	Template     string
	SubmissionID string
}

// Notifier delivers a notification. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log instead of
// delivering them. It is the default transport.
type LogNotifier struct {
	From string
}

func (l LogNotifier) Send(_ context.Context, n Notification) error {
	telemetry.Info("notify.sent", map[string]any{
		"from":          l.From,
		"to":            n.To,
		"subject":       n.Subject,
		"body":          n.Body,
		"template":      n.Template,
		"submission_id": n.SubmissionID,
	})
	return nil
}
