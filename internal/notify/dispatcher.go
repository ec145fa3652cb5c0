package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"submission-backend/internal/queue"
	"submission-backend/internal/shared/metrics"
	"submission-backend/internal/shared/telemetry"
	"submission-backend/internal/users"
)

// Directory resolves recipients.
type Directory interface {
	GetByID(ctx context.Context, userID string) (users.User, error)
	ListByRole(ctx context.Context, role string) ([]users.User, error)
}

// Dispatcher turns notify jobs into one notification per recipient.
type Dispatcher struct {
	Directory Directory
	Notifier  Notifier
	Templates *Templates
}

// Handle sends msg to its role's members or its single user. Delivery is
// best-effort: a failed render or send is logged and counted, never returned.
// Errors are returned only when the job itself cannot be resolved.
func (d *Dispatcher) Handle(ctx context.Context, msg queue.Message) error {
	if d == nil || d.Notifier == nil || d.Templates == nil || d.Directory == nil {
		return errors.New("notification dispatcher not configured")
	}
	if !d.Templates.Has(msg.Template) {
		return fmt.Errorf("unknown template %q", msg.Template)
	}

	recipients, err := d.recipients(ctx, msg)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		telemetry.Warn("notify.no_recipients", map[string]any{
			"template":      msg.Template,
			"role":          msg.Role,
			"user_id":       msg.UserID,
			"submission_id": msg.SubmissionID,
		})
		return nil
	}

	sent := 0
	for _, u := range recipients {
		if strings.TrimSpace(u.Email) == "" {
			continue
		}
		subject, body, err := d.Templates.Render(msg.Template, Data{
			SubmissionID:  msg.SubmissionID,
			Comment:       msg.Comment,
			Count:         msg.Count,
			RecipientName: u.DisplayName(),
		})
		if err != nil {
			metrics.IncNotificationFailed()
			telemetry.Error("notify.render_failed", map[string]any{
				"template":      msg.Template,
				"user_id":       u.ID,
				"submission_id": msg.SubmissionID,
				"request_id":    msg.RequestID,
				"error":         err.Error(),
			})
			continue
		}
		n := Notification{
			To:           u.Email,
			Name:         u.DisplayName(),
			Subject:      subject,
			Body:         body,
			Template:     msg.Template,
			SubmissionID: msg.SubmissionID,
		}
		if err := d.Notifier.Send(ctx, n); err != nil {
			metrics.IncNotificationFailed()
			telemetry.Error("notify.send_failed", map[string]any{
				"template":      msg.Template,
				"user_id":       u.ID,
				"submission_id": msg.SubmissionID,
				"request_id":    msg.RequestID,
				"error":         err.Error(),
			})
			continue
		}
		sent++
		metrics.IncNotificationSent()
		if msg.Count > 0 {
			metrics.IncReminderSent()
		}
	}

	telemetry.Info("notify.dispatched", map[string]any{
		"template":      msg.Template,
		"role":          msg.Role,
		"recipients":    len(recipients),
		"sent":          sent,
		"submission_id": msg.SubmissionID,
		"request_id":    msg.RequestID,
	})
	return nil
}

func (d *Dispatcher) recipients(ctx context.Context, msg queue.Message) ([]users.User, error) {
	switch {
	case strings.TrimSpace(msg.UserID) != "":
		u, err := d.Directory.GetByID(ctx, msg.UserID)
		if errors.Is(err, users.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", msg.UserID, err)
		}
		return []users.User{u}, nil
	case strings.TrimSpace(msg.Role) != "":
		members, err := d.Directory.ListByRole(ctx, msg.Role)
		if err != nil {
			return nil, fmt.Errorf("list role %s: %w", msg.Role, err)
		}
		return members, nil
	default:
		return nil, errors.New("notify message has neither role nor user")
	}
}
