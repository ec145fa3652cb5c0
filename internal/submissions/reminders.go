package submissions

import (
	"context"
	"fmt"
	"time"

	"submission-backend/internal/queue"
	"submission-backend/internal/shared/telemetry"
)

// DefaultStaleAfter is how long a submission may wait at a gate before the
// sweep reminds the gate's role.
const DefaultStaleAfter = 24 * time.Hour

// ReminderSummary reports what one sweep found.
type ReminderSummary struct {
	PendingManager int `json:"pendingManager"`
	PendingSenior  int `json:"pendingSenior"`
}

type reminderGate struct {
	status   Status
	role     Role
	template string
}

var reminderGates = []reminderGate{
	{status: StatusSubmitted, role: RoleManager, template: TemplateReminderManager},
	{status: StatusManagerApproved, role: RoleSenior, template: TemplateReminderSenior},
}

// SendReminders counts submissions idle at each gate for longer than
// StaleAfter and enqueues one reminder per gate with the pending count.
// It only reads submissions, so running it repeatedly is harmless.
func (s *Service) SendReminders(ctx context.Context) (ReminderSummary, error) {
	staleAfter := s.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	cutoff := s.now().Add(-staleAfter)

	var summary ReminderSummary
	for _, gate := range reminderGates {
		n, err := s.Repo.CountStale(ctx, gate.status, cutoff)
		if err != nil {
			return summary, fmt.Errorf("count %s: %w", gate.status, err)
		}
		switch gate.status {
		case StatusSubmitted:
			summary.PendingManager = n
		case StatusManagerApproved:
			summary.PendingSenior = n
		}
		if n == 0 || s.Jobs == nil {
			continue
		}

		msg := queue.NewNotifyMessage("", gate.template, string(gate.role), "", "", requestIDFromContext(ctx))
		msg.Count = n
		if err := s.Jobs.Send(ctx, msg); err != nil {
			telemetry.Error("submission.reminder.enqueue_failed", map[string]any{
				"role":  string(gate.role),
				"count": n,
				"error": err.Error(),
			})
		}
	}

	telemetry.Info("submission.reminders", map[string]any{
		"pending_manager": summary.PendingManager,
		"pending_senior":  summary.PendingSenior,
		"stale_after":     staleAfter.String(),
	})
	return summary, nil
}

// StartReminderScheduler runs SendReminders immediately and then every
// interval until ctx is cancelled.
func (s *Service) StartReminderScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	telemetry.Info("reminder.scheduler.started", map[string]any{"interval": interval.String()})

	s.runReminders(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			telemetry.Info("reminder.scheduler.stopped", nil)
			return
		case <-ticker.C:
			s.runReminders(ctx)
		}
	}
}

func (s *Service) runReminders(ctx context.Context) {
	if _, err := s.SendReminders(ctx); err != nil {
		telemetry.Error("reminder.run.failed", map[string]any{"error": err.Error()})
	}
}
