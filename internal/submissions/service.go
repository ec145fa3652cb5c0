package submissions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"submission-backend/internal/queue"
	"submission-backend/internal/shared/metrics"
	"submission-backend/internal/shared/storage/object"
	"submission-backend/internal/shared/telemetry"
	"submission-backend/internal/spreadsheet"
)

// Service runs the approval workflow: uploads, gate actions, the parse job
// and the reminder sweep. Every status change goes through Transition and
// Repo.ConditionalUpdate; notifications are enqueued only after the update
// has committed.
type Service struct {
	Repo       Repo
	Store      object.ObjectStore
	Jobs       queue.Client
	StaleAfter time.Duration
	Now        func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Upload stores the workbook, records a parsing submission and enqueues
// the parse job. Content problems surface later on the submission itself.
func (s *Service) Upload(ctx context.Context, actor Actor, fileName string, r io.Reader) (Submission, error) {
	if !actor.HasRole(RoleDataProvider) {
		return Submission{}, ErrForbidden
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" || r == nil {
		return Submission{}, validationError("No file provided")
	}
	if !spreadsheet.IsAcceptedFile(fileName) {
		return Submission{}, validationError("Invalid file format. Only .xlsx files are accepted.")
	}
	if s.Jobs == nil {
		return Submission{}, queue.ErrNotConfigured
	}

	id := uuid.NewString()
	obj, err := s.Store.Save(ctx, actor.ID, id, fileName, r)
	if err != nil {
		return Submission{}, fmt.Errorf("store workbook: %w", err)
	}

	now := s.now()
	sub := Submission{
		ID:        id,
		OwnerID:   actor.ID,
		Status:    StatusParsing,
		FileName:  fileName,
		FileKey:   obj.Key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, sub); err != nil {
		_ = s.Store.Delete(context.WithoutCancel(ctx), obj.Key)
		return Submission{}, fmt.Errorf("create submission: %w", err)
	}

	telemetry.Info("submission.uploaded", map[string]any{
		"submission_id": sub.ID,
		"owner_id":      sub.OwnerID,
		"file_name":     sub.FileName,
		"size_bytes":    obj.SizeBytes,
		"request_id":    requestIDFromContext(ctx),
	})

	if err := s.Jobs.Send(ctx, queue.NewParseMessage(sub.ID, requestIDFromContext(ctx))); err != nil {
		telemetry.Error("submission.parse.enqueue_failed", map[string]any{
			"submission_id": sub.ID,
			"request_id":    requestIDFromContext(ctx),
			"error":         err.Error(),
		})
		s.failParse(context.WithoutCancel(ctx), sub, internalParseComment)
		return Submission{}, fmt.Errorf("enqueue parse job: %w", err)
	}
	return sub, nil
}

// Preview returns a submission the actor is allowed to see. Submissions
// outside the actor's visibility are reported as not found.
func (s *Service) Preview(ctx context.Context, actor Actor, id string) (Submission, error) {
	if strings.TrimSpace(id) == "" {
		return Submission{}, validationError("submission id is required")
	}
	sub, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if !CanView(sub, actor) {
		return Submission{}, ErrNotFound
	}
	return sub, nil
}

// OpenWorkbook returns the stored workbook of a submission the actor may
// see. The caller closes the reader.
func (s *Service) OpenWorkbook(ctx context.Context, actor Actor, id string) (Submission, io.ReadCloser, error) {
	sub, err := s.Preview(ctx, actor, id)
	if err != nil {
		return Submission{}, nil, err
	}
	if s.Store == nil || sub.FileKey == "" {
		return Submission{}, nil, ErrNotFound
	}
	rc, err := s.Store.Open(ctx, sub.FileKey)
	if err != nil {
		return Submission{}, nil, fmt.Errorf("open workbook: %w", err)
	}
	return sub, rc, nil
}

// ListMine returns the actor's own submissions, newest first.
func (s *Service) ListMine(ctx context.Context, actor Actor, limit, offset int) ([]Submission, error) {
	if !actor.HasRole(RoleDataProvider) {
		return nil, ErrForbidden
	}
	return s.Repo.ListByOwner(ctx, actor.ID, limit, offset)
}

// Submit sends the owner's draft to the manager gate.
func (s *Service) Submit(ctx context.Context, actor Actor, id string) (Submission, error) {
	return s.apply(ctx, id, Command{Event: EventSubmit, Actor: actor})
}

// ListPendingForManager returns submissions waiting at the manager gate.
func (s *Service) ListPendingForManager(ctx context.Context, actor Actor, limit, offset int) ([]Submission, error) {
	if !actor.HasRole(RoleManager) {
		return nil, ErrForbidden
	}
	return s.Repo.ListByStatus(ctx, StatusSubmitted, limit, offset)
}

// ApproveAsManager passes a submission on to the senior gate.
func (s *Service) ApproveAsManager(ctx context.Context, actor Actor, id string) (Submission, error) {
	return s.apply(ctx, id, Command{Event: EventManagerApprove, Actor: actor})
}

// RejectAsManager ends the workflow at the manager gate.
func (s *Service) RejectAsManager(ctx context.Context, actor Actor, id, comment string) (Submission, error) {
	return s.apply(ctx, id, Command{Event: EventManagerReject, Actor: actor, Comment: comment})
}

// ListPendingForSenior returns submissions waiting at the senior gate.
func (s *Service) ListPendingForSenior(ctx context.Context, actor Actor, limit, offset int) ([]Submission, error) {
	if !actor.HasRole(RoleSenior) {
		return nil, ErrForbidden
	}
	return s.Repo.ListByStatus(ctx, StatusManagerApproved, limit, offset)
}

// ApproveAsSenior finalizes a submission.
func (s *Service) ApproveAsSenior(ctx context.Context, actor Actor, id string) (Submission, error) {
	return s.apply(ctx, id, Command{Event: EventSeniorApprove, Actor: actor})
}

// RejectAsSenior ends the workflow at the senior gate.
func (s *Service) RejectAsSenior(ctx context.Context, actor Actor, id, comment string) (Submission, error) {
	return s.apply(ctx, id, Command{Event: EventSeniorReject, Actor: actor, Comment: comment})
}

func (s *Service) apply(ctx context.Context, id string, cmd Command) (Submission, error) {
	if strings.TrimSpace(id) == "" {
		return Submission{}, validationError("submission id is required")
	}
	sub, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	return s.commit(ctx, sub, cmd)
}

// commit runs the pure transition, persists it with compare-and-swap on the
// status it was computed from, then enqueues the owed notifications.
func (s *Service) commit(ctx context.Context, sub Submission, cmd Command) (Submission, error) {
	out, err := Transition(sub, cmd, s.now())
	if err != nil {
		return Submission{}, err
	}
	updated, err := s.Repo.ConditionalUpdate(ctx, out.Next, out.From)
	if err != nil {
		return Submission{}, err
	}

	metrics.IncTransition(string(out.From), string(out.To))
	telemetry.Info("submission.status", map[string]any{
		"submission_id":     updated.ID,
		"event":             string(cmd.Event),
		"actor_id":          cmd.Actor.ID,
		"status_transition": string(out.From) + "->" + string(out.To),
		"request_id":        requestIDFromContext(ctx),
	})

	s.dispatch(ctx, updated, out.Effects)
	return updated, nil
}

// dispatch enqueues notifications. Failures are logged and never undo the
// transition that produced them.
func (s *Service) dispatch(ctx context.Context, sub Submission, effects []Effect) {
	if len(effects) == 0 {
		return
	}
	ctx = backgroundWithRequestID(ctx)
	for _, e := range effects {
		msg := queue.NewNotifyMessage(sub.ID, e.Template, string(e.Role), e.UserID, e.Comment, requestIDFromContext(ctx))
		if s.Jobs == nil {
			telemetry.Warn("submission.notify.skipped", map[string]any{
				"submission_id": sub.ID,
				"template":      e.Template,
				"reason":        "no job queue",
			})
			continue
		}
		if err := s.Jobs.Send(ctx, msg); err != nil {
			metrics.IncNotificationFailed()
			telemetry.Error("submission.notify.enqueue_failed", map[string]any{
				"submission_id": sub.ID,
				"template":      e.Template,
				"role":          string(e.Role),
				"user_id":       e.UserID,
				"error":         err.Error(),
			})
		}
	}
}

// ProcessParse is the parse job. It re-checks the stored status first, so
// redelivered or stale jobs are no-ops. Content problems and internal
// faults both end in status error; an error is returned only when even that
// could not be recorded, so the queue redelivers the job.
func (s *Service) ProcessParse(ctx context.Context, id string) (err error) {
	sub, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		telemetry.Warn("submission.parse.skipped", map[string]any{
			"submission_id": id,
			"reason":        "not_found",
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}
	if sub.Status != StatusParsing {
		telemetry.Info("submission.parse.skipped", map[string]any{
			"submission_id": id,
			"reason":        "status_" + string(sub.Status),
		})
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.ObserveParseDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
		if rec := recover(); rec != nil {
			telemetry.Error("submission.parse.panic", map[string]any{
				"submission_id": id,
				"error":         fmt.Sprint(rec),
			})
			metrics.IncParseInternalError()
			err = s.failParse(ctx, sub, internalParseComment)
		}
	}()

	result, perr, ierr := s.parseStored(ctx, sub)
	switch {
	case ierr != nil:
		telemetry.Error("submission.parse.internal_error", map[string]any{
			"submission_id": id,
			"request_id":    requestIDFromContext(ctx),
			"error":         ierr.Error(),
		})
		metrics.IncParseInternalError()
		return s.failParse(ctx, sub, internalParseComment)
	case perr != nil:
		telemetry.Info("submission.parse.rejected", map[string]any{
			"submission_id": id,
			"kind":          string(perr.Kind),
			"reason":        perr.Error(),
		})
		metrics.IncParseFailed()
		return s.failParse(ctx, sub, perr.Error())
	}

	_, err = s.commit(ctx, sub, Command{Event: EventParseSucceeded, Actor: SystemActor, Result: &result})
	if errors.Is(err, ErrPreconditionFailed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("record parse result: %w", err)
	}
	metrics.IncParseSucceeded()
	return nil
}

func (s *Service) parseStored(ctx context.Context, sub Submission) (spreadsheet.Result, *spreadsheet.ParseError, error) {
	if s.Store == nil {
		return spreadsheet.Result{}, nil, errors.New("object store not configured")
	}
	rc, err := s.Store.Open(ctx, sub.FileKey)
	if err != nil {
		return spreadsheet.Result{}, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer rc.Close()

	result, perr := spreadsheet.ParseWorkbook(sub.FileName, rc)
	if perr != nil {
		return spreadsheet.Result{}, perr, nil
	}
	return result, nil, nil
}

// failParse records a parse failure. Losing the race to another worker is
// not an error.
func (s *Service) failParse(ctx context.Context, sub Submission, comment string) error {
	_, err := s.commit(ctx, sub, Command{Event: EventParseFailed, Actor: SystemActor, Comment: comment})
	if err == nil || errors.Is(err, ErrPreconditionFailed) {
		return nil
	}
	telemetry.Error("submission.parse.record_failed", map[string]any{
		"submission_id": sub.ID,
		"error":         err.Error(),
	})
	return fmt.Errorf("record parse failure: %w", err)
}
