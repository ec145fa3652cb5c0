package submissions

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"submission-backend/internal/queue"
	local "submission-backend/internal/shared/storage/object/local"
)

var (
	provider      = Actor{ID: "provider-1", Roles: []string{string(RoleDataProvider)}}
	otherProvider = Actor{ID: "provider-2", Roles: []string{string(RoleDataProvider)}}
	manager       = Actor{ID: "manager-1", Roles: []string{string(RoleManager)}}
	senior        = Actor{ID: "senior-1", Roles: []string{string(RoleSenior)}}
)

type recordingQueue struct {
	mu       sync.Mutex
	messages []queue.Message
	err      error
}

func (q *recordingQueue) Send(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

func (q *recordingQueue) ofType(typ string) []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Message
	for _, m := range q.messages {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

var errQueueDown = errors.New("queue down")

func newTestService(t *testing.T) (*Service, *MemoryRepo, *recordingQueue) {
	t.Helper()
	repo := NewMemoryRepo()
	jobs := &recordingQueue{}
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	svc := &Service{
		Repo:  repo,
		Store: local.New(t.TempDir()),
		Jobs:  jobs,
		Now:   func() time.Time { return now },
	}
	return svc, repo, jobs
}

var workbookHeader = []any{"timestamp", "value", "title", "unit", "start_date", "end_date", "type", "sector"}

func workbookRow(ts string, value any, sector string) []any {
	return []any{ts, value, "Enrollment", "students", "2024-01-01", "2024-12-31", "annual", sector}
}

func workbookBytes(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	all := append([][]any{workbookHeader}, rows...)
	for i, row := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func validWorkbook(t *testing.T) []byte {
	return workbookBytes(t,
		workbookRow("2024-01-01", 10, "Health"),
		workbookRow("2024-02-01", nil, "Health"),
		workbookRow("2024-03-01", 12.5, "Health"),
	)
}

// uploadParsed uploads a valid workbook and runs its parse job.
func uploadParsed(t *testing.T, svc *Service) Submission {
	t.Helper()
	ctx := context.Background()
	sub, err := svc.Upload(ctx, provider, "data.xlsx", bytes.NewReader(validWorkbook(t)))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := svc.ProcessParse(ctx, sub.ID); err != nil {
		t.Fatalf("ProcessParse: %v", err)
	}
	parsed, err := svc.Repo.GetByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if parsed.Status != StatusDraft {
		t.Fatalf("expected draft after parse, got %s (%s)", parsed.Status, parsed.Comment)
	}
	return parsed
}

// seed stores a submission directly in the given status.
func seed(t *testing.T, repo *MemoryRepo, id string, status Status) Submission {
	t.Helper()
	created := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	sub := Submission{
		ID:        id,
		OwnerID:   provider.ID,
		Status:    status,
		FileName:  "data.xlsx",
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := repo.Create(context.Background(), sub); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return sub
}
