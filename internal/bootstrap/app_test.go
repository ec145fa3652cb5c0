package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"submission-backend/internal/notify"
	"submission-backend/internal/shared/config"
	"submission-backend/internal/submissions"
	"submission-backend/internal/users"
)

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (c *captureNotifier) Send(_ context.Context, n notify.Notification) error {
	c.mu.Lock()
	c.sent = append(c.sent, n)
	c.mu.Unlock()
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                "dev",
		ObjectStoreType:    "local",
		LocalStoreDir:      t.TempDir(),
		MaxUploadBytes:     1 << 20,
		ReminderStaleAfter: time.Hour,
		UploadRatePerMin:   60,
		NotifyFrom:         "no-reply@example.com",
	}
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"timestamp", "value", "title", "unit", "start_date", "end_date", "type", "sector"},
		{"2024-01-01", 10, "Enrollment", "students", "2024-01-01", "2024-12-31", "annual", "Health"},
		{"2024-02-01", 11, "Enrollment", "students", "2024-01-01", "2024-12-31", "annual", "Health"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
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

func do(t *testing.T, app *App, method, path, userID, roles string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("X-User-Id", userID)
	req.Header.Set("X-User-Roles", roles)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	return resp
}

func TestBuildUsesInMemoryBackendsInDev(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if app.DB != nil {
		t.Fatalf("expected no database in dev without DATABASE_URL")
	}
	if _, ok := app.SubmissionsRepo.(*submissions.MemoryRepo); !ok {
		t.Fatalf("expected memory submissions repo, got %T", app.SubmissionsRepo)
	}
	if _, ok := app.UsersRepo.(*users.MemoryRepo); !ok {
		t.Fatalf("expected memory users repo, got %T", app.UsersRepo)
	}
	if app.LocalQueue == nil || app.Queue != app.LocalQueue {
		t.Fatalf("expected the in-process queue")
	}
	if app.Router == nil {
		t.Fatalf("expected router")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ObjectStoreType = "s3"
	cfg.S3Bucket = ""
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected config validation error")
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	cfg := testConfig(t)
	cfg.Env = "staging"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected DATABASE_URL error")
	}
}

func TestUploadParsesAndNotifiesThroughLocalQueue(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	sink := &captureNotifier{}
	app.Dispatcher.Notifier = sink

	ctx := context.Background()
	if err := app.UsersService.UpsertFromAuth(ctx, users.User{ID: "manager-1", Email: "manager@example.com"}); err != nil {
		t.Fatalf("UpsertFromAuth: %v", err)
	}
	if err := app.UsersService.GrantRole(ctx, "manager-1", "institutionmanager"); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", "data.xlsx")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write(workbook(t))
	_ = w.Close()

	resp := do(t, app, http.MethodPost, "/api/v1/submissions", "provider-1", "DataProvider", body, w.FormDataContentType())
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	app.LocalQueue.Wait()

	sub, err := app.SubmissionsRepo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if sub.Status != submissions.StatusDraft || len(sub.Series) != 2 {
		t.Fatalf("expected parsed draft, got %s with %d points (comment %q)", sub.Status, len(sub.Series), sub.Comment)
	}

	resp = do(t, app, http.MethodPost, "/api/v1/submissions/"+created.ID+"/submit", "provider-1", "DataProvider", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	app.LocalQueue.Wait()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sink.sent))
	}
	if sink.sent[0].To != "manager@example.com" || sink.sent[0].Template != submissions.TemplateSubmitted {
		t.Fatalf("unexpected notification: %+v", sink.sent[0])
	}
}

func TestAppRunsReminderSweep(t *testing.T) {
	app, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	if err := app.SendReminders(context.Background()); err != nil {
		t.Fatalf("SendReminders: %v", err)
	}
}
