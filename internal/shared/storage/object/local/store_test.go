package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"submission-backend/internal/shared/storage/object"
)

func TestSaveOpenDelete(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	obj, err := store.Save(ctx, "provider-1", "sub-1", "q1 report.xlsx", strings.NewReader("workbook"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if obj.SizeBytes != int64(len("workbook")) {
		t.Fatalf("unexpected size: %d", obj.SizeBytes)
	}
	if !strings.HasPrefix(obj.Key, "submissions/") || !strings.HasSuffix(obj.Key, "/sub-1/q1 report.xlsx") {
		t.Fatalf("unexpected key: %s", obj.Key)
	}
	if obj.ContentType != object.WorkbookContentType {
		t.Fatalf("unexpected content type: %s", obj.ContentType)
	}

	rc, err := store.Open(ctx, obj.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "workbook" {
		t.Fatalf("unexpected body: %q", data)
	}

	if err := store.Delete(ctx, obj.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, obj.Key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSaveRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Save(context.Background(), "provider-1", "sub-1", "../../etc.xlsx", strings.NewReader("x")); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := store.Open(context.Background(), "../outside"); err == nil {
		t.Fatalf("expected invalid key error")
	}
}
