// Package object stores uploaded workbooks until their parse job reads them.
package object

import (
	"context"
	"errors"
	"io"
)

// WorkbookContentType is recorded for every stored workbook.
const WorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrNotFound is returned by Open and Delete for unknown keys.
var ErrNotFound = errors.New("object not found")

// Object describes a stored upload.
type Object struct {
	Key         string
	SizeBytes   int64
	ContentType string
}

// ObjectStore defines the contract for saving and retrieving uploaded workbooks.
type ObjectStore interface {
	Save(ctx context.Context, ownerID, submissionID, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
