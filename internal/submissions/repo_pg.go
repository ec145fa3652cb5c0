package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"submission-backend/internal/spreadsheet"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const submissionColumns = `id, owner_id, status, metadata, series, comment, file_name, file_key, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new submission.
func (r *PGRepo) Create(ctx context.Context, sub Submission) error {
	const query = `
INSERT INTO submissions (id, owner_id, status, metadata, series, comment, file_name, file_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	metadata, series, err := marshalResult(sub)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		sub.ID,
		sub.OwnerID,
		string(sub.Status),
		metadata,
		series,
		sub.Comment,
		sub.FileName,
		sub.FileKey,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

// GetByID returns a submission by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 LIMIT 1`
	sub, err := scanSubmission(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, err
	}
	return sub, nil
}

// ConditionalUpdate writes the mutable fields only while status = expected.
// A miss is resolved with a second read so callers can tell a stale
// transition apart from an unknown id.
func (r *PGRepo) ConditionalUpdate(ctx context.Context, next Submission, expected Status) (Submission, error) {
	query := `
UPDATE submissions
SET status = $3, metadata = $4, series = $5, comment = $6, updated_at = $7
WHERE id = $1 AND status = $2
RETURNING ` + submissionColumns
	metadata, series, err := marshalResult(next)
	if err != nil {
		return Submission{}, err
	}
	updated, err := scanSubmission(r.DB.QueryRowContext(ctx, query,
		next.ID,
		string(expected),
		string(next.Status),
		metadata,
		series,
		next.Comment,
		next.UpdatedAt,
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Submission{}, err
	}

	var current string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM submissions WHERE id = $1`, next.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		return Submission{}, err
	}
	return Submission{}, preconditionError(next.ID, Status(current), expected)
}

// ListByStatus returns submissions in status, oldest first.
func (r *PGRepo) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Submission, error) {
	query := `SELECT ` + submissionColumns + `
FROM submissions
WHERE status = $1
ORDER BY created_at ASC, id ASC
LIMIT $2 OFFSET $3`
	return r.query(ctx, query, string(status), pageLimit(limit), clampOffset(offset))
}

// ListByOwner returns an owner's submissions, newest first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Submission, error) {
	query := `SELECT ` + submissionColumns + `
FROM submissions
WHERE owner_id = $1
ORDER BY created_at DESC, id ASC
LIMIT $2 OFFSET $3`
	return r.query(ctx, query, ownerID, pageLimit(limit), clampOffset(offset))
}

// CountStale counts submissions in status not touched since updatedBefore.
func (r *PGRepo) CountStale(ctx context.Context, status Status, updatedBefore time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions WHERE status = $1 AND updated_at < $2`
	var n int
	if err := r.DB.QueryRowContext(ctx, query, string(status), updatedBefore).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PGRepo) query(ctx context.Context, query string, args ...any) ([]Submission, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func scanSubmission(row rowScanner) (Submission, error) {
	var (
		sub      Submission
		status   string
		metadata sql.NullString
		series   sql.NullString
		comment  sql.NullString
		fileName sql.NullString
		fileKey  sql.NullString
	)
	if err := row.Scan(
		&sub.ID,
		&sub.OwnerID,
		&status,
		&metadata,
		&series,
		&comment,
		&fileName,
		&fileKey,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return Submission{}, err
	}
	sub.Status = Status(status)
	sub.Comment = comment.String
	sub.FileName = fileName.String
	sub.FileKey = fileKey.String

	// metadata and series are written together; a row holding only one of
	// them is corrupt and is surfaced rather than half-loaded.
	if metadata.Valid != series.Valid {
		return Submission{}, fmt.Errorf("submission %s has partial parse result", sub.ID)
	}
	if metadata.Valid {
		var meta spreadsheet.Metadata
		if err := json.Unmarshal([]byte(metadata.String), &meta); err != nil {
			return Submission{}, fmt.Errorf("decode metadata: %w", err)
		}
		var points []spreadsheet.Point
		if err := json.Unmarshal([]byte(series.String), &points); err != nil {
			return Submission{}, fmt.Errorf("decode series: %w", err)
		}
		sub.Metadata = &meta
		sub.Series = points
	}
	return sub, nil
}

func marshalResult(sub Submission) (any, any, error) {
	if sub.Metadata == nil {
		return nil, nil, nil
	}
	meta, err := json.Marshal(sub.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("encode metadata: %w", err)
	}
	points := sub.Series
	if points == nil {
		points = []spreadsheet.Point{}
	}
	series, err := json.Marshal(points)
	if err != nil {
		return nil, nil, fmt.Errorf("encode series: %w", err)
	}
	return string(meta), string(series), nil
}

func pageLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ Repo = (*PGRepo)(nil)
