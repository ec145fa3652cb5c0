package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `u.id, u.email, u.full_name, u.given_name, u.family_name, u.picture_url, u.created_at, u.updated_at,
  COALESCE((SELECT string_agg(r.role, ',' ORDER BY r.role) FROM user_roles r WHERE r.user_id = u.id), '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, full_name, given_name, family_name, picture_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  full_name = EXCLUDED.full_name,
  given_name = EXCLUDED.given_name,
  family_name = EXCLUDED.family_name,
  picture_url = EXCLUDED.picture_url,
  updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		nullableString(user.FullName),
		nullableString(user.GivenName),
		nullableString(user.FamilyName),
		nullableString(user.PictureURL),
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	query := `SELECT ` + userColumns + `
FROM users u
WHERE u.id = $1
LIMIT 1`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

// ListByRole returns every member of role ordered by email.
func (r *PGRepo) ListByRole(ctx context.Context, role string) ([]User, error) {
	query := `SELECT ` + userColumns + `
FROM users u
WHERE EXISTS (SELECT 1 FROM user_roles m WHERE m.user_id = u.id AND m.role = $1)
ORDER BY u.email ASC`
	rows, err := r.DB.QueryContext(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// GrantRole adds a membership. Granting a role twice is a no-op.
func (r *PGRepo) GrantRole(ctx context.Context, userID, role string) error {
	if err := r.ensureExists(ctx, userID); err != nil {
		return err
	}
	const query = `
INSERT INTO user_roles (user_id, role, granted_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id, role) DO NOTHING`
	_, err := r.DB.ExecContext(ctx, query, userID, role)
	return err
}

func (r *PGRepo) RevokeRole(ctx context.Context, userID, role string) error {
	if err := r.ensureExists(ctx, userID); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, role)
	return err
}

func (r *PGRepo) ensureExists(ctx context.Context, userID string) error {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var fullName sql.NullString
	var givenName sql.NullString
	var familyName sql.NullString
	var pictureURL sql.NullString
	var updatedAt sql.NullTime
	var roles string
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&fullName,
		&givenName,
		&familyName,
		&pictureURL,
		&user.CreatedAt,
		&updatedAt,
		&roles,
	); err != nil {
		return User{}, err
	}
	user.FullName = fullName.String
	user.GivenName = givenName.String
	user.FamilyName = familyName.String
	user.PictureURL = pictureURL.String
	if updatedAt.Valid {
		user.UpdatedAt = updatedAt.Time
	} else {
		user.UpdatedAt = time.Now().UTC()
	}
	if roles != "" {
		user.Roles = strings.Split(roles, ",")
	}
	return user, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
