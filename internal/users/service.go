package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"submission-backend/internal/shared/telemetry"
)

// ErrUnknownRole is returned when granting a role outside KnownRoles.
var ErrUnknownRole = errors.New("unknown role")

type Service struct {
	Repo Repo
	// KnownRoles restricts GrantRole when non-empty.
	KnownRoles []string
}

func NewService(repo Repo, knownRoles ...string) *Service {
	return &Service{Repo: repo, KnownRoles: knownRoles}
}

// UpsertFromAuth persists the user identity from OAuth so role grants have a row to attach to.
func (s *Service) UpsertFromAuth(ctx context.Context, user User) error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	if strings.TrimSpace(user.ID) == "" || strings.TrimSpace(user.Email) == "" {
		return errors.New("user id and email are required")
	}
	return s.Repo.Upsert(ctx, user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// ListByRole returns the members of role.
func (s *Service) ListByRole(ctx context.Context, role string) ([]User, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("users service not configured")
	}
	return s.Repo.ListByRole(ctx, role)
}

// GrantRole adds userID to role.
func (s *Service) GrantRole(ctx context.Context, userID, role string) error {
	canonical, err := s.canonicalRole(role)
	if err != nil {
		return err
	}
	if err := s.Repo.GrantRole(ctx, userID, canonical); err != nil {
		return err
	}
	telemetry.Info("user.role.granted", map[string]any{"user_id": userID, "role": canonical})
	return nil
}

// RevokeRole removes userID from role.
func (s *Service) RevokeRole(ctx context.Context, userID, role string) error {
	canonical, err := s.canonicalRole(role)
	if err != nil {
		return err
	}
	if err := s.Repo.RevokeRole(ctx, userID, canonical); err != nil {
		return err
	}
	telemetry.Info("user.role.revoked", map[string]any{"user_id": userID, "role": canonical})
	return nil
}

func (s *Service) canonicalRole(role string) (string, error) {
	if s == nil || s.Repo == nil {
		return "", errors.New("users service not configured")
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownRole)
	}
	if len(s.KnownRoles) == 0 {
		return role, nil
	}
	for _, known := range s.KnownRoles {
		if strings.EqualFold(known, role) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownRole, role)
}
