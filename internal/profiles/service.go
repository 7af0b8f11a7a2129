package profiles

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service resolves and manages account roles. Emails listed in AdminEmails
// start out as admins.
type Service struct {
	Repo        Repo
	adminEmails map[string]struct{}
	Now         func() time.Time
}

func NewService(repo Repo, adminEmails []string) *Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			admins[email] = struct{}{}
		}
	}
	return &Service{Repo: repo, adminEmails: admins}
}

// GetOrCreate returns the profile for userID, creating it on first access.
func (s *Service) GetOrCreate(ctx context.Context, userID, email string) (Profile, error) {
	p, err := s.Repo.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}

	if err := s.Repo.Create(ctx, Profile{
		ID:        userID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      s.initialRole(email),
		CreatedAt: s.now(),
	}); err != nil {
		return Profile{}, err
	}
	// Re-read so a concurrent creator's row wins.
	return s.Repo.Get(ctx, userID)
}

// Ensure creates the profile if missing.
func (s *Service) Ensure(ctx context.Context, userID, email string) error {
	_, err := s.GetOrCreate(ctx, userID, email)
	return err
}

// IsAdmin reports whether userID holds the admin role. Missing profiles are
// not admins.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	p, err := s.Repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.IsAdmin(), nil
}

func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.Repo.List(ctx)
}

func (s *Service) SetRole(ctx context.Context, userID, role string) (Profile, error) {
	if !ValidRole(role) {
		return Profile{}, ErrInvalidRole
	}
	return s.Repo.SetRole(ctx, userID, role)
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.Repo.Delete(ctx, userID)
}

// Count returns profiles created at or after since (all when zero).
func (s *Service) Count(ctx context.Context, since time.Time) (int, error) {
	return s.Repo.Count(ctx, since)
}

func (s *Service) initialRole(email string) string {
	if _, ok := s.adminEmails[strings.ToLower(strings.TrimSpace(email))]; ok {
		return RoleAdmin
	}
	return RoleUser
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
