package users

import (
	"context"
	"fmt"

	"github.com/defter-erp/defter/internal/shared"
)

// Service implements user profile and settings operations. Every call names
// the user explicitly; there is no implicit current-user record.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// SettingsInput carries a partial settings update. Nil fields keep their
// current value.
type SettingsInput struct {
	Layout      *string
	Theme       *string
	AccentColor *string
	Language    *string
}

// ProfileInput carries a partial profile update.
type ProfileInput struct {
	Name  *string
	Email *string
}

// EnsureAccount returns the account for username, creating it with default
// settings on first login.
func (s *Service) EnsureAccount(ctx context.Context, username, name string) (User, error) {
	if username == "" {
		return User{}, fmt.Errorf("users: username required: %w", shared.ErrValidation)
	}
	existing, ok, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	if ok {
		return existing, nil
	}
	user := User{Username: username, Name: name, Settings: DefaultSettings()}
	if err := s.repo.Create(ctx, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// EnsureUserID resolves a username to its stored account id, creating the
// account on first login.
func (s *Service) EnsureUserID(ctx context.Context, username string) (string, error) {
	user, err := s.EnsureAccount(ctx, username, username)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	return s.repo.Get(ctx, userID)
}

// UpdateSettings applies a partial settings change to the named user.
func (s *Service) UpdateSettings(ctx context.Context, userID string, input SettingsInput) (User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if input.Layout != nil {
		user.Settings.Layout = *input.Layout
	}
	if input.Theme != nil {
		user.Settings.Theme = *input.Theme
	}
	if input.AccentColor != nil {
		user.Settings.AccentColor = *input.AccentColor
	}
	if input.Language != nil {
		user.Settings.Language = *input.Language
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateProfile applies a partial profile change to the named user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}
