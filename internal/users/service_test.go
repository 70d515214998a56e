package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/defter-erp/defter/internal/shared"
	"github.com/defter-erp/defter/internal/store"
)

type memoryUserRepo struct {
	users map[string]User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]User)}
}

func (r *memoryUserRepo) Get(_ context.Context, id string) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) FindByUsername(_ context.Context, username string) (User, bool, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return User{}, false, nil
}

func (r *memoryUserRepo) Create(_ context.Context, user *User) error {
	user.Meta = store.NewMeta(time.Now().UTC())
	r.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepo) Update(_ context.Context, user User) error {
	if _, ok := r.users[user.ID]; !ok {
		return shared.ErrNotFound
	}
	r.users[user.ID] = user
	return nil
}

func TestEnsureAccountCreatesOnce(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	first, err := svc.EnsureAccount(context.Background(), "admin", "Admin")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.Equal(t, DefaultSettings(), first.Settings)

	second, err := svc.EnsureAccount(context.Background(), "admin", "ignored")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.users, 1)
}

func TestUpdateSettingsPartial(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	user, err := svc.EnsureAccount(context.Background(), "admin", "Admin")
	require.NoError(t, err)

	theme := "dark"
	updated, err := svc.UpdateSettings(context.Background(), user.ID, SettingsInput{Theme: &theme})
	require.NoError(t, err)
	require.Equal(t, "dark", updated.Settings.Theme)
	// Untouched fields keep their values.
	require.Equal(t, "vertical", updated.Settings.Layout)
	require.Equal(t, "tr", updated.Settings.Language)
}

func TestUpdateSettingsExplicitIdentity(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	alice, err := svc.EnsureAccount(context.Background(), "alice", "Alice")
	require.NoError(t, err)
	bob, err := svc.EnsureAccount(context.Background(), "bob", "Bob")
	require.NoError(t, err)

	theme := "dark"
	_, err = svc.UpdateSettings(context.Background(), bob.ID, SettingsInput{Theme: &theme})
	require.NoError(t, err)

	// Only the named user changes.
	require.Equal(t, "light", repo.users[alice.ID].Settings.Theme)
	require.Equal(t, "dark", repo.users[bob.ID].Settings.Theme)
}

func TestUpdateSettingsUnknownUser(t *testing.T) {
	svc := NewService(newMemoryUserRepo())

	theme := "dark"
	_, err := svc.UpdateSettings(context.Background(), "missing", SettingsInput{Theme: &theme})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	user, err := svc.EnsureAccount(context.Background(), "admin", "Admin")
	require.NoError(t, err)

	email := "admin@defter.example"
	updated, err := svc.UpdateProfile(context.Background(), user.ID, ProfileInput{Email: &email})
	require.NoError(t, err)
	require.Equal(t, email, updated.Email)
	require.Equal(t, "Admin", updated.Name)
}
