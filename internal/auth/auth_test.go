package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/defter-erp/defter/internal/shared"
)

func testCredentials(t *testing.T, password string) Credentials {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return Credentials{Username: "admin", PasswordHash: string(hash)}
}

func TestAuthenticate(t *testing.T) {
	svc := NewService(testCredentials(t, "hunter22"))

	require.NoError(t, svc.Authenticate("admin", "hunter22"))
	require.ErrorIs(t, svc.Authenticate("admin", "wrong"), shared.ErrInvalidCredentials)
	require.ErrorIs(t, svc.Authenticate("root", "hunter22"), shared.ErrInvalidCredentials)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	sessions := NewSessionStore(client, time.Hour)

	token, err := sessions.Create(context.Background(), Identity{UserID: "u1", Username: "admin"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, ok, err := sessions.Get(context.Background(), token)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", identity.UserID)
	require.Equal(t, "admin", identity.Username)

	require.NoError(t, sessions.Delete(context.Background(), token))
	_, ok, err = sessions.Get(context.Background(), token)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionStoreExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	sessions := NewSessionStore(client, time.Minute)

	token, err := sessions.Create(context.Background(), Identity{UserID: "u1", Username: "admin"})
	require.NoError(t, err)

	srv.FastForward(2 * time.Minute)
	_, ok, err := sessions.Get(context.Background(), token)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionStoreUnknownToken(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	sessions := NewSessionStore(client, time.Minute)

	_, ok, err := sessions.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, sessions.Delete(context.Background(), "nope"))
}
