package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exchangeflow/internal/domain"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	user := &domain.User{ID: "11.111.111-1", Role: domain.RoleStudent}

	s, err := issuer.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, s.Token)
	require.Equal(t, time.Hour, s.ExpiresAt.Sub(s.IssuedAt))

	id, subject, err := issuer.Parse(s.Token)
	require.NoError(t, err)
	require.Equal(t, s.ID, id)
	require.Equal(t, user.ID, subject)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	s, err := NewIssuer("secret", time.Hour).Issue(&domain.User{ID: "u", Role: domain.RoleStaff})
	require.NoError(t, err)

	_, _, err = NewIssuer("other", time.Hour).Parse(s.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	s, err := issuer.Issue(&domain.User{ID: "u", Role: domain.RoleStaff})
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = issuer.Parse(s.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Contains(t, err.Error(), "expired")
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := &domain.Session{ID: "abc", UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}

	require.NoError(t, store.Save(ctx, s))
	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, "u", got.UserID)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	require.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestMemoryStoreDropsExpiredSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, &domain.Session{ID: "old", ExpiresAt: time.Now().Add(time.Minute)}))

	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := store.Get(ctx, "old")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreRejectsExpiredSession(t *testing.T) {
	store := NewMemoryStore()
	err := store.Save(context.Background(), &domain.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Second)})
	require.ErrorIs(t, err, ErrSessionExpired)
}
