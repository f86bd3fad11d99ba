package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/calendar/internal/devbackend/domain"
	"github.com/aussiebroadwan/calendar/internal/devbackend/store"
	"github.com/aussiebroadwan/calendar/internal/devbackend/store/drivers/sqlite"
	"github.com/aussiebroadwan/calendar/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st store.Store, email string) domain.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Username:     "user",
		PasswordHash: "$argon2id$stub",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func TestUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newStore(t)

	empty, err := st.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	u := seedUser(t, st, "alice@example.com")

	got, err := st.Users().GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u, got)

	got, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)

	dup := u
	dup.ID = idx.New().String()
	require.ErrorIs(t, st.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	_, err = st.Users().GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	users, err := st.Users().ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func TestEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newStore(t)
	alice := seedUser(t, st, "alice@example.com")
	bob := seedUser(t, st, "bob@example.com")

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mk := func(owner string, offset time.Duration) domain.Event {
		return domain.Event{
			ID:        idx.New().String(),
			Title:     "standup",
			StartTime: start.Add(offset),
			EndTime:   start.Add(offset + 30*time.Minute),
			OwnerID:   owner,
			Status:    domain.EventDraft,
			CreatedAt: start,
			UpdatedAt: start,
		}
	}

	late := mk(alice.ID, 2*time.Hour)
	early := mk(alice.ID, 0)
	other := mk(bob.ID, time.Hour)
	for _, e := range []domain.Event{late, early, other} {
		require.NoError(t, st.Events().CreateEvent(ctx, e))
	}

	all, err := st.Events().ListEvents(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{early.ID, other.ID, late.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	mine, err := st.Events().ListEventsByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	none, err := st.Events().ListEventsByOwner(ctx, "nobody")
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	early.Title = "retro"
	early.Status = domain.EventPublished
	require.NoError(t, st.Events().UpdateEvent(ctx, early))
	got, err := st.Events().GetEventByID(ctx, early.ID)
	require.NoError(t, err)
	require.Equal(t, early, got)

	require.NoError(t, st.Events().DeleteEvent(ctx, early.ID))
	require.ErrorIs(t, st.Events().DeleteEvent(ctx, early.ID), store.ErrNotFound)
	require.ErrorIs(t, st.Events().UpdateEvent(ctx, early), store.ErrNotFound)
	_, err = st.Events().GetEventByID(ctx, early.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	bad := mk(alice.ID, 0)
	bad.EndTime = bad.StartTime
	require.Error(t, st.Events().CreateEvent(ctx, bad))
}

func TestRefreshTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newStore(t)
	u := seedUser(t, st, "alice@example.com")
	now := time.Now().UTC().Truncate(time.Millisecond)

	live := domain.RefreshToken{ID: "jti-live", UserID: u.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	stale := domain.RefreshToken{ID: "jti-stale", UserID: u.ID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now}
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, live))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, stale))

	got, err := st.RefreshTokens().GetRefreshToken(ctx, live.ID)
	require.NoError(t, err)
	require.Equal(t, live, got)

	require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, live.ID))
	require.ErrorIs(t, st.RefreshTokens().RevokeRefreshToken(ctx, live.ID), store.ErrNotFound)

	n, err := st.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestWithTxRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newStore(t)
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		seedUser(t, tx, "alice@example.com")
		return boom
	})
	require.ErrorIs(t, err, boom)

	empty, err := st.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calendar-api.db")

	st, err := sqlite.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	u := seedUser(t, st, "alice@example.com")
	require.NoError(t, st.Close())

	st, err = sqlite.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	got, err := st.Users().GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)
}
