package credstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenExpiringAt(t *testing.T, exp time.Time) credstore.Credential {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice@example.com",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return credstore.Credential(s)
}

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := credstore.NewMemoryBackend()

	store, err := credstore.Open(ctx, backend, "", nil)
	require.NoError(t, err)
	require.False(t, store.Has())
	require.Zero(t, store.Generation())

	cred := tokenExpiringAt(t, time.Now().Add(time.Hour))
	require.NoError(t, store.Set(ctx, cred))

	got, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, cred, got)
	require.Equal(t, uint64(1), store.Generation())

	persisted, err := backend.Load(ctx, credstore.DefaultSlot)
	require.NoError(t, err)
	require.Equal(t, cred.Token(), persisted)

	require.NoError(t, store.Clear(ctx))
	require.False(t, store.Has())
	_, err = backend.Load(ctx, credstore.DefaultSlot)
	require.ErrorIs(t, err, credstore.ErrNotFound)

	// clearing twice is fine
	require.NoError(t, store.Clear(ctx))
}

func TestStoreRestoresFromBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := credstore.NewMemoryBackend()
	require.NoError(t, backend.Save(ctx, "custom", "restored-token"))

	store, err := credstore.Open(ctx, backend, "custom", nil)
	require.NoError(t, err)

	got, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, credstore.Credential("restored-token"), got)
}

func TestStoreRejectsEmpty(t *testing.T) {
	t.Parallel()

	store := credstore.NewMemoryStore()
	require.ErrorIs(t, store.Set(context.Background(), "  "), credstore.ErrEmptyCredential)
	require.False(t, store.Has())
}

type failingBackend struct{ *credstore.MemoryBackend }

func (failingBackend) Save(context.Context, string, string) error { return errors.New("disk full") }

func TestStoreKeepsValueWhenBackendFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := credstore.Open(ctx, failingBackend{credstore.NewMemoryBackend()}, "", nil)
	require.NoError(t, err)

	err = store.Set(ctx, "tok")
	require.ErrorContains(t, err, "disk full")

	got, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, credstore.Credential("tok"), got)
}

// slowBackend blocks every Save until release is closed.
type slowBackend struct {
	*credstore.MemoryBackend
	saving  chan struct{}
	release chan struct{}
}

func (b slowBackend) Save(ctx context.Context, slot, value string) error {
	b.saving <- struct{}{}
	<-b.release
	return b.MemoryBackend.Save(ctx, slot, value)
}

func TestStoreReadsDoNotWaitOnBackendWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := slowBackend{
		MemoryBackend: credstore.NewMemoryBackend(),
		saving:        make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
	store, err := credstore.Open(ctx, backend, "", nil)
	require.NoError(t, err)

	setDone := make(chan error, 1)
	go func() { setDone <- store.Set(ctx, "token-a") }()
	<-backend.saving

	// the write is stuck in the backend; readers see the new value already
	got, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, credstore.Credential("token-a"), got)
	require.Equal(t, uint64(1), store.Generation())

	clearDone := make(chan error, 1)
	go func() { clearDone <- store.Clear(ctx) }()
	require.Eventually(t, func() bool { return !store.Has() }, time.Second, time.Millisecond)

	close(backend.release)
	require.NoError(t, <-setDone)
	require.NoError(t, <-clearDone)

	// the later Clear is what the backend keeps
	_, err = backend.Load(ctx, credstore.DefaultSlot)
	require.ErrorIs(t, err, credstore.ErrNotFound)
}

func TestStoreConcurrentWritersLastWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := credstore.NewMemoryBackend()
	store, err := credstore.Open(ctx, backend, "", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set(ctx, "token-a")
		}()
		go func() {
			defer wg.Done()
			if c, ok := store.Get(); ok {
				assert.Contains(t, []credstore.Credential{"token-a", "token-b"}, c)
			}
		}()
	}
	wg.Wait()

	require.NoError(t, store.Set(ctx, "token-b"))
	got, _ := store.Get()
	require.Equal(t, credstore.Credential("token-b"), got)

	persisted, err := backend.Load(ctx, credstore.DefaultSlot)
	require.NoError(t, err)
	require.Equal(t, "token-b", persisted, "memory and backend must agree")
	require.Equal(t, uint64(51), store.Generation())
}

func TestCredentialExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("far from expiry", func(t *testing.T) {
		soon, err := tokenExpiringAt(t, now.Add(10*time.Minute)).ExpiresWithin(now, 2*time.Minute)
		require.NoError(t, err)
		require.False(t, soon)
	})

	t.Run("inside lead window", func(t *testing.T) {
		soon, err := tokenExpiringAt(t, now.Add(90*time.Second)).ExpiresWithin(now, 2*time.Minute)
		require.NoError(t, err)
		require.True(t, soon)
	})

	t.Run("malformed counts as expiring", func(t *testing.T) {
		soon, err := credstore.Credential("garbage").ExpiresWithin(now, 2*time.Minute)
		require.True(t, soon)

		var decodeErr *credstore.DecodeError
		require.ErrorAs(t, err, &decodeErr)
	})

	t.Run("string is redacted", func(t *testing.T) {
		c := tokenExpiringAt(t, now.Add(time.Minute))
		require.NotContains(t, c.String(), c.Token()[10:])
	})
}
