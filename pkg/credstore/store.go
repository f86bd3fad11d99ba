package credstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

// DefaultSlot is the storage slot holding the access credential.
const DefaultSlot = "accessToken"

// ErrEmptyCredential is returned by Set for a blank token.
var ErrEmptyCredential = errors.New("credstore: empty credential")

// Store is the single holder of the current access credential.
type Store struct {
	backend Backend
	slot    string
	logger  *slog.Logger

	mu   sync.RWMutex
	cred Credential
	gen  uint64

	// persistMu orders backend writes; mu is never held across one.
	persistMu sync.Mutex
}

// Open loads the slot from backend and returns a Store mirroring it.
func Open(ctx context.Context, backend Backend, slot string, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("credstore: backend is required")
	}
	if strings.TrimSpace(slot) == "" {
		slot = DefaultSlot
	}

	s := &Store{
		backend: backend,
		slot:    slot,
		logger:  slogx.OrDefault(logger),
	}

	value, err := backend.Load(ctx, slot)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("credstore: load %q: %w", slot, err)
	default:
		s.cred = Credential(strings.TrimSpace(value))
		s.logger.Debug("credential restored from storage", "slot", slot)
	}

	return s, nil
}

// NewMemoryStore is a Store over a fresh MemoryBackend.
func NewMemoryStore() *Store {
	s, _ := Open(context.Background(), NewMemoryBackend(), DefaultSlot, nil)
	return s
}

// Get returns the current credential, if any.
func (s *Store) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.cred != ""
}

// Has reports whether a credential is stored.
func (s *Store) Has() bool {
	_, ok := s.Get()
	return ok
}

// Generation counts successful Set calls. It lets observers tell a freshly
// issued credential from the one they last saw.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Set replaces the credential. The in-memory value is updated even when the
// backend write fails; the error is returned so callers can log it.
func (s *Store) Set(ctx context.Context, c Credential) error {
	if strings.TrimSpace(string(c)) == "" {
		return ErrEmptyCredential
	}

	s.mu.Lock()
	s.cred = c
	s.gen++
	s.mu.Unlock()

	return s.persist(ctx)
}

// Clear forgets the credential.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.cred = ""
	s.mu.Unlock()

	return s.persist(ctx)
}

// persist writes whatever value is current when its turn comes, so a slow
// write never lands after a newer one.
func (s *Store) persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	cred, ok := s.Get()
	if !ok {
		if err := s.backend.Delete(ctx, s.slot); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("credstore: delete %q: %w", s.slot, err)
		}
		return nil
	}
	if err := s.backend.Save(ctx, s.slot, string(cred)); err != nil {
		return fmt.Errorf("credstore: save %q: %w", s.slot, err)
	}
	return nil
}

// Backend exposes the durable storage so other session data (cookies) can
// share it.
func (s *Store) Backend() Backend { return s.backend }

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
