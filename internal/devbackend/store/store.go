package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/calendar/internal/devbackend/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Sub-repositories are exposed as
// methods so a transaction can hand out the same repositories bound to it.
type Store interface {
	Users() Users
	Events() Events
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up by the lower-cased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	ListUsers(ctx context.Context) ([]domain.User, error)

	IsEmpty(ctx context.Context) (bool, error)
}

type Events interface {
	CreateEvent(ctx context.Context, e domain.Event) error
	GetEventByID(ctx context.Context, id string) (domain.Event, error)

	// ListEvents returns every event ordered by start time.
	ListEvents(ctx context.Context) ([]domain.Event, error)
	ListEventsByOwner(ctx context.Context, ownerID string) ([]domain.Event, error)

	// UpdateEvent overwrites the mutable fields. ErrNotFound if absent.
	UpdateEvent(ctx context.Context, e domain.Event) error

	// DeleteEvent returns ErrNotFound if absent.
	DeleteEvent(ctx context.Context, id string) error
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, id string) (domain.RefreshToken, error)

	// RevokeRefreshToken returns ErrNotFound when no active record matches,
	// which makes a replayed token lose the rotation race.
	RevokeRefreshToken(ctx context.Context, id string) error

	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens removes expired or revoked records and
	// reports how many were removed.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}
