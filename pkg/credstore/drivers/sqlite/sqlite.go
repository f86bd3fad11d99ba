// Package sqlite stores credential slots in a SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	_ "modernc.org/sqlite"
)

// Backend is a credstore.Backend over a single credential_slots table.
type Backend struct {
	db  *sql.DB
	dsn string
}

// Open connects to dsn and applies pending migrations.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, dsn: dsn}
	if err := b.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite backend: migrate: %w", err)
	}
	return b, nil
}

func (b *Backend) Load(ctx context.Context, slot string) (string, error) {
	var value string
	err := b.db.QueryRowContext(ctx,
		`SELECT value FROM credential_slots WHERE slot = ?`, slot,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", credstore.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite backend: load %q: %w", slot, err)
	}
	return value, nil
}

func (b *Backend) Save(ctx context.Context, slot, value string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO credential_slots (slot, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		slot, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite backend: save %q: %w", slot, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, slot string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM credential_slots WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("sqlite backend: delete %q: %w", slot, err)
	}
	return nil
}

// Ping verifies the database connection is still alive.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *Backend) Close() error { return b.db.Close() }
