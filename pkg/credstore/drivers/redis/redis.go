// Package redis stores credential slots as Redis string keys.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces credential keys.
const DefaultPrefix = "calendar:cred"

// Backend is a credstore.Backend keyed by "<prefix>:<slot>".
type Backend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	owned  bool
}

// Option configures a Backend.
type Option func(*Backend)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(b *Backend) {
		if p := strings.TrimSpace(prefix); p != "" {
			b.prefix = p
		}
	}
}

// WithTTL expires slots after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.ttl = ttl }
}

// New wraps an existing client. Close does not close it.
func New(client *redis.Client, opts ...Option) *Backend {
	b := &Backend{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial connects to addr and pings it. The returned backend owns the client.
func Dial(ctx context.Context, addr string, opts ...Option) (*Backend, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis backend: ping %s: %w", addr, err)
	}
	b := New(client, opts...)
	b.owned = true
	return b, nil
}

func (b *Backend) key(slot string) string {
	return b.prefix + ":" + slot
}

func (b *Backend) Load(ctx context.Context, slot string) (string, error) {
	v, err := b.client.Get(ctx, b.key(slot)).Result()
	if errors.Is(err, redis.Nil) {
		return "", credstore.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis backend: get %q: %w", slot, err)
	}
	return v, nil
}

func (b *Backend) Save(ctx context.Context, slot, value string) error {
	if err := b.client.Set(ctx, b.key(slot), value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis backend: set %q: %w", slot, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, slot string) error {
	if err := b.client.Del(ctx, b.key(slot)).Err(); err != nil {
		return fmt.Errorf("redis backend: del %q: %w", slot, err)
	}
	return nil
}

func (b *Backend) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}
