// Package file stores credential slots in a JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/calendar/pkg/credstore"
)

// DefaultPath is used when no path is configured.
const DefaultPath = ".calendar/credential.json"

type document struct {
	Slots     map[string]string `json:"slots"`
	UpdatedAt string            `json:"updated_at"`
}

// Backend is a credstore.Backend writing a single 0600 JSON file.
type Backend struct {
	path string
	mu   sync.Mutex
}

// New returns a backend for path. The file is created on first write.
func New(path string) *Backend {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &Backend{path: filepath.Clean(path)}
}

func (b *Backend) Load(_ context.Context, slot string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return "", err
	}
	v, ok := doc.Slots[slot]
	if !ok {
		return "", credstore.ErrNotFound
	}
	return v, nil
}

func (b *Backend) Save(_ context.Context, slot, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return err
	}
	doc.Slots[slot] = value
	return b.write(doc)
}

func (b *Backend) Delete(_ context.Context, slot string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.read()
	if err != nil {
		return err
	}
	if _, ok := doc.Slots[slot]; !ok {
		return nil
	}
	delete(doc.Slots, slot)
	return b.write(doc)
}

func (b *Backend) Close() error { return nil }

func (b *Backend) read() (document, error) {
	doc := document{Slots: make(map[string]string)}

	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("file backend: read: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("file backend: decode json: %w", err)
	}
	if doc.Slots == nil {
		doc.Slots = make(map[string]string)
	}
	return doc, nil
}

// write replaces the file atomically so a crash never leaves half a token.
func (b *Backend) write(doc document) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("file backend: create dir: %w", err)
	}

	doc.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("file backend: encode json: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".credential-*")
	if err != nil {
		return fmt.Errorf("file backend: create temp: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file backend: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file backend: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file backend: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("file backend: rename: %w", err)
	}
	return nil
}
