// ABOUTME: Credential store interface and the file and in-memory backends
// ABOUTME: Holds the single bearer token string under the fixed "token" key

package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Key is the fixed storage key for the bearer credential.
const Key = "token"

// ErrNotFound is returned when no credential is stored.
var ErrNotFound = errors.New("credential not found")

// Store persists the bearer credential.
type Store interface {
	// Token returns the stored credential or ErrNotFound.
	Token(ctx context.Context) (string, error)
	// SetToken replaces the stored credential.
	SetToken(ctx context.Context, token string) error
	// Clear removes the stored credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	Close() error
}

// FileStore keeps the credential in a single file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the file at path.
// The file and its parent directory are created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Token reads the credential file.
func (s *FileStore) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading credential file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// SetToken writes the credential file with owner-only permissions.
func (s *FileStore) SetToken(_ context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty credential")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	return nil
}

// Clear removes the credential file.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}

// Close is a no-op for FileStore.
func (s *FileStore) Close() error { return nil }

// MemoryStore keeps the credential in memory only.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns a store seeded with token (may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// Token returns the held credential or ErrNotFound when it is empty.
func (s *MemoryStore) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNotFound
	}
	return s.token, nil
}

// SetToken replaces the held credential.
func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear empties the store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }

// Open returns the store for the given backend name ("file" or "sqlite").
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown credential backend %q", backend)
	}
}
