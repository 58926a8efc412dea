package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Backend names accepted by NewStore and the storage.kind config key.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

var (
	ErrUnknownBackend    = errors.New("unknown store backend")
	ErrSQLiteUnavailable = errors.New("sqlite backend not compiled in")
)

// NewStore opens the snapshot store named by kind. An empty kind selects the
// in-memory store; the sqlite backend needs a database path and a binary
// built with -tags sqlite.
func NewStore(kind, dbPath string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		if strings.TrimSpace(dbPath) == "" {
			return nil, fmt.Errorf("%s store: database path is required", KindSQLite)
		}
		return newSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownBackend, kind, KindMemory, KindSQLite)
	}
}

// CloseIfSupported releases stores that hold resources, such as the sqlite
// connection. The memory store has nothing to release.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
