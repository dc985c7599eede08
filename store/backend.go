package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

const (
	// TasksKey holds the JSON encoded ordered task collection.
	TasksKey = "todoapp-tasks-v1"
	// ThemeKey holds the literal theme name, "dark" or "light".
	ThemeKey = "todoapp-theme"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var (
	ErrUnknownBackend = errors.New("unknown storage backend")
	errNoValidBackup  = errors.New("no valid backup found")
)

// Backend is a durable key-value store. Values are opaque bytes.
type Backend interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) ([]byte, bool, error)
	// Set replaces the value of key.
	Set(key string, value []byte) error
	Close() error
}

// Recoverer is implemented by backends that keep earlier versions of a value.
// Recover moves an undecodable value aside and returns the newest earlier
// version accepted by decode, restoring it as the current value.
type Recoverer interface {
	Recover(key string, decode func([]byte) error) ([]byte, string, error)
}

// OpenBackend builds the backend named by kind rooted at dataDir.
func OpenBackend(kind, dataDir string) (Backend, error) {
	switch kind {
	case BackendFile, "":
		return NewFileBackend(afero.NewOsFs(), dataDir)
	case BackendSQLite:
		return NewSQLiteBackend(filepath.Join(dataDir, "todoapp.db"))
	case BackendMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}

// MemoryBackend keeps values in process memory only.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: map[string][]byte{}}
}

func (m *MemoryBackend) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryBackend) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	m.values[key] = v
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
