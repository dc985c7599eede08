package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
)

const maxRotatingBackups = 10

// backupTimeLayout sorts lexically and separates writes within one second.
const backupTimeLayout = "20060102-150405.000000000"

// FileBackend stores each key in its own file under a data directory.
// Writes go through a temporary file and an atomic rename. The previous value
// is kept as <key>.bak plus a rotating set of timestamped backups.
type FileBackend struct {
	fs  afero.Fs
	dir string
}

// NewFileBackend creates dir when missing and returns a backend rooted there.
func NewFileBackend(fs afero.Fs, dir string) (*FileBackend, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{fs: fs, dir: dir}, nil
}

// Path returns the file backing key.
func (b *FileBackend) Path(key string) string {
	return filepath.Join(b.dir, key)
}

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	data, err := afero.ReadFile(b.fs, b.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *FileBackend) Set(key string, value []byte) error {
	path := b.Path(key)
	if err := b.backup(path); err != nil {
		return err
	}

	tmp, err := afero.TempFile(b.fs, b.dir, key+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = b.fs.Remove(tmpName)
	}()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return b.fs.Rename(tmpName, path)
}

func (b *FileBackend) Close() error { return nil }

// Recover implements Recoverer.
func (b *FileBackend) Recover(key string, decode func([]byte) error) ([]byte, string, error) {
	path := b.Path(key)
	corruptPath, err := b.moveCorruptFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("move corrupt file: %w", err)
	}

	data, backupPath, err := b.latestValidBackup(path, decode)
	if err != nil {
		if !errors.Is(err, errNoValidBackup) {
			return nil, "", fmt.Errorf("inspect backups: %w", err)
		}
		msg := fmt.Sprintf("%s was corrupt and no valid backup exists; starting empty", key)
		if corruptPath != "" {
			msg += fmt.Sprintf(" (bad file moved to %s)", filepath.Base(corruptPath))
		}
		return nil, msg, errNoValidBackup
	}

	if err := afero.WriteFile(b.fs, path, data, 0o644); err != nil {
		return nil, "", fmt.Errorf("restore backup: %w", err)
	}
	msg := fmt.Sprintf("%s recovered from %s", key, filepath.Base(backupPath))
	if corruptPath != "" {
		msg += fmt.Sprintf(" (bad file moved to %s)", filepath.Base(corruptPath))
	}
	return data, msg, nil
}

func (b *FileBackend) backup(path string) error {
	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := afero.WriteFile(b.fs, path+".bak", data, 0o644); err != nil {
		return err
	}

	timestamp := time.Now().UTC().Format(backupTimeLayout)
	rotatingPath := fmt.Sprintf("%s.bak.%s", path, timestamp)
	if err := afero.WriteFile(b.fs, rotatingPath, data, 0o644); err != nil {
		return err
	}

	return b.pruneRotatingBackups(path)
}

func (b *FileBackend) rotatingBackups(path string) ([]string, error) {
	files, err := afero.Glob(b.fs, path+".bak.*")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (b *FileBackend) pruneRotatingBackups(path string) error {
	files, err := b.rotatingBackups(path)
	if err != nil {
		return err
	}
	if len(files) <= maxRotatingBackups {
		return nil
	}

	for _, old := range files[:len(files)-maxRotatingBackups] {
		if err := b.fs.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// latestValidBackup tries .bak first, then rotating backups newest first.
func (b *FileBackend) latestValidBackup(path string, decode func([]byte) error) ([]byte, string, error) {
	candidates := make([]string, 0, maxRotatingBackups+1)
	if _, err := b.fs.Stat(path + ".bak"); err == nil {
		candidates = append(candidates, path+".bak")
	}
	rotating, err := b.rotatingBackups(path)
	if err != nil {
		return nil, "", err
	}
	for i := len(rotating) - 1; i >= 0; i-- {
		candidates = append(candidates, rotating[i])
	}

	for _, candidate := range candidates {
		data, err := afero.ReadFile(b.fs, candidate)
		if err != nil {
			continue
		}
		if err := decode(data); err != nil {
			continue
		}
		return data, candidate, nil
	}
	return nil, "", errNoValidBackup
}

func (b *FileBackend) moveCorruptFile(path string) (string, error) {
	if _, err := b.fs.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	timestamp := time.Now().UTC().Format(backupTimeLayout)
	corruptPath := fmt.Sprintf("%s.corrupt-%s", path, timestamp)
	for n := 1; ; n++ {
		_, err := b.fs.Stat(corruptPath)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return "", err
		}
		corruptPath = fmt.Sprintf("%s.corrupt-%s-%d", path, timestamp, n)
	}
	if err := b.fs.Rename(path, corruptPath); err != nil {
		return "", err
	}
	return corruptPath, nil
}
