package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"todoapp/model"
)

// Store encodes the task collection and theme onto a Backend.
type Store struct {
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Backend returns the underlying key-value store.
func (s *Store) Backend() Backend {
	return s.backend
}

// LoadTasks reads the persisted task collection. A missing key yields an
// empty collection. When the stored value cannot be decoded the backend is
// asked to recover it; the returned status describes what happened.
func (s *Store) LoadTasks() ([]model.Task, string, error) {
	data, ok, err := s.backend.Get(TasksKey)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", TasksKey, err)
	}
	if !ok {
		return []model.Task{}, "", nil
	}

	tasks, err := decodeTasks(data)
	if err == nil {
		return tasks, "", nil
	}

	rec, canRecover := s.backend.(Recoverer)
	if !canRecover {
		return []model.Task{}, fmt.Sprintf("%s was unreadable (%v); starting empty", TasksKey, err), nil
	}
	restored, status, recErr := rec.Recover(TasksKey, func(b []byte) error {
		_, err := decodeTasks(b)
		return err
	})
	if recErr != nil {
		if errors.Is(recErr, errNoValidBackup) {
			return []model.Task{}, status, nil
		}
		return nil, "", recErr
	}
	tasks, err = decodeTasks(restored)
	if err != nil {
		return nil, "", err
	}
	return tasks, status, nil
}

// SaveTasks writes the full ordered collection.
func (s *Store) SaveTasks(tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	if err := s.backend.Set(TasksKey, data); err != nil {
		return fmt.Errorf("write %s: %w", TasksKey, err)
	}
	return nil
}

// LoadTheme returns the persisted theme and whether one was stored.
// Any stored value other than "dark" reads as light.
func (s *Store) LoadTheme() (model.Theme, bool, error) {
	data, ok, err := s.backend.Get(ThemeKey)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", ThemeKey, err)
	}
	if !ok {
		return "", false, nil
	}
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if model.Theme(raw) == model.ThemeDark {
		return model.ThemeDark, true, nil
	}
	return model.ThemeLight, true, nil
}

func (s *Store) SaveTheme(theme model.Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("invalid theme %q", theme)
	}
	if err := s.backend.Set(ThemeKey, []byte(theme)); err != nil {
		return fmt.Errorf("write %s: %w", ThemeKey, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func decodeTasks(data []byte) ([]model.Task, error) {
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}
