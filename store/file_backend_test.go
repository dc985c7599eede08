package store

import (
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/afero"

	"todoapp/model"
)

const testDir = "/data"

func newMemFileBackend(t *testing.T) (*FileBackend, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	b, err := NewFileBackend(fs, testDir)
	if err != nil {
		t.Fatalf("new file backend failed: %v", err)
	}
	return b, fs
}

func sampleTasks(label string) []model.Task {
	return []model.Task{
		{ID: "task-" + label, Text: "Task-" + label, Priority: model.PriorityMedium, DueDate: "2026-02-19"},
		{ID: "done-" + label, Text: "Done-" + label, Completed: true},
	}
}

func TestFileBackendGetMissingKey(t *testing.T) {
	b, _ := newMemFileBackend(t)

	data, ok, err := b.Get(TasksKey)
	if err != nil {
		t.Fatalf("get missing key failed: %v", err)
	}
	if ok || data != nil {
		t.Fatalf("expected missing key, got ok=%v data=%q", ok, data)
	}
}

func TestFileBackendSetCreatesBackupOfPreviousValue(t *testing.T) {
	b, fs := newMemFileBackend(t)

	if err := b.Set(ThemeKey, []byte("light")); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if err := b.Set(ThemeKey, []byte("dark")); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	got, ok, err := b.Get(ThemeKey)
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if string(got) != "dark" {
		t.Fatalf("expected latest value dark, got %q", got)
	}

	backup, err := afero.ReadFile(fs, b.Path(ThemeKey)+".bak")
	if err != nil {
		t.Fatalf("read backup failed: %v", err)
	}
	if string(backup) != "light" {
		t.Fatalf("expected backup to hold previous value, got %q", backup)
	}

	leftovers, err := afero.Glob(fs, filepath.Join(testDir, ThemeKey+".tmp-*"))
	if err != nil {
		t.Fatalf("glob temp files failed: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected temp files to be cleaned up, found %v", leftovers)
	}
}

func TestFileBackendRotatingBackupsArePruned(t *testing.T) {
	b, fs := newMemFileBackend(t)

	for i := 0; i < 15; i++ {
		if err := b.Set(TasksKey, []byte(fmt.Sprintf("[%d]", i))); err != nil {
			t.Fatalf("set %d failed: %v", i, err)
		}
		time.Sleep(1 * time.Millisecond)
	}

	files, err := afero.Glob(fs, b.Path(TasksKey)+".bak.*")
	if err != nil {
		t.Fatalf("glob rotating backups failed: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected rotating backups, found none")
	}
	if len(files) > maxRotatingBackups {
		t.Fatalf("expected at most %d rotating backups, got %d", maxRotatingBackups, len(files))
	}
}

func TestLoadTasksRecoversFromBackup(t *testing.T) {
	b, fs := newMemFileBackend(t)
	s := New(b)
	v2 := sampleTasks("v2")

	for _, tasks := range [][]model.Task{sampleTasks("v1"), v2, sampleTasks("v3")} {
		if err := s.SaveTasks(tasks); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	if err := afero.WriteFile(fs, b.Path(TasksKey), []byte("{invalid"), 0o644); err != nil {
		t.Fatalf("corrupt write failed: %v", err)
	}

	recovered, status, err := s.LoadTasks()
	if err != nil {
		t.Fatalf("load with recovery failed: %v", err)
	}
	if status == "" {
		t.Fatalf("expected recovery status message, got empty")
	}
	if !reflect.DeepEqual(v2, recovered) {
		t.Fatalf("expected recovery from latest backup (v2), got %+v", recovered)
	}

	persisted, _, err := s.LoadTasks()
	if err != nil {
		t.Fatalf("reload recovered state failed: %v", err)
	}
	if !reflect.DeepEqual(v2, persisted) {
		t.Fatalf("expected recovered value to be written back, got %+v", persisted)
	}

	corruptFiles, err := afero.Glob(fs, b.Path(TasksKey)+".corrupt-*")
	if err != nil {
		t.Fatalf("glob corrupt files failed: %v", err)
	}
	if len(corruptFiles) != 1 {
		t.Fatalf("expected exactly one moved corrupt file, got %d", len(corruptFiles))
	}
}

func TestRepeatedRecoveryKeepsEveryCorruptFile(t *testing.T) {
	b, fs := newMemFileBackend(t)
	s := New(b)
	for _, tasks := range [][]model.Task{sampleTasks("v1"), sampleTasks("v2")} {
		if err := s.SaveTasks(tasks); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		if err := afero.WriteFile(fs, b.Path(TasksKey), []byte("{invalid"), 0o644); err != nil {
			t.Fatalf("corrupt write failed: %v", err)
		}
		if _, _, err := s.LoadTasks(); err != nil {
			t.Fatalf("load with recovery failed: %v", err)
		}
	}

	corruptFiles, err := afero.Glob(fs, b.Path(TasksKey)+".corrupt-*")
	if err != nil {
		t.Fatalf("glob corrupt files failed: %v", err)
	}
	if len(corruptFiles) != 2 {
		t.Fatalf("expected both corrupt files to be kept, got %v", corruptFiles)
	}
}

func TestLoadTasksWithoutBackupStartsEmpty(t *testing.T) {
	b, fs := newMemFileBackend(t)
	if err := afero.WriteFile(fs, b.Path(TasksKey), []byte("{bad json"), 0o644); err != nil {
		t.Fatalf("write corrupt state failed: %v", err)
	}

	tasks, status, err := New(b).LoadTasks()
	if err != nil {
		t.Fatalf("load with recovery failed: %v", err)
	}
	if status == "" {
		t.Fatalf("expected recovery status message")
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty collection when no valid backup, got %+v", tasks)
	}
	if _, ok, _ := b.Get(TasksKey); ok {
		t.Fatalf("expected corrupt file to be moved aside")
	}
}
