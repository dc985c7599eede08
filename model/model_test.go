package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestTaskDecodesBrowserFormat(t *testing.T) {
	raw := `[{"id":"1718000000000abc","text":"Buy milk","completed":true,"dueDate":"2026-03-01","priority":"high"},
{"id":"1718000000001def","text":"Call Bob","completed":false,"dueDate":"","priority":""}]`

	var tasks []Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if !tasks[0].Completed || tasks[0].DueDate != "2026-03-01" || tasks[0].Priority != PriorityHigh {
		t.Fatalf("unexpected first task: %+v", tasks[0])
	}
	if tasks[1].Priority != PriorityNone || tasks[1].DueDate != "" {
		t.Fatalf("unexpected second task: %+v", tasks[1])
	}

	out, err := json.Marshal(tasks[1])
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"id":"1718000000001def","text":"Call Bob","completed":false,"dueDate":"","priority":""}`
	if string(out) != want {
		t.Fatalf("unexpected encoding\nwant=%s\ngot=%s", want, out)
	}
}

func TestValidateTask(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantTag string
		field   string
	}{
		{name: "valid minimal", task: Task{ID: "a", Text: "x"}},
		{name: "valid full", task: Task{ID: "a", Text: "x", DueDate: "2026-12-31", Priority: PriorityLow}},
		{name: "max length", task: Task{ID: "a", Text: strings.Repeat("é", MaxTextLength)}},
		{name: "missing id", task: Task{Text: "x"}, wantTag: "required", field: "ID"},
		{name: "empty text", task: Task{ID: "a"}, wantTag: "required", field: "Text"},
		{name: "too long", task: Task{ID: "a", Text: strings.Repeat("a", MaxTextLength+1)}, wantTag: "max", field: "Text"},
		{name: "bad date", task: Task{ID: "a", Text: "x", DueDate: "31/12/2026"}, wantTag: "datetime", field: "DueDate"},
		{name: "bad priority", task: Task{ID: "a", Text: "x", Priority: "urgent"}, wantTag: "oneof", field: "Priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTask(tt.task)
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("expected valid task, got %v", err)
				}
				return
			}
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) || len(verrs) == 0 {
				t.Fatalf("expected validation errors, got %v", err)
			}
			if verrs[0].Field() != tt.field || verrs[0].Tag() != tt.wantTag {
				t.Fatalf("expected %s/%s, got %s/%s", tt.field, tt.wantTag, verrs[0].Field(), verrs[0].Tag())
			}
		})
	}
}

func TestFilterMatchesPartition(t *testing.T) {
	for _, completed := range []bool{false, true} {
		active := FilterActive.Matches(completed)
		done := FilterCompleted.Matches(completed)
		if active == done {
			t.Fatalf("active and completed must partition tasks (completed=%v)", completed)
		}
		if !FilterAll.Matches(completed) {
			t.Fatalf("all must match every task")
		}
	}
	if Filter("bogus").Valid() {
		t.Fatalf("unknown filter must not be valid")
	}
}

func TestThemeToggle(t *testing.T) {
	if ThemeLight.Toggle() != ThemeDark || ThemeDark.Toggle() != ThemeLight {
		t.Fatalf("toggle must flip between light and dark")
	}
	if Theme("sepia").Valid() {
		t.Fatalf("unknown theme must not be valid")
	}
}
