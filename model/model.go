package model

import (
	"github.com/go-playground/validator/v10"
)

// MaxTextLength is the longest task text accepted, counted in runes after trimming.
const MaxTextLength = 120

// DueDateLayout is the ISO calendar date format used for due dates.
const DueDateLayout = "2006-01-02"

// Filter represents how tasks should be shown.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

// Valid reports whether f is one of the known filters.
func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterActive, FilterCompleted:
		return true
	}
	return false
}

// Matches reports whether a task with the given completion flag is part of the view.
func (f Filter) Matches(completed bool) bool {
	switch f {
	case FilterActive:
		return !completed
	case FilterCompleted:
		return completed
	default:
		return true
	}
}

// Priority is a task priority label. The empty string means no priority.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Theme is the persisted color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Task is an individual todo item. Field names follow the persisted format.
type Task struct {
	ID        string   `json:"id" yaml:"id" toml:"id" validate:"required"`
	Text      string   `json:"text" yaml:"text" toml:"text" validate:"required,max=120"`
	Completed bool     `json:"completed" yaml:"completed" toml:"completed"`
	DueDate   string   `json:"dueDate" yaml:"dueDate,omitempty" toml:"dueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Priority  Priority `json:"priority" yaml:"priority,omitempty" toml:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
}

// AppState is the full in-memory state. Only Tasks and Theme are persisted.
type AppState struct {
	Tasks     []Task
	Filter    Filter
	EditingID string
	Theme     Theme
}

// NewState returns an initialized empty state.
func NewState() AppState {
	return AppState{
		Tasks:  []Task{},
		Filter: FilterAll,
		Theme:  ThemeLight,
	}
}

var validate = validator.New()

// ValidateTask checks a task against its struct tags.
// The returned error is a validator.ValidationErrors when a rule fails.
func ValidateTask(t Task) error {
	return validate.Struct(t)
}
