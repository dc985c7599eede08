package app

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"todoapp/logging"
	"todoapp/model"
)

// ErrValidation is the parent of every input rejection.
var ErrValidation = errors.New("invalid task")

var (
	ErrInvalidTask     = fmt.Errorf("%w: text must not be empty", ErrValidation)
	ErrTaskTooLong     = fmt.Errorf("%w: text must be at most %d characters", ErrValidation, model.MaxTextLength)
	ErrInvalidDueDate  = fmt.Errorf("%w: due date must be YYYY-MM-DD", ErrValidation)
	ErrInvalidPriority = fmt.Errorf("%w: priority must be low, medium or high", ErrValidation)

	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskCompleted = errors.New("completed tasks cannot be edited")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrInvalidTheme  = errors.New("invalid theme")
)

// Persister receives a full snapshot after every mutation.
type Persister interface {
	SaveTasks(tasks []model.Task) error
	SaveTheme(theme model.Theme) error
}

// Repository is a Persister that can also hydrate a Service at startup.
type Repository interface {
	Persister
	LoadTasks() ([]model.Task, string, error)
	LoadTheme() (model.Theme, bool, error)
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator replaces the UUIDv7 generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithPrefersDark sets the ambient signal used when no theme was persisted.
func WithPrefersDark(prefersDark func() bool) Option {
	return func(s *Service) {
		if prefersDark != nil {
			s.prefersDark = prefersDark
		}
	}
}

// Service is the single owner of the task collection, the view selection and
// the theme. Every mutation is written through the Persister before the call
// returns.
type Service struct {
	mu          sync.Mutex
	state       model.AppState
	persister   Persister
	logger      *log.Logger
	newID       func() string
	prefersDark func() bool
	issued      map[string]struct{}
	persistErr  error
}

// NewService creates an empty service. The theme defaults from the
// prefers-dark signal.
func NewService(persister Persister, opts ...Option) *Service {
	s := &Service{
		state:       model.NewState(),
		persister:   persister,
		logger:      logging.Discard(),
		newID:       newID,
		prefersDark: func() bool { return false },
		issued:      map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persister == nil {
		s.persister = nopPersister{}
	}
	s.state.Theme = s.defaultTheme()
	return s
}

// Open creates a service hydrated from repo. The returned status is non-empty
// when the stored tasks had to be recovered.
func Open(repo Repository, opts ...Option) (*Service, string, error) {
	s := NewService(repo, opts...)

	tasks, status, err := repo.LoadTasks()
	if err != nil {
		return nil, "", fmt.Errorf("load tasks: %w", err)
	}
	if status != "" {
		s.logger.Warn(status)
	}
	s.state.Tasks = s.normalizeTasks(tasks)

	theme, ok, err := repo.LoadTheme()
	if err != nil {
		return nil, "", fmt.Errorf("load theme: %w", err)
	}
	if ok {
		s.state.Theme = theme
	}

	s.logger.Debug("state hydrated", "tasks", len(s.state.Tasks), "theme", s.state.Theme)
	return s, status, nil
}

// State returns a copy of current state.
func (s *Service) State() model.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Tasks = copyTasks(s.state.Tasks)
	return out
}

// Len returns the number of tasks.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Tasks)
}

// Task returns a task by id.
func (s *Service) Task(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}
	return s.state.Tasks[idx], nil
}

// PersistErr returns the error of the latest write, or nil if it succeeded.
func (s *Service) PersistErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistErr
}

// Create prepends a new open task.
func (s *Service) Create(text, dueDate string, priority model.Priority) (model.Task, error) {
	task, err := validateInput(text, dueDate, priority)
	if err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = s.uniqueID()
	tasks := make([]model.Task, 0, len(s.state.Tasks)+1)
	tasks = append(tasks, task)
	s.state.Tasks = append(tasks, s.state.Tasks...)
	s.commitTasks()
	return task, nil
}

// Update replaces text, due date and priority of an existing task.
// Id, completion and position are kept.
func (s *Service) Update(id, text, dueDate string, priority model.Priority) (model.Task, error) {
	input, err := validateInput(text, dueDate, priority)
	if err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, input)
}

func (s *Service) updateLocked(id string, input model.Task) (model.Task, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}
	t := &s.state.Tasks[idx]
	t.Text = input.Text
	t.DueDate = input.DueDate
	t.Priority = input.Priority
	s.commitTasks()
	return *t, nil
}

func (s *Service) ToggleComplete(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}
	s.state.Tasks[idx].Completed = !s.state.Tasks[idx].Completed
	s.commitTasks()
	return s.state.Tasks[idx], nil
}

// Delete removes a task. Deleting an unknown id is a no-op.
func (s *Service) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return
	}
	s.state.Tasks = append(s.state.Tasks[:idx], s.state.Tasks[idx+1:]...)
	if s.state.EditingID == id {
		s.state.EditingID = ""
	}
	s.commitTasks()
}

// Reorder moves movedID so that it sits immediately before beforeID. The
// target index is looked up after the moved task has been taken out, so the
// result is the same whether the task travels up or down.
func (s *Service) Reorder(movedID, beforeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.indexOf(movedID)
	if from < 0 || s.indexOf(beforeID) < 0 {
		return ErrTaskNotFound
	}
	if movedID == beforeID {
		return nil
	}

	moved := s.state.Tasks[from]
	rest := make([]model.Task, 0, len(s.state.Tasks))
	rest = append(rest, s.state.Tasks[:from]...)
	rest = append(rest, s.state.Tasks[from+1:]...)

	to := 0
	for i := range rest {
		if rest[i].ID == beforeID {
			to = i
			break
		}
	}

	out := make([]model.Task, 0, len(s.state.Tasks))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	s.state.Tasks = out
	s.commitTasks()
	return nil
}

// FilterView yields the tasks matching filter in collection order. The
// sequence reads a snapshot taken when it starts, so it never observes a
// half-applied mutation. Unknown filters behave like FilterAll.
func (s *Service) FilterView(filter model.Filter) iter.Seq[model.Task] {
	return func(yield func(model.Task) bool) {
		s.mu.Lock()
		snapshot := copyTasks(s.state.Tasks)
		s.mu.Unlock()

		for _, t := range snapshot {
			if !filter.Matches(t.Completed) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Tasks collects FilterView into a slice.
func (s *Service) Tasks(filter model.Filter) []model.Task {
	out := make([]model.Task, 0)
	for t := range s.FilterView(filter) {
		out = append(out, t)
	}
	return out
}

func (s *Service) SetFilter(filter model.Filter) error {
	if !filter.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFilter, filter)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Filter = filter
	return nil
}

func (s *Service) Filter() model.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Filter
}

// Visible returns the tasks under the current filter.
func (s *Service) Visible() []model.Task {
	return s.Tasks(s.Filter())
}

// SetEditing marks id as the edit target. An empty id clears it.
func (s *Service) SetEditing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.state.EditingID = ""
		return nil
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrTaskNotFound
	}
	if s.state.Tasks[idx].Completed {
		return ErrTaskCompleted
	}
	s.state.EditingID = id
	return nil
}

// EditTarget returns the task being edited, if any.
func (s *Service) EditTarget() (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.EditingID == "" {
		return model.Task{}, false
	}
	idx := s.indexOf(s.state.EditingID)
	if idx < 0 {
		return model.Task{}, false
	}
	return s.state.Tasks[idx], true
}

// Submit applies the task form: it updates the edit target when one is set
// and creates a task otherwise. A successful update ends editing; a rejected
// input leaves both the collection and the editing state untouched.
func (s *Service) Submit(text, dueDate string, priority model.Priority) (model.Task, error) {
	input, err := validateInput(text, dueDate, priority)
	if err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	if s.state.EditingID == "" {
		s.mu.Unlock()
		return s.Create(text, dueDate, priority)
	}
	defer s.mu.Unlock()
	id := s.state.EditingID
	s.state.EditingID = ""
	return s.updateLocked(id, input)
}

func (s *Service) Theme() model.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Theme
}

// SetTheme stores and persists the theme.
func (s *Service) SetTheme(theme model.Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Theme = theme
	s.commitTheme()
	return nil
}

// ToggleTheme flips between light and dark and returns the new theme.
func (s *Service) ToggleTheme() model.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Theme = s.state.Theme.Toggle()
	s.commitTheme()
	return s.state.Theme
}

func (s *Service) commitTasks() {
	err := s.persister.SaveTasks(copyTasks(s.state.Tasks))
	s.recordPersist(err, "tasks", len(s.state.Tasks))
}

func (s *Service) commitTheme() {
	err := s.persister.SaveTheme(s.state.Theme)
	s.recordPersist(err, "theme", s.state.Theme)
}

func (s *Service) recordPersist(err error, what string, detail any) {
	s.persistErr = err
	if err != nil {
		s.logger.Warn("persist failed; keeping in-memory state", "what", what, "err", err)
		return
	}
	s.logger.Debug("persisted", "what", what, "value", detail)
}

func (s *Service) defaultTheme() model.Theme {
	if s.prefersDark() {
		return model.ThemeDark
	}
	return model.ThemeLight
}

func (s *Service) indexOf(id string) int {
	for i := range s.state.Tasks {
		if s.state.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueID never hands out an id seen earlier in this session.
func (s *Service) uniqueID() string {
	for {
		id := s.newID()
		if _, seen := s.issued[id]; seen || id == "" {
			continue
		}
		s.issued[id] = struct{}{}
		return id
	}
}

// normalizeTasks repairs hydrated records: duplicate ids and empty texts are
// dropped, missing ids are generated, overlong texts are cut and bad due
// dates or priorities are cleared.
func (s *Service) normalizeTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		t.Text = strings.TrimSpace(t.Text)
		t.DueDate = strings.TrimSpace(t.DueDate)
		if t.Text == "" {
			s.logger.Warn("dropping stored task without text", "id", t.ID)
			continue
		}
		if t.ID == "" {
			t.ID = s.uniqueID()
		} else if _, seen := s.issued[t.ID]; seen {
			s.logger.Warn("dropping stored task with duplicate id", "id", t.ID)
			continue
		}
		s.issued[t.ID] = struct{}{}

		if utf8.RuneCountInString(t.Text) > model.MaxTextLength {
			t.Text = string([]rune(t.Text)[:model.MaxTextLength])
		}
		if t.DueDate != "" {
			if _, err := time.Parse(model.DueDateLayout, t.DueDate); err != nil {
				t.DueDate = ""
			}
		}
		if !t.Priority.Valid() {
			t.Priority = model.PriorityNone
		}
		out = append(out, t)
	}
	return out
}

// validateInput trims and checks user input. The returned task has no id.
func validateInput(text, dueDate string, priority model.Priority) (model.Task, error) {
	task := model.Task{
		// Placeholder so the id rule does not mask input errors.
		ID:       "pending",
		Text:     strings.TrimSpace(text),
		DueDate:  strings.TrimSpace(dueDate),
		Priority: priority,
	}
	if err := validationError(model.ValidateTask(task)); err != nil {
		return model.Task{}, err
	}
	task.ID = ""
	return task, nil
}

// validationError maps the first failed struct rule onto a sentinel.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Text":
		if fe.Tag() == "max" {
			return ErrTaskTooLong
		}
		return ErrInvalidTask
	case "DueDate":
		return ErrInvalidDueDate
	case "Priority":
		return ErrInvalidPriority
	default:
		return fmt.Errorf("%w: %s failed %s", ErrValidation, fe.Field(), fe.Tag())
	}
}

func copyTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type nopPersister struct{}

func (nopPersister) SaveTasks([]model.Task) error { return nil }
func (nopPersister) SaveTheme(model.Theme) error  { return nil }
