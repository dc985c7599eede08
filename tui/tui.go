package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"todoapp/app"
	"todoapp/model"
)

type uiMode int

const (
	modeNormal uiMode = iota
	modeForm
	modeConfirmDelete
)

const (
	fieldText = iota
	fieldDue
	fieldPriority
	fieldCount
)

var filterOrder = []model.Filter{model.FilterAll, model.FilterActive, model.FilterCompleted}

type Model struct {
	svc *app.Service

	mode   uiMode
	cursor int

	form      []textinput.Model
	formFocus int

	confirmID   string
	confirmName string

	showHelp bool

	status    string
	statusErr bool

	width  int
	height int

	now func() time.Time
}

func NewModel(svc *app.Service, startupStatus string) *Model {
	status := strings.TrimSpace(startupStatus)
	isErr := status != ""
	if status == "" {
		status = "Ready"
	}

	m := &Model{
		svc:       svc,
		mode:      modeNormal,
		status:    status,
		statusErr: isErr,
		now:       time.Now,
	}
	m.form = newForm()
	m.ensureSelection()

	if startupStatus == "" && svc.Len() == 0 {
		m.setStatus("Welcome. Press 'a' to add your first task.", false)
	}
	return m
}

// Run starts the interactive program on the alternate screen.
func Run(svc *app.Service, startupStatus string) error {
	_, err := tea.NewProgram(NewModel(svc, startupStatus), tea.WithAltScreen()).Run()
	return err
}

func newForm() []textinput.Model {
	form := make([]textinput.Model, fieldCount)
	form[fieldText] = newFormInput("Task: ", "what needs to be done?", model.MaxTextLength)
	form[fieldDue] = newFormInput("Due: ", "YYYY-MM-DD (optional)", len(model.DueDateLayout))
	form[fieldPriority] = newFormInput("Priority: ", "low | medium | high (optional)", 8)
	return form
}

func newFormInput(prompt, placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	return in
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch m.mode {
		case modeForm:
			return m, m.updateFormMode(msg)
		case modeConfirmDelete:
			m.updateConfirmMode(msg)
		default:
			if quit := m.updateNormalMode(msg); quit {
				return m, tea.Quit
			}
			if m.mode == modeForm {
				return m, m.focusField(m.formFocus)
			}
		}
	}
	return m, nil
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "ctrl+c", "q":
		return true
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "a":
		m.startAdd()
	case "e", "enter":
		m.startEdit()
	case "x", " ":
		m.toggleSelected()
	case "d":
		m.startDeleteConfirm()
	case "J":
		m.moveSelected(1)
	case "K":
		m.moveSelected(-1)
	case "f":
		m.cycleFilter()
	case "t":
		theme := m.svc.ToggleTheme()
		m.persist(fmt.Sprintf("Theme: %s", theme))
	case "?":
		m.showHelp = !m.showHelp
		if m.showHelp {
			m.setStatus("Shortcuts open (press ? or Esc to close)", false)
		} else {
			m.setStatus("Shortcuts hidden", false)
		}
	case "esc":
		if m.showHelp {
			m.showHelp = false
			m.setStatus("Shortcuts hidden", false)
		}
	}

	m.ensureSelection()
	return false
}

func (m *Model) updateFormMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.closeForm()
		m.setStatus("Cancelled", false)
		return nil
	case "enter":
		m.submitForm()
		return nil
	case "tab", "down":
		return m.focusField((m.formFocus + 1) % fieldCount)
	case "shift+tab", "up":
		return m.focusField((m.formFocus + fieldCount - 1) % fieldCount)
	}

	var cmd tea.Cmd
	m.form[m.formFocus], cmd = m.form[m.formFocus].Update(msg)
	return cmd
}

func (m *Model) updateConfirmMode(msg tea.KeyMsg) {
	switch strings.ToLower(msg.String()) {
	case "y":
		m.confirmDelete()
	case "n", "esc", "enter":
		m.confirmID = ""
		m.confirmName = ""
		m.mode = modeNormal
		m.setStatus("Cancelled", false)
	}
}

func (m *Model) focusField(idx int) tea.Cmd {
	m.formFocus = clamp(idx, 0, fieldCount-1)
	for i := range m.form {
		m.form[i].Blur()
	}
	return m.form[m.formFocus].Focus()
}

func (m *Model) startAdd() {
	if err := m.svc.SetEditing(""); err != nil {
		m.setStatus(errorText(err), true)
		return
	}
	m.form = newForm()
	m.formFocus = fieldText
	m.mode = modeForm
	m.setStatus("New task", false)
}

func (m *Model) startEdit() {
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	if err := m.svc.SetEditing(task.ID); err != nil {
		m.setStatus(errorText(err), true)
		return
	}
	target, ok := m.svc.EditTarget()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}

	m.form = newForm()
	m.form[fieldText].SetValue(target.Text)
	m.form[fieldDue].SetValue(target.DueDate)
	m.form[fieldPriority].SetValue(string(target.Priority))
	for i := range m.form {
		m.form[i].CursorEnd()
	}
	m.formFocus = fieldText
	m.mode = modeForm
	m.setStatus("Edit task", false)
}

func (m *Model) submitForm() {
	_, editing := m.svc.EditTarget()
	task, err := m.svc.Submit(
		m.form[fieldText].Value(),
		m.form[fieldDue].Value(),
		parsePriority(m.form[fieldPriority].Value()),
	)
	if err != nil {
		m.setStatus(errorText(err), true)
		return
	}

	m.mode = modeNormal
	m.form = newForm()
	m.cursor = m.indexOfTask(task.ID)
	if editing {
		m.persist("Task updated")
		return
	}
	m.persist("Task added")
}

func (m *Model) closeForm() {
	_ = m.svc.SetEditing("")
	for i := range m.form {
		m.form[i].Blur()
	}
	m.mode = modeNormal
}

func (m *Model) moveCursor(delta int) {
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(tasks)-1)
}

func (m *Model) toggleSelected() {
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	updated, err := m.svc.ToggleComplete(task.ID)
	if err != nil {
		m.setStatus(errorText(err), true)
		return
	}
	if updated.Completed {
		m.persist("Task completed")
		return
	}
	m.persist("Task reopened")
}

// moveSelected shifts the selected task one slot within the visible order.
// Moving down is expressed as moving the next visible task in front of the
// selected one, so the same rule covers the last position.
func (m *Model) moveSelected(delta int) {
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		m.setStatus("No task selected", true)
		return
	}
	i := clamp(m.cursor, 0, len(tasks)-1)

	var err error
	switch {
	case delta < 0 && i == 0:
		m.setStatus("Task is already at the top", false)
		return
	case delta > 0 && i == len(tasks)-1:
		m.setStatus("Task is already at the bottom", false)
		return
	case delta < 0:
		err = m.svc.Reorder(tasks[i].ID, tasks[i-1].ID)
	default:
		err = m.svc.Reorder(tasks[i+1].ID, tasks[i].ID)
	}
	if err != nil {
		m.setStatus(errorText(err), true)
		return
	}

	m.cursor = i + delta
	m.ensureSelection()
	m.persist("Task order updated")
}

func (m *Model) cycleFilter() {
	current := m.svc.Filter()
	next := model.FilterAll
	for i, f := range filterOrder {
		if f == current {
			next = filterOrder[(i+1)%len(filterOrder)]
			break
		}
	}
	if err := m.svc.SetFilter(next); err != nil {
		m.setStatus(errorText(err), true)
		return
	}
	m.cursor = 0
	m.setStatus("Filter: "+filterLabel(next), false)
}

func (m *Model) startDeleteConfirm() {
	task, ok := m.selectedTask()
	if !ok {
		m.setStatus("No task selected", true)
		return
	}
	m.mode = modeConfirmDelete
	m.confirmID = task.ID
	m.confirmName = task.Text
}

func (m *Model) confirmDelete() {
	m.svc.Delete(m.confirmID)
	m.mode = modeNormal
	m.confirmID = ""
	m.confirmName = ""
	m.ensureSelection()
	m.persist("Task deleted")
}

// persist reports the outcome of the write the service already attempted.
func (m *Model) persist(success string) {
	if err := m.svc.PersistErr(); err != nil {
		m.setStatus("Change applied, but saving to disk failed: "+err.Error(), true)
		return
	}
	m.ensureSelection()
	m.setStatus(success, false)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) ensureSelection() {
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = clamp(m.cursor, 0, len(tasks)-1)
}

func (m *Model) visibleTasks() []model.Task {
	return m.svc.Visible()
}

func (m *Model) selectedTask() (model.Task, bool) {
	tasks := m.visibleTasks()
	if len(tasks) == 0 {
		return model.Task{}, false
	}
	if m.cursor < 0 || m.cursor >= len(tasks) {
		m.cursor = 0
	}
	return tasks[m.cursor], true
}

func (m *Model) indexOfTask(taskID string) int {
	tasks := m.visibleTasks()
	for i, t := range tasks {
		if t.ID == taskID {
			return i
		}
	}
	if len(tasks) == 0 {
		return 0
	}
	return len(tasks) - 1
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	p := paletteFor(m.svc.Theme())
	filter := m.svc.Filter()
	title := lipgloss.NewStyle().Bold(true).Foreground(p.title).Render("todoapp")
	summary := fmt.Sprintf("filter: %s • theme: %s", filterLabel(filter), m.svc.Theme())
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		lipgloss.NewStyle().Foreground(p.muted).Render("  "+summary),
	)

	viewW := m.viewportWidth()
	const paneGap = 1
	const rightInset = 6
	outerPaneW := viewW - rightInset
	if outerPaneW < 40 {
		outerPaneW = viewW
	}
	innerPaneW := outerPaneW - 2
	if innerPaneW < 20 {
		innerPaneW = outerPaneW
	}

	panelH := m.height - 6
	if m.mode == modeForm {
		panelH -= fieldCount
	}
	if panelH < 8 {
		panelH = 8
	}
	innerPaneH := panelH - 2
	if innerPaneH < 6 {
		innerPaneH = 6
	}

	leftW, rightW := m.paneWidths(innerPaneW, paneGap)
	split := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderFiltersPanel(p, leftW, innerPaneH),
		lipgloss.NewStyle().Foreground(p.border).Render("│"),
		m.renderTasksPanel(p, rightW, innerPaneH),
	)

	frameColor := p.border
	if m.mode == modeNormal {
		frameColor = p.accent
	}
	panes := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frameColor).
		Width(outerPaneW).
		Height(panelH).
		Render(split)

	if outerPaneW < viewW {
		panes = lipgloss.JoinHorizontal(lipgloss.Top, panes, strings.Repeat(" ", viewW-outerPaneW))
	}

	statusStyle := lipgloss.NewStyle().Foreground(p.ok)
	if m.statusErr {
		statusStyle = lipgloss.NewStyle().Foreground(p.err)
	}
	rightHint := "? shortcuts"
	if m.showHelp {
		rightHint = "Esc/? close shortcuts"
	}
	footerLine := m.renderFooter(p, m.status, statusStyle, rightHint)

	if m.showHelp {
		popupW := viewW - 8
		if popupW > 72 {
			popupW = 72
		}
		if popupW < 40 {
			popupW = viewW - 2
		}
		panes = lipgloss.Place(viewW, panelH, lipgloss.Center, lipgloss.Center, m.renderHelpOverlay(p, popupW))
	}

	parts := []string{header, panes, footerLine}
	if prompt := m.renderPrompt(p, viewW); prompt != "" && !m.showHelp {
		parts = append(parts, prompt)
	}
	return strings.Join(parts, "\n")
}

func (m *Model) renderPrompt(p palette, width int) string {
	switch m.mode {
	case modeForm:
		heading := "New task"
		if _, editing := m.svc.EditTarget(); editing {
			heading = "Edit task"
		}
		lines := []string{
			lipgloss.NewStyle().Bold(true).Foreground(p.prompt).Render(heading + "  (Tab next field • Enter save • Esc cancel)"),
		}
		for i := range m.form {
			lines = append(lines, m.form[i].View())
		}
		return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
	case modeConfirmDelete:
		line := fmt.Sprintf("Delete task \"%s\"? [y/N]", truncateRunes(m.confirmName, 60))
		return lipgloss.NewStyle().Foreground(p.prompt).Width(width).Render(line)
	}
	return ""
}

const (
	minViewsWidth = 14
	minTasksWidth = 20
)

// viewportWidth leaves the last column free so the right border does not wrap.
func (m *Model) viewportWidth() int {
	return max(m.width-1, 1)
}

// paneWidths sizes the views pane to its widest label, capped at a third of
// total, and gives the rest to the tasks pane.
func (m *Model) paneWidths(total, gap int) (int, int) {
	gap = max(gap, 0)
	left := clamp(m.viewsPaneWidth(), minViewsWidth, max(minViewsWidth, total/3))
	right := total - left - gap
	if right < minTasksWidth {
		right = minTasksWidth
		left = max(total-right-gap, 10)
	}
	return left, right
}

func (m *Model) viewsPaneWidth() int {
	widest := 0
	for _, f := range filterOrder {
		widest = max(widest, lipgloss.Width(viewLine(f, true, len(m.svc.Tasks(f)))))
	}
	return widest + 1
}

func viewLine(f model.Filter, current bool, count int) string {
	cursor := " "
	if current {
		cursor = "▸"
	}
	return fmt.Sprintf("%s %s (%d)", cursor, filterLabel(f), count)
}

// renderFooter puts the status on the left and the hint flush right, cutting
// the status when both do not fit.
func (m *Model) renderFooter(p palette, statusText string, statusStyle lipgloss.Style, rightHint string) string {
	width := m.viewportWidth()
	hint := lipgloss.NewStyle().Foreground(p.muted).Render(strings.TrimSpace(rightHint))

	status := strings.TrimSpace(statusText)
	if status == "" {
		status = "Ready"
	}
	room := max(width-lipgloss.Width(hint)-1, 8)
	left := statusStyle.Render(truncateRunes(status, room))

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(hint), 1)
	return left + strings.Repeat(" ", gap) + hint
}

func (m *Model) renderHelpOverlay(p palette, width int) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(p.title).Render("Shortcuts")
	section := lipgloss.NewStyle().Foreground(p.accent).Bold(true)
	line := lipgloss.NewStyle().Foreground(p.text)

	rows := []string{
		title,
		"",
		section.Render("Tasks"),
		line.Render("  a add • e/Enter edit • x/Space complete or reopen"),
		line.Render("  d delete • J/K move down/up"),
		"",
		section.Render("View"),
		line.Render("  j/k navigate • f cycle filter • t toggle theme"),
		line.Render("  ? shortcuts • q quit"),
		"",
		section.Render("Form"),
		line.Render("  Tab/Shift+Tab switch field • Enter save • Esc cancel"),
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.border).
		Padding(1, 2)

	return style.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) renderFiltersPanel(p palette, width, height int) string {
	current := m.svc.Filter()
	lines := make([]string, 0, len(filterOrder)+2)
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(p.title).Render("Views"))
	for _, f := range filterOrder {
		style := lipgloss.NewStyle().Foreground(p.text)
		if f == current {
			style = style.Bold(true).Foreground(p.selected)
		}
		lines = append(lines, style.Render(viewLine(f, f == current, len(m.svc.Tasks(f)))))
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTasksPanel(p palette, width, height int) string {
	tasks := m.visibleTasks()
	muted := lipgloss.NewStyle().Foreground(p.muted)

	lines := make([]string, 0, len(tasks)+2)
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(p.title).Render("Tasks — "+filterLabel(m.svc.Filter())))

	if len(tasks) == 0 {
		if m.svc.Len() == 0 {
			lines = append(lines, muted.Render("No tasks yet. Press 'a' to add one."))
		} else {
			lines = append(lines, muted.Render("No tasks for the current filter (use 'f')."))
		}
		return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
	}

	today := m.now().Format(model.DueDateLayout)
	for i, t := range tasks {
		cursor := " "
		if i == m.cursor {
			cursor = "▸"
		}
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}

		textStyle := lipgloss.NewStyle().Foreground(p.text)
		if t.Completed {
			textStyle = textStyle.Faint(true)
		}
		if i == m.cursor {
			textStyle = textStyle.Bold(true).Foreground(p.selected)
		}

		segments := []string{
			textStyle.Render(cursor + " " + check + " "),
			priorityIndicator(p, t.Priority) + " ",
			textStyle.Render(t.Text),
		}
		if t.DueDate != "" {
			dueStyle := muted
			// ISO dates compare lexically.
			if !t.Completed && t.DueDate < today {
				dueStyle = lipgloss.NewStyle().Foreground(p.err)
			}
			segments = append(segments, dueStyle.Render("  due "+t.DueDate))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left, segments...))
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func priorityIndicator(p palette, pr model.Priority) string {
	switch pr {
	case model.PriorityLow:
		return lipgloss.NewStyle().Foreground(p.low).Render("●")
	case model.PriorityMedium:
		return lipgloss.NewStyle().Foreground(p.medium).Render("●")
	case model.PriorityHigh:
		return lipgloss.NewStyle().Foreground(p.high).Render("●")
	default:
		return lipgloss.NewStyle().Foreground(p.border).Render("•")
	}
}

func filterLabel(f model.Filter) string {
	switch f {
	case model.FilterActive:
		return "active"
	case model.FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

func parsePriority(s string) model.Priority {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "-", "none":
		return model.PriorityNone
	default:
		return model.Priority(v)
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, app.ErrInvalidTask):
		return "Task text must not be empty"
	case errors.Is(err, app.ErrTaskTooLong):
		return fmt.Sprintf("Task text must be at most %d characters", model.MaxTextLength)
	case errors.Is(err, app.ErrInvalidDueDate):
		return "Due date must look like 2026-03-01"
	case errors.Is(err, app.ErrInvalidPriority):
		return "Priority must be low, medium or high"
	case errors.Is(err, app.ErrTaskCompleted):
		return "Completed tasks cannot be edited; reopen it first"
	case errors.Is(err, app.ErrTaskNotFound):
		return "Task no longer exists"
	default:
		return "Error: " + err.Error()
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
