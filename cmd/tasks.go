package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"todoapp/app"
	"todoapp/model"
	"todoapp/store"
)

// ErrAmbiguousID is returned when a partial id matches more than one task.
var ErrAmbiguousID = errors.New("id matches more than one task")

// minPrefixLen keeps short partial ids from resolving by accident.
const minPrefixLen = 4

type sessionRunner func(run func(cmd *cobra.Command, args []string, svc *app.Service) error) func(*cobra.Command, []string) error

func newAddCmd(with sessionRunner) *cobra.Command {
	var due, priority string
	c := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a task to the top of the list",
		Example: `  todoapp add Buy milk
  todoapp add "Call Bob" --due 2026-03-01 --priority high`,
		Args: cobra.MinimumNArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			task, err := svc.Create(strings.Join(args, " "), due, model.Priority(priority))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s\n", shortID(task.ID), task.Text)
			return nil
		}),
	}
	c.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	c.Flags().StringVarP(&priority, "priority", "p", "", "priority: low, medium or high")
	return c
}

func newListCmd(with sessionRunner) *cobra.Command {
	var filter string
	c := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks in order",
		Args:    cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			f := model.Filter(filter)
			if !f.Valid() {
				return fmt.Errorf("%w: %q (want all, active or completed)", app.ErrInvalidFilter, filter)
			}
			printTasks(cmd.OutOrStdout(), svc, f)
			return nil
		}),
	}
	c.Flags().StringVarP(&filter, "filter", "f", string(model.FilterAll), "all, active or completed")
	return c
}

func newEditCmd(with sessionRunner) *cobra.Command {
	var due, priority string
	c := &cobra.Command{
		Use:   "edit ID TEXT...",
		Short: "Replace the text of a task, and optionally its due date and priority",
		Example: `  todoapp edit 1a2b3c4d Call Bob tonight
  todoapp edit 1a2b3c4d "Call Bob" --due ""   # clear the due date`,
		Args: cobra.MinimumNArgs(2),
		RunE: with(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			id, err := resolveID(svc, args[0])
			if err != nil {
				return err
			}
			if err := svc.SetEditing(id); err != nil {
				return err
			}
			target, ok := svc.EditTarget()
			if !ok {
				return fmt.Errorf("%w: %q", app.ErrTaskNotFound, id)
			}

			// Fields without a flag keep their current value.
			newDue, newPriority := target.DueDate, target.Priority
			if cmd.Flags().Changed("due") {
				newDue = due
			}
			if cmd.Flags().Changed("priority") {
				newPriority = model.Priority(priority)
			}
			task, err := svc.Submit(strings.Join(args[1:], " "), newDue, newPriority)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %s\n", shortID(task.ID), task.Text)
			return nil
		}),
	}
	c.Flags().StringVar(&due, "due", "", "new due date (YYYY-MM-DD); an explicit empty value clears it")
	c.Flags().StringVarP(&priority, "priority", "p", "", "new priority: low, medium or high; an explicit empty value clears it")
	return c
}

func newDoneCmd(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:     "done ID",
		Aliases: []string{"toggle"},
		Short:   "Toggle a task between open and completed",
		Args:    cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			id, err := resolveID(svc, args[0])
			if err != nil {
				return err
			}
			task, err := svc.ToggleComplete(id)
			if err != nil {
				return err
			}
			state := "reopened"
			if task.Completed {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s %s\n", shortID(task.ID), state)
			return nil
		}),
	}
}

func newDeleteCmd(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			id, err := resolveID(svc, args[0])
			if errors.Is(err, app.ErrTaskNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to delete")
				return nil
			}
			if err != nil {
				return err
			}
			svc.Delete(id)
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", shortID(id))
			return nil
		}),
	}
}

func newMoveCmd(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "move ID BEFORE_ID",
		Short: "Move a task so it sits right before another",
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			moved, err := resolveID(svc, args[0])
			if err != nil {
				return err
			}
			before, err := resolveID(svc, args[1])
			if err != nil {
				return err
			}
			if err := svc.Reorder(moved, before); err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), svc, model.FilterAll)
			return nil
		}),
	}
}

func newThemeCmd(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the color theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "toggle"},
		RunE: with(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			if len(args) == 1 {
				switch arg := strings.ToLower(args[0]); arg {
				case "toggle":
					svc.ToggleTheme()
				default:
					if err := svc.SetTheme(model.Theme(arg)); err != nil {
						return err
					}
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.Theme())
			return nil
		}),
	}
}

func newExportCmd(with sessionRunner) *cobra.Command {
	var format, filter string
	c := &cobra.Command{
		Use:   "export",
		Short: "Write the task list as json, yaml or toml",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, args []string, svc *app.Service) error {
			f := model.Filter(filter)
			if !f.Valid() {
				return fmt.Errorf("%w: %q", app.ErrInvalidFilter, filter)
			}
			return store.Export(cmd.OutOrStdout(), svc.Tasks(f), store.Format(strings.ToLower(format)))
		}),
	}
	c.Flags().StringVar(&format, "format", string(store.FormatJSON), "json, yaml or toml")
	c.Flags().StringVarP(&filter, "filter", "f", string(model.FilterAll), "all, active or completed")
	return c
}

func printTasks(w io.Writer, svc *app.Service, filter model.Filter) {
	empty := true
	for t := range svc.FilterView(filter) {
		empty = false
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		line := fmt.Sprintf("%s %s %s", shortID(t.ID), check, t.Text)
		if t.Priority != model.PriorityNone {
			line += " !" + string(t.Priority)
		}
		if t.DueDate != "" {
			line += " due " + t.DueDate
		}
		fmt.Fprintln(w, line)
	}
	if empty {
		fmt.Fprintln(w, "No tasks")
	}
}

// resolveID accepts a full id or an unambiguous prefix or suffix of one.
func resolveID(svc *app.Service, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if _, err := svc.Task(ref); err == nil {
		return ref, nil
	}
	if len(ref) < minPrefixLen {
		return "", fmt.Errorf("%w: %q", app.ErrTaskNotFound, ref)
	}

	var match string
	for t := range svc.FilterView(model.FilterAll) {
		if !strings.HasPrefix(t.ID, ref) && !strings.HasSuffix(t.ID, ref) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: %q", ErrAmbiguousID, ref)
		}
		match = t.ID
	}
	if match == "" {
		return "", fmt.Errorf("%w: %q", app.ErrTaskNotFound, ref)
	}
	return match, nil
}

// shortID is the display form of an id. UUIDv7 ids share their leading
// timestamp bits, so the random tail is used.
func shortID(id string) string {
	const n = 8
	if len(id) <= n {
		return id
	}
	return id[len(id)-n:]
}
