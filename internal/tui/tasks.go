package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lockstep/internal/session"
	"github.com/sadopc/lockstep/internal/store"
	"github.com/sadopc/lockstep/internal/timeutil"
)

// tasksModel is the task planning view: a cursor list over the current
// session's tasks with an add/edit form. Tasks at or before the cursor of
// a running session render locked and refuse edits.
type tasksModel struct {
	store  *store.Store
	width  int
	height int

	cursor int

	form       *huh.Form
	formActive bool
	editingID  string

	formName     string
	formDuration string
	formNotes    string
}

func newTasksModel(s *store.Store) tasksModel {
	return tasksModel{store: s}
}

func (t *tasksModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

func (t tasksModel) capturing() bool {
	return t.formActive
}

func (t *tasksModel) buildForm(title string) {
	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&t.formName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Duration (hours)").
				Description("Decimal hours, e.g. 1.5").
				Value(&t.formDuration).
				Validate(func(s string) error {
					v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil {
						return errors.New("enter a number")
					}
					if v <= 0 {
						return errors.New("duration must be positive")
					}
					return nil
				}),
			huh.NewText().
				Title("Notes").
				Lines(2).
				Value(&t.formNotes),
		).Title(title),
	).WithShowHelp(false)
	t.formActive = true
}

func (t tasksModel) update(msg tea.Msg, snap store.Snapshot) (tasksModel, tea.Cmd) {
	if t.formActive {
		return t.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return t, nil
	}

	sess := snap.CurrentSession
	var count int
	if sess != nil {
		count = len(sess.Tasks)
	}

	switch {
	case key.Matches(keyMsg, keys.Up):
		if t.cursor > 0 {
			t.cursor--
		}

	case key.Matches(keyMsg, keys.Down):
		if t.cursor < count-1 {
			t.cursor++
		}

	case key.Matches(keyMsg, keys.New):
		t.formName = ""
		t.formDuration = ""
		t.formNotes = ""
		t.editingID = ""
		t.buildForm("New Task")
		return t, t.form.Init()

	case key.Matches(keyMsg, keys.Enter):
		if sess == nil || t.cursor >= count {
			return t, nil
		}
		task := sess.Tasks[t.cursor]
		if locked(sess, t.cursor) {
			return t, status("That task is locked while the session runs", true)
		}
		t.formName = task.Name
		t.formDuration = strconv.FormatFloat(task.DurationHours, 'f', -1, 64)
		t.formNotes = task.Notes
		t.editingID = task.ID
		t.buildForm("Edit Task")
		return t, t.form.Init()

	case key.Matches(keyMsg, keys.Delete):
		if sess == nil || t.cursor >= count {
			return t, nil
		}
		if !t.store.RemoveTask(sess.Tasks[t.cursor].ID) {
			return t, status("That task is locked while the session runs", true)
		}
		if t.cursor > 0 && t.cursor >= count-1 {
			t.cursor--
		}
		return t, status("Task removed", false)

	case key.Matches(keyMsg, keys.MoveUp):
		if t.cursor > 0 && t.store.ReorderTasks(t.cursor, t.cursor-1) {
			t.cursor--
		}

	case key.Matches(keyMsg, keys.MoveDown):
		if t.cursor < count-1 && t.store.ReorderTasks(t.cursor, t.cursor+1) {
			t.cursor++
		}
	}
	return t, nil
}

func (t tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, keys.Back) {
		t.formActive = false
		t.form = nil
		return t, nil
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}

	if t.form.State == huh.StateCompleted {
		t.formActive = false
		hours, _ := strconv.ParseFloat(strings.TrimSpace(t.formDuration), 64)
		name := strings.TrimSpace(t.formName)
		notes := strings.TrimSpace(t.formNotes)

		if t.editingID == "" {
			if err := t.store.AddTask(name, hours, notes); err != nil {
				return t, status(err.Error(), true)
			}
			return t, status("Task added", false)
		}

		patch := session.TaskPatch{
			Name:          &name,
			DurationHours: &hours,
			Notes:         &notes,
		}
		applied, err := t.store.UpdateTask(t.editingID, patch)
		if err != nil {
			return t, status(err.Error(), true)
		}
		if !applied {
			return t, status("That task is locked while the session runs", true)
		}
		return t, status("Task updated", false)
	}
	return t, cmd
}

// locked reports whether the task at idx is frozen: at or before the
// cursor of a running or paused session.
func locked(sess *session.Session, idx int) bool {
	if sess == nil {
		return false
	}
	switch sess.State {
	case session.StateRunning, session.StatePaused:
		return idx <= sess.CurrentTaskIndex
	}
	return false
}

func (t tasksModel) view(snap store.Snapshot) string {
	if t.formActive && t.form != nil {
		return activePanelStyle.Width(t.width - 4).Render(t.form.View())
	}

	w := t.width - 4
	sess := snap.CurrentSession

	var rows []string
	rows = append(rows, titleStyle.Render("Tasks"))
	rows = append(rows, "")

	if sess == nil || len(sess.Tasks) == 0 {
		rows = append(rows, mutedStyle.Render("No tasks yet. Press n to add one."))
	} else {
		for i, task := range sess.Tasks {
			rows = append(rows, t.renderTask(sess, i, task))
		}
		rows = append(rows, "")
		rows = append(rows, highlightStyle.Render(fmt.Sprintf(
			"Planned total: %s", timeutil.FormatDuration(sess.TotalPlannedMs),
		)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("n: new  enter: edit  d: delete  J/K: reorder"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (t tasksModel) renderTask(sess *session.Session, i int, task session.Task) string {
	var marker string
	switch task.Status {
	case session.StatusCompleted:
		marker = successStyle.Render("✓")
	case session.StatusActive:
		marker = accentStyle.Render("▶")
	case session.StatusSkipped:
		marker = mutedStyle.Render("○")
	default:
		marker = mutedStyle.Render("·")
	}

	label := fmt.Sprintf("%s  %s", task.Name, timeutil.FormatHours(task.DurationHours))
	if ms := task.ExtensionMs(); ms > 0 {
		label += " (+" + timeutil.FormatDuration(ms) + ")"
	}

	style := normalItemStyle
	switch {
	case locked(sess, i):
		style = lockedItemStyle
	case i == t.cursor:
		style = selectedItemStyle
	}

	cursor := "  "
	if i == t.cursor {
		cursor = selectedItemStyle.Render("> ")
	}
	line := cursor + marker + " " + style.Render(label)
	if task.Notes != "" && i == t.cursor {
		line += "\n    " + mutedStyle.Render(task.Notes)
	}
	return line
}
