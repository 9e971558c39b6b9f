package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lockstep/internal/session"
	"github.com/sadopc/lockstep/internal/store"
	"github.com/sadopc/lockstep/internal/timeutil"
)

// extensionOptions are the minute amounts offered when the threshold is
// crossed.
var extensionOptions = []int{30, 45, 60}

type timerMode int

const (
	timerNormal timerMode = iota
	timerExtendPick
	timerHoldConfirm
	timerPassword
)

type gatedAction int

const (
	actionNone gatedAction = iota
	actionExtend
	actionPause
	actionResume
)

// timerModel is the main countdown view. Deviations from the plan
// (extensions, pauses, resumes) route through the hold-to-confirm and
// password gates before any store mutation happens.
type timerModel struct {
	store  *store.Store
	width  int
	height int

	mode         timerMode
	extendCursor int
	holdDeadline time.Time

	pending        gatedAction
	pendingMinutes int

	password  textinput.Model
	pwError   string
	verifying bool
}

func newTimerModel(s *store.Store) timerModel {
	pw := textinput.New()
	pw.Placeholder = "password"
	pw.EchoMode = textinput.EchoPassword
	pw.CharLimit = 64
	return timerModel{
		store:    s,
		password: pw,
	}
}

func (t *timerModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

// capturing reports whether the view wants all key input (an overlay is
// open).
func (t timerModel) capturing() bool {
	return t.mode != timerNormal
}

func (t timerModel) update(msg tea.Msg, snap store.Snapshot) (timerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if t.mode == timerHoldConfirm && !time.Time(msg).Before(t.holdDeadline) {
			// Hold survived: now the password gate.
			return t.openPasswordGate(actionPause, 0)
		}
		return t, nil

	case passwordResultMsg:
		return t.handlePasswordResult(msg.ok)

	case tea.KeyMsg:
		switch t.mode {
		case timerPassword:
			return t.updatePassword(msg)
		case timerHoldConfirm:
			if key.Matches(msg, keys.Back) {
				t.mode = timerNormal
				t.pending = actionNone
				return t, nil
			}
			return t, nil
		case timerExtendPick:
			return t.updateExtendPick(msg)
		default:
			return t.updateNormal(msg, snap)
		}
	}
	return t, nil
}

func (t timerModel) updateNormal(msg tea.KeyMsg, snap store.Snapshot) (timerModel, tea.Cmd) {
	sess := snap.CurrentSession
	switch {
	case key.Matches(msg, keys.Start):
		if !t.store.StartSession() {
			return t, status("Add at least one task before starting", true)
		}
		return t, status("Session started — lock in", false)

	case key.Matches(msg, keys.Complete):
		if sess == nil || sess.State != session.StateRunning {
			return t, nil
		}
		early := snap.RemainingMs() > 0
		if !t.store.CompleteCurrentTask(early) {
			return t, nil
		}
		if t.store.Snapshot().CurrentSession == nil {
			return t, status("Session complete!", false)
		}
		return t, status("Task done — next one is live", false)

	case key.Matches(msg, keys.Extend):
		if sess == nil || sess.State != session.StateRunning || !snap.OfferExtensions() {
			return t, nil
		}
		t.mode = timerExtendPick
		t.extendCursor = 0
		return t, nil

	case key.Matches(msg, keys.Pause):
		if sess == nil || sess.State != session.StateRunning {
			return t, nil
		}
		hold := snap.Settings.LongPressSeconds
		if hold <= 0 {
			return t.openPasswordGate(actionPause, 0)
		}
		t.mode = timerHoldConfirm
		t.pending = actionPause
		t.holdDeadline = time.Now().Add(time.Duration(hold) * time.Second)
		return t, nil

	case key.Matches(msg, keys.Resume):
		if sess == nil || sess.State != session.StatePaused {
			return t, nil
		}
		return t.openPasswordGate(actionResume, 0)
	}
	return t, nil
}

func (t timerModel) updateExtendPick(msg tea.KeyMsg) (timerModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Left):
		if t.extendCursor > 0 {
			t.extendCursor--
		}
	case key.Matches(msg, keys.Right):
		if t.extendCursor < len(extensionOptions)-1 {
			t.extendCursor++
		}
	case key.Matches(msg, keys.Enter):
		return t.openPasswordGate(actionExtend, extensionOptions[t.extendCursor])
	case key.Matches(msg, keys.Back):
		t.mode = timerNormal
	}
	return t, nil
}

// openPasswordGate switches into the password prompt for a pending
// action. When no password has been set yet the gate is open and the
// action applies immediately.
func (t timerModel) openPasswordGate(action gatedAction, minutes int) (timerModel, tea.Cmd) {
	t.pending = action
	t.pendingMinutes = minutes
	if t.store.Snapshot().Settings.PasswordHash == "" {
		return t.applyPending()
	}
	t.mode = timerPassword
	t.pwError = ""
	t.password.SetValue("")
	return t, t.password.Focus()
}

func (t timerModel) updatePassword(msg tea.KeyMsg) (timerModel, tea.Cmd) {
	if t.verifying {
		return t, nil
	}
	switch {
	case key.Matches(msg, keys.Back):
		t.mode = timerNormal
		t.pending = actionNone
		t.password.Blur()
		return t, nil
	case msg.Type == tea.KeyEnter:
		candidate := t.password.Value()
		t.verifying = true
		return t, func() tea.Msg {
			return passwordResultMsg{ok: t.store.VerifyPassword(candidate)}
		}
	}
	var cmd tea.Cmd
	t.password, cmd = t.password.Update(msg)
	return t, cmd
}

func (t timerModel) handlePasswordResult(ok bool) (timerModel, tea.Cmd) {
	t.verifying = false
	if !ok {
		// Mismatch: no mutation happens, the caller re-prompts.
		t.pwError = "Wrong password"
		t.password.SetValue("")
		return t, nil
	}
	t.password.Blur()
	return t.applyPending()
}

func (t timerModel) applyPending() (timerModel, tea.Cmd) {
	action, minutes := t.pending, t.pendingMinutes
	t.mode = timerNormal
	t.pending = actionNone
	t.pendingMinutes = 0

	switch action {
	case actionExtend:
		if t.store.AddExtension(minutes) {
			return t, status(fmt.Sprintf("+%d minutes granted", minutes), false)
		}
	case actionPause:
		if t.store.EmergencyPause("") {
			return t, status("Emergency pause — timer frozen", false)
		}
	case actionResume:
		if t.store.ResumeFromPause() {
			return t, status("Back to work", false)
		}
	}
	return t, nil
}

func status(text string, isError bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isError: isError}
	}
}

// --- Rendering ---

func (t timerModel) view(snap store.Snapshot) string {
	w := t.width - 4

	switch t.mode {
	case timerPassword:
		return t.viewPassword(w)
	case timerHoldConfirm:
		return t.viewHoldConfirm(w)
	case timerExtendPick:
		return t.viewExtendPick(w)
	}

	sess := snap.CurrentSession
	if sess == nil || sess.State == session.StateIdle {
		return t.viewIdle(w, sess)
	}
	return t.viewRunning(w, snap)
}

func (t timerModel) viewIdle(w int, sess *session.Session) string {
	title := titleStyle.Render("Lockstep")

	var taskLine string
	if sess == nil || len(sess.Tasks) == 0 {
		taskLine = mutedStyle.Render("No tasks yet — add some in the Tasks view (2)")
	} else {
		taskLine = highlightStyle.Render(fmt.Sprintf(
			"%d tasks planned, %s total",
			len(sess.Tasks),
			timeutil.FormatDuration(sess.TotalPlannedMs),
		))
	}

	hint := mutedStyle.Render("Press s to start the session")

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center,
		title, "", taskLine, "", hint,
	))
}

func (t timerModel) viewRunning(w int, snap store.Snapshot) string {
	sess := snap.CurrentSession
	cur := sess.CurrentTask()
	if cur == nil {
		return panelStyle.Width(w).Render(mutedStyle.Render("..."))
	}

	remaining := snap.RemainingMs()
	percent := snap.RemainingPercent()

	countdown := countdownStyle(percent, snap.Settings.VisualMode).
		Width(w - 6).
		Render(timeutil.FormatCountdown(remaining))

	taskName := titleStyle.Render(cur.Name)
	progress := mutedStyle.Render(fmt.Sprintf(
		"Task %d of %d · budget %s",
		sess.CurrentTaskIndex+1, len(sess.Tasks),
		timeutil.FormatDuration(cur.BudgetMs()),
	))

	var stateLine string
	switch sess.State {
	case session.StatePaused:
		stateLine = warningStyle.Render("⏸ PAUSED — press r to resume (password required)")
	default:
		if len(cur.Extensions) > 0 {
			var exts string
			for _, ext := range cur.Extensions {
				exts += fmt.Sprintf(" +%dm", ext.Minutes)
			}
			stateLine = accentStyle.Render("extensions:" + exts)
		}
	}

	var offer string
	if snap.OfferExtensions() {
		offer = accentStyle.Render("Time is almost up — press x to request an extension")
	}

	quote := t.quoteLine(snap, w-8)

	rows := []string{taskName, "", countdown, progress}
	if stateLine != "" {
		rows = append(rows, "", stateLine)
	}
	if offer != "" {
		rows = append(rows, "", offer)
	}
	if quote != "" {
		rows = append(rows, "", quote)
	}

	var controls string
	if sess.State == session.StatePaused {
		controls = mutedStyle.Render("r: resume")
	} else {
		controls = mutedStyle.Render("c: complete  p: emergency pause")
	}
	rows = append(rows, "", controls)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center, rows...))
}

func (t timerModel) quoteLine(snap store.Snapshot, width int) string {
	if !snap.Settings.QuotesEnabled || len(snap.Settings.Quotes) == 0 {
		return ""
	}
	// Rotate through the quote list as elapsed time accrues.
	idx := int(snap.ElapsedMs/30_000) % len(snap.Settings.Quotes)
	q := snap.Settings.Quotes[idx]
	line := "“" + q.Text + "”"
	if q.Author != "" {
		line += " — " + q.Author
	}
	return mutedStyle.Width(width).Align(lipgloss.Center).Render(line)
}

func (t timerModel) viewExtendPick(w int) string {
	title := titleStyle.Render("Request Extension")

	var opts []string
	for i, minutes := range extensionOptions {
		label := fmt.Sprintf(" +%dm ", minutes)
		if i == t.extendCursor {
			opts = append(opts, selectedItemStyle.Render("["+label+"]"))
		} else {
			opts = append(opts, normalItemStyle.Render(" "+label+" "))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Center, opts...)

	hint := mutedStyle.Render("←/→: choose  enter: confirm  esc: cancel")

	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center,
		title, "", row, "", hint,
	))
}

func (t timerModel) viewHoldConfirm(w int) string {
	left := time.Until(t.holdDeadline).Seconds()
	if left < 0 {
		left = 0
	}
	title := errorStyle.Render("Emergency Pause")
	count := warningStyle.Render(fmt.Sprintf("Hold on... %.0fs", left+0.5))
	hint := mutedStyle.Render("esc: abort")

	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center,
		title, "", count, "", hint,
	))
}

func (t timerModel) viewPassword(w int) string {
	var prompt string
	switch t.pending {
	case actionExtend:
		prompt = fmt.Sprintf("Add %d minutes?", t.pendingMinutes)
	case actionPause:
		prompt = "Confirm emergency pause"
	case actionResume:
		prompt = "Resume session"
	}

	rows := []string{
		titleStyle.Render("Password Required"),
		"",
		highlightStyle.Render(prompt),
		"",
		t.password.View(),
	}
	if t.pwError != "" {
		rows = append(rows, "", errorStyle.Render(t.pwError))
	}
	rows = append(rows, "", mutedStyle.Render("enter: confirm  esc: cancel"))

	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Center, rows...))
}
