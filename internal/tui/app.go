package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lockstep/internal/export"
	"github.com/sadopc/lockstep/internal/session"
	"github.com/sadopc/lockstep/internal/store"
	"github.com/sadopc/lockstep/internal/timeutil"
)

// tickInterval keeps the countdown smooth; the store throttles persistence
// to once per second on its own.
const tickInterval = 100 * time.Millisecond

// App is the root Bubble Tea model.
type App struct {
	store  *store.Store
	width  int
	height int

	onboarding       onboardingModel
	onboardingActive bool

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	importing  bool
	importPath textinput.Model

	timer    timerModel
	tasks    tasksModel
	history  historyModel
	settings settingsModel

	help        help.Model
	status      string
	statusError bool
}

func NewApp(s *store.Store) App {
	h := help.New()
	h.ShowAll = false

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/backup.json"
	pathInput.CharLimit = 512

	return App{
		store:            s,
		onboarding:       newOnboardingModel(s),
		onboardingActive: !s.Snapshot().Settings.OnboardingCompleted,
		activeView:       viewTimer,
		importPath:       pathInput,
		timer:            newTimerModel(s),
		tasks:            newTasksModel(s),
		history:          newHistoryModel(s),
		settings:         newSettingsModel(s),
		help:             h,
	}
}

func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if a.onboardingActive {
		cmds = append(cmds, a.onboarding.init())
	}
	return tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.onboarding.setSize(a.width, contentHeight)
		a.timer.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tickMsg:
		cmds = append(cmds, tickCmd())
		a.store.Tick(time.Time(msg))
		if !a.onboardingActive {
			var cmd tea.Cmd
			a.timer, cmd = a.timer.update(msg, a.store.Snapshot())
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return a, tea.Batch(cmds...)

	case onboardingDoneMsg:
		a.onboardingActive = false
		a.status = "You're set. Plan your tasks and press s to start."
		a.statusError = false
		return a, nil

	case statusMsg:
		a.status = msg.text
		a.statusError = msg.isError
		return a, nil

	case passwordResultMsg:
		var cmd tea.Cmd
		a.timer, cmd = a.timer.update(msg, a.store.Snapshot())
		return a, cmd

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusError = false
		return a, nil

	case importDoneMsg:
		a.status = "Imported " + msg.path
		a.statusError = false
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)
	}

	return a.updateActiveView(msg)
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.onboardingActive {
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		var cmd tea.Cmd
		a.onboarding, cmd = a.onboarding.update(msg)
		return a, cmd
	}

	if a.exportPicking {
		return a.updateExportPicker(msg)
	}
	if a.importing {
		return a.updateImportPrompt(msg)
	}

	// If a child view is capturing input (form or overlay), delegate first.
	if a.isCapturing() {
		return a.updateActiveView(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, keys.Help):
		a.showHelp = !a.showHelp
		a.help.ShowAll = a.showHelp
		return a, nil
	case key.Matches(msg, keys.Export):
		a.exportPicking = true
		a.exportCursor = 0
		return a, nil
	case key.Matches(msg, keys.Import):
		a.importing = true
		a.importPath.SetValue("")
		return a, a.importPath.Focus()
	case key.Matches(msg, keys.Tab1):
		a.activeView = viewTimer
		return a, nil
	case key.Matches(msg, keys.Tab2):
		a.activeView = viewTasks
		return a, nil
	case key.Matches(msg, keys.Tab3):
		a.activeView = viewHistory
		return a, nil
	case key.Matches(msg, keys.Tab4):
		a.activeView = viewSettings
		return a, nil
	case key.Matches(msg, keys.Tab):
		a.activeView = (a.activeView + 1) % 4
		return a, nil
	}

	return a.updateActiveView(msg)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	snap := a.store.Snapshot()
	var cmd tea.Cmd
	switch a.activeView {
	case viewTimer:
		a.timer, cmd = a.timer.update(msg, snap)
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg, snap)
	case viewHistory:
		a.history, cmd = a.history.update(msg, snap)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg, snap)
	}
	return a, cmd
}

func (a App) isCapturing() bool {
	switch a.activeView {
	case viewTimer:
		return a.timer.capturing()
	case viewTasks:
		return a.tasks.capturing()
	case viewSettings:
		return a.settings.capturing()
	}
	return false
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	if a.onboardingActive {
		return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center,
			a.onboarding.view())
	}

	snap := a.store.Snapshot()

	header := a.renderHeader()
	footer := a.renderFooter(snap)

	var content string
	switch a.activeView {
	case viewTimer:
		content = a.timer.view(snap)
	case viewTasks:
		content = a.tasks.view(snap)
	case viewHistory:
		content = a.history.view(snap)
	case viewSettings:
		content = a.settings.view(snap)
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.exportPicking {
		content = a.renderExportPicker()
	}
	if a.importing {
		content = a.renderImportPrompt()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("lockstep")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter(snap store.Snapshot) string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		if a.statusError {
			status = errorStyle.Render(" " + a.status)
		} else {
			status = mutedStyle.Render(" " + a.status)
		}
	}

	// Countdown indicator so the clock stays visible from any view.
	timerInfo := ""
	if sess := snap.CurrentSession; sess != nil {
		switch sess.State {
		case session.StateRunning:
			timerInfo = successStyle.Render(" ● " + timeutil.FormatCountdown(snap.RemainingMs()))
		case session.StatePaused:
			timerInfo = warningStyle.Render(" ⏸ " + timeutil.FormatCountdown(snap.RemainingMs()))
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"JSON backup", "CSV history"}

func (a App) renderExportPicker() string {
	var rows []string
	rows = append(rows, titleStyle.Render("Export"))
	rows = append(rows, "")
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	return func() tea.Msg {
		home, _ := os.UserHomeDir()
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(home, fmt.Sprintf("lockstep-backup-%s.json", dateStr))
			if err := export.SnapshotToJSON(a.store, path); err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(home, fmt.Sprintf("lockstep-history-%s.csv", dateStr))
			if err := export.HistoryToCSV(a.store.Snapshot().History, path); err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}

func (a App) renderImportPrompt() string {
	rows := []string{
		titleStyle.Render("Import Backup"),
		"",
		warningStyle.Render("This replaces ALL current data with the backup."),
		"",
		a.importPath.View(),
		"",
		mutedStyle.Render("enter: import  esc: cancel"),
	}
	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateImportPrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		a.importing = false
		a.importPath.Blur()
		return a, nil
	case msg.Type == tea.KeyEnter:
		path := a.importPath.Value()
		a.importing = false
		a.importPath.Blur()
		return a, a.doImport(path)
	}
	var cmd tea.Cmd
	a.importPath, cmd = a.importPath.Update(msg)
	return a, cmd
}

func (a App) doImport(path string) tea.Cmd {
	return func() tea.Msg {
		doc, err := os.ReadFile(path)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Import error: %v", err), isError: true}
		}
		if !a.store.Import(doc) {
			return statusMsg{text: "Import rejected: not a valid backup", isError: true}
		}
		return importDoneMsg{path: path}
	}
}
