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

	"github.com/sadopc/lockstep/internal/auth"
	"github.com/sadopc/lockstep/internal/store"
)

type settingsFormKind int

const (
	settingsFormNone settingsFormKind = iota
	settingsFormMain
	settingsFormQuote
	settingsFormPassword
)

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	quoteCursor int

	formKind settingsFormKind
	form     *huh.Form

	// Form values as pointers (survive value copies)
	visualMode    *string
	quotesEnabled *bool
	soundEnabled  *bool
	soundVolume   *string
	threshold     *string
	longPress     *string

	quoteText   *string
	quoteAuthor *string

	currentPassword *string
	newPassword     *string
}

func newSettingsModel(s *store.Store) settingsModel {
	vm, sv, th, lp := "", "", "", ""
	qe, se := false, false
	qt, qa := "", ""
	cp, np := "", ""
	return settingsModel{
		store:           s,
		visualMode:      &vm,
		quotesEnabled:   &qe,
		soundEnabled:    &se,
		soundVolume:     &sv,
		threshold:       &th,
		longPress:       &lp,
		quoteText:       &qt,
		quoteAuthor:     &qa,
		currentPassword: &cp,
		newPassword:     &np,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) capturing() bool {
	return s.formKind != settingsFormNone
}

func (s settingsModel) update(msg tea.Msg, snap store.Snapshot) (settingsModel, tea.Cmd) {
	if s.formKind != settingsFormNone && s.form != nil {
		return s.updateForm(msg, snap)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}

	switch {
	case key.Matches(keyMsg, keys.Enter):
		return s.showMainForm(snap.Settings)

	case key.Matches(keyMsg, keys.New):
		return s.showQuoteForm()

	case keyMsg.String() == "w":
		return s.showPasswordForm()

	case key.Matches(keyMsg, keys.Up):
		if s.quoteCursor > 0 {
			s.quoteCursor--
		}

	case key.Matches(keyMsg, keys.Down):
		if s.quoteCursor < len(snap.Settings.Quotes)-1 {
			s.quoteCursor++
		}

	case key.Matches(keyMsg, keys.Delete):
		quotes := snap.Settings.Quotes
		if s.quoteCursor < len(quotes) {
			s.store.RemoveQuote(quotes[s.quoteCursor].ID)
			if s.quoteCursor > 0 && s.quoteCursor >= len(quotes)-1 {
				s.quoteCursor--
			}
			return s, status("Quote removed", false)
		}
	}
	return s, nil
}

func (s settingsModel) showMainForm(cfg store.Settings) (settingsModel, tea.Cmd) {
	*s.visualMode = string(cfg.VisualMode)
	*s.quotesEnabled = cfg.QuotesEnabled
	*s.soundEnabled = cfg.SoundEnabled
	*s.soundVolume = strconv.FormatFloat(cfg.SoundVolume, 'f', 1, 64)
	*s.threshold = strconv.FormatFloat(cfg.ExtensionThresholdPercent, 'f', -1, 64)
	*s.longPress = strconv.Itoa(cfg.LongPressSeconds)

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Visual mode").
				Options(
					huh.NewOption("Calm", string(store.VisualCalm)),
					huh.NewOption("Standard", string(store.VisualStandard)),
					huh.NewOption("Aggressive", string(store.VisualAggressive)),
				).Value(s.visualMode),
			huh.NewConfirm().Title("Show quotes").Value(s.quotesEnabled),
			huh.NewConfirm().Title("Sound alerts").Value(s.soundEnabled),
			huh.NewInput().Title("Sound volume (0.0-1.0)").Value(s.soundVolume).
				Validate(validateRange(0, 1)),
		).Title("Appearance"),
		huh.NewGroup(
			huh.NewInput().Title("Extension threshold (%)").
				Description("Extensions appear when remaining time drops below this").
				Value(s.threshold).
				Validate(validateRange(1, 100)),
			huh.NewInput().Title("Pause hold (seconds)").Value(s.longPress).
				Validate(validateRange(0, 60)),
		).Title("Discipline"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formKind = settingsFormMain
	return s, s.form.Init()
}

func (s settingsModel) showQuoteForm() (settingsModel, tea.Cmd) {
	*s.quoteText = ""
	*s.quoteAuthor = ""

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Quote").Value(s.quoteText).
				Validate(func(v string) error {
					if strings.TrimSpace(v) == "" {
						return errors.New("quote text is required")
					}
					return nil
				}),
			huh.NewInput().Title("Author").Value(s.quoteAuthor),
		).Title("Add Quote"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formKind = settingsFormQuote
	return s, s.form.Init()
}

func (s settingsModel) showPasswordForm() (settingsModel, tea.Cmd) {
	*s.currentPassword = ""
	*s.newPassword = ""

	hasPassword := s.store.Snapshot().Settings.PasswordHash != ""

	fields := []huh.Field{}
	if hasPassword {
		fields = append(fields,
			huh.NewInput().Title("Current password").
				EchoMode(huh.EchoModePassword).
				Value(s.currentPassword),
		)
	}
	fields = append(fields,
		huh.NewInput().Title("New password").
			Description(fmt.Sprintf("At least %d characters", auth.MinPasswordLength)).
			EchoMode(huh.EchoModePassword).
			Value(s.newPassword).
			Validate(func(v string) error {
				if len(v) < auth.MinPasswordLength {
					return auth.ErrPasswordTooShort
				}
				return nil
			}),
	)

	s.form = huh.NewForm(
		huh.NewGroup(fields...).Title("Change Password"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formKind = settingsFormPassword
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg, snap store.Snapshot) (settingsModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		s.formKind = settingsFormNone
		s.form = nil
		return s, nil
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		kind := s.formKind
		s.formKind = settingsFormNone
		switch kind {
		case settingsFormMain:
			s.saveMain()
			return s, status("Settings saved", false)
		case settingsFormQuote:
			s.store.AddQuote(strings.TrimSpace(*s.quoteText), strings.TrimSpace(*s.quoteAuthor))
			return s, status("Quote added", false)
		case settingsFormPassword:
			return s.savePassword(snap)
		}
	}
	return s, cmd
}

func (s settingsModel) saveMain() {
	volume, _ := strconv.ParseFloat(strings.TrimSpace(*s.soundVolume), 64)
	threshold, _ := strconv.ParseFloat(strings.TrimSpace(*s.threshold), 64)
	longPress, _ := strconv.Atoi(strings.TrimSpace(*s.longPress))

	s.store.UpdateSettings(func(cfg *store.Settings) {
		cfg.VisualMode = store.VisualMode(*s.visualMode)
		cfg.QuotesEnabled = *s.quotesEnabled
		cfg.SoundEnabled = *s.soundEnabled
		cfg.SoundVolume = volume
		cfg.ExtensionThresholdPercent = threshold
		cfg.LongPressSeconds = longPress
	})
}

func (s settingsModel) savePassword(snap store.Snapshot) (settingsModel, tea.Cmd) {
	if snap.Settings.PasswordHash != "" && !s.store.VerifyPassword(*s.currentPassword) {
		return s, status("Current password is wrong", true)
	}
	if err := s.store.SetPassword(*s.newPassword); err != nil {
		return s, status(err.Error(), true)
	}
	return s, status("Password updated", false)
}

func validateRange(lo, hi float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.New("enter a number")
		}
		if f < lo || f > hi {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		return nil
	}
}

func (s settingsModel) view(snap store.Snapshot) string {
	w := s.width - 4

	if s.formKind != settingsFormNone && s.form != nil {
		title := titleStyle.Render("Settings")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	cfg := snap.Settings

	var rows []string
	rows = append(rows, titleStyle.Render("Settings"))
	rows = append(rows, "")
	rows = append(rows, s.renderLine("Visual mode", string(cfg.VisualMode)))
	rows = append(rows, s.renderLine("Quotes", onOff(cfg.QuotesEnabled)))
	rows = append(rows, s.renderLine("Sound", onOff(cfg.SoundEnabled)))
	rows = append(rows, s.renderLine("Sound volume", strconv.FormatFloat(cfg.SoundVolume, 'f', 1, 64)))
	rows = append(rows, s.renderLine("Extension threshold", fmt.Sprintf("%g%%", cfg.ExtensionThresholdPercent)))
	rows = append(rows, s.renderLine("Pause hold", fmt.Sprintf("%ds", cfg.LongPressSeconds)))
	rows = append(rows, s.renderLine("Password", passwordStatus(cfg.PasswordHash)))

	rows = append(rows, "")
	rows = append(rows, titleStyle.Render("Quotes"))
	if len(cfg.Quotes) == 0 {
		rows = append(rows, mutedStyle.Render("  none"))
	}
	for i, q := range cfg.Quotes {
		line := q.Text
		if q.Author != "" {
			line += " — " + q.Author
		}
		if i == s.quoteCursor {
			rows = append(rows, selectedItemStyle.Render("> "+line))
		} else {
			rows = append(rows, normalItemStyle.Render("  "+line))
		}
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("enter: edit settings  w: change password  n: add quote  d: delete quote"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (s settingsModel) renderLine(label, value string) string {
	return fmt.Sprintf("  %s %s",
		lipgloss.NewStyle().Width(24).Render(label),
		highlightStyle.Render(value),
	)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func passwordStatus(hash string) string {
	if hash == "" {
		return "not set"
	}
	return "set"
}
