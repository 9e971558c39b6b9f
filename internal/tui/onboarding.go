package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lockstep/internal/auth"
	"github.com/sadopc/lockstep/internal/store"
)

// onboardingModel is the first-run wizard: explains the contract and sets
// the commitment password before the app unlocks.
type onboardingModel struct {
	store  *store.Store
	width  int
	height int

	form *huh.Form

	password *string
	confirm  *string
}

func newOnboardingModel(s *store.Store) onboardingModel {
	pw, cf := "", ""
	m := onboardingModel{
		store:    s,
		password: &pw,
		confirm:  &cf,
	}
	m.form = m.buildForm()
	return m
}

func (o onboardingModel) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to Lockstep").
				Description("Plan your day as an ordered list of tasks, then run them in "+
					"sequence against a countdown. Once a session starts, the plan is "+
					"locked: finished and active tasks cannot be touched, and any "+
					"deviation (extra time, a pause) requires your password.\n\n"+
					"Pick a password that slows you down. Giving it to someone you "+
					"trust works even better."),
		).Title("Lockstep"),
		huh.NewGroup(
			huh.NewInput().Title("Commitment password").
				Description(fmt.Sprintf("At least %d characters", auth.MinPasswordLength)).
				EchoMode(huh.EchoModePassword).
				Value(o.password).
				Validate(func(v string) error {
					if len(v) < auth.MinPasswordLength {
						return auth.ErrPasswordTooShort
					}
					return nil
				}),
			huh.NewInput().Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(o.confirm),
		).Title("Set Your Password"),
	).WithShowHelp(true).WithShowErrors(true)
}

func (o *onboardingModel) setSize(w, h int) {
	o.width = w
	o.height = h
}

func (o onboardingModel) init() tea.Cmd {
	return o.form.Init()
}

func (o onboardingModel) update(msg tea.Msg) (onboardingModel, tea.Cmd) {
	form, cmd := o.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		o.form = f
	}

	if o.form.State == huh.StateCompleted {
		if *o.password != *o.confirm {
			*o.password = ""
			*o.confirm = ""
			o.form = o.buildForm()
			return o, tea.Batch(o.form.Init(), status("Passwords did not match, try again", true))
		}
		if err := o.store.SetPassword(*o.password); err != nil {
			o.form = o.buildForm()
			return o, tea.Batch(o.form.Init(), status(err.Error(), true))
		}
		o.store.CompleteOnboarding()
		return o, func() tea.Msg { return onboardingDoneMsg{} }
	}
	return o, cmd
}

func (o onboardingModel) view() string {
	w := o.width - 4
	if w < 20 {
		w = 60
	}
	return activePanelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left, o.form.View()),
	)
}
