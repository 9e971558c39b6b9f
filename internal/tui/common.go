package tui

import (
	"time"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTimer viewState = iota
	viewTasks
	viewHistory
	viewSettings
)

var viewNames = []string{"Timer", "Tasks", "History", "Settings"}

// --- Messages ---

type tickMsg time.Time

type statusMsg struct {
	text    string
	isError bool
}

// passwordResultMsg carries the outcome of an asynchronous password
// verification back to the timer view.
type passwordResultMsg struct {
	ok bool
}

type exportDoneMsg struct {
	path string
}

type importDoneMsg struct {
	path string
}

type onboardingDoneMsg struct{}
