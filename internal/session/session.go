// Package session implements the focus-session state machine: an ordered
// task list executed strictly in sequence against a countdown, with
// password-gated extensions and emergency pauses recorded along the way.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/lockstep/internal/timeutil"
)

// Status is the lifecycle state of a single task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
)

// State is the lifecycle state of a session.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// Extension is a granted addition of minutes to a task's time budget.
// Immutable once appended.
type Extension struct {
	ID        string    `json:"id"`
	Minutes   int       `json:"minutes"`
	AppliedAt time.Time `json:"applied_at"`
}

// PauseEvent records one emergency pause. ResumedAt stays nil while the
// pause is in effect; only the newest event is ever resumed.
type PauseEvent struct {
	ID        string     `json:"id"`
	PausedAt  time.Time  `json:"paused_at"`
	ResumedAt *time.Time `json:"resumed_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Task is a named unit of work with a time budget in decimal hours.
type Task struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	DurationHours  float64     `json:"duration_hours"`
	Notes          string      `json:"notes,omitempty"`
	Status         Status      `json:"status"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	TimeSpentMs    int64       `json:"time_spent_ms,omitempty"`
	Extensions     []Extension `json:"extensions"`
	CompletedEarly bool        `json:"completed_early,omitempty"`
}

// ExtensionMs is the total extension time granted to the task.
func (t *Task) ExtensionMs() int64 {
	var sum int64
	for _, ext := range t.Extensions {
		sum += timeutil.MinutesToMs(ext.Minutes)
	}
	return sum
}

// BudgetMs is the task's full time budget: base duration plus extensions.
func (t *Task) BudgetMs() int64 {
	return timeutil.HoursToMs(t.DurationHours) + t.ExtensionMs()
}

// TaskPatch carries optional edits for UpdateTask. Nil fields are left
// unchanged.
type TaskPatch struct {
	Name          *string
	DurationHours *float64
	Notes         *string
}

// Session is one day's ordered run of tasks.
//
// While running or paused, every task before CurrentTaskIndex is completed
// or skipped, the task at the index is active, and every task after it is
// pending. The active task and all prior tasks are frozen; only tasks
// strictly after the cursor may still be edited.
type Session struct {
	ID               string       `json:"id"`
	Date             string       `json:"date"`
	Tasks            []Task       `json:"tasks"`
	State            State        `json:"state"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
	CurrentTaskIndex int          `json:"current_task_index"`
	PauseEvents      []PauseEvent `json:"pause_events"`
	TotalPlannedMs   int64        `json:"total_planned_ms"`
	TotalActualMs    int64        `json:"total_actual_ms"`
}

// New returns a fresh idle session for the calendar date of now.
func New(now time.Time) *Session {
	return &Session{
		ID:    uuid.NewString(),
		Date:  timeutil.Today(now),
		Tasks: []Task{},
		State: StateIdle,
	}
}

var (
	ErrEmptyName       = errors.New("task name is required")
	ErrInvalidDuration = errors.New("task duration must be positive")
)

func validateTask(name string, durationHours float64) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if durationHours <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// editable reports whether the task at idx may still be changed: any task
// while idle, only tasks strictly after the cursor while running/paused.
func (s *Session) editable(idx int) bool {
	switch s.State {
	case StateIdle:
		return true
	case StateRunning, StatePaused:
		return idx > s.CurrentTaskIndex
	default:
		return false
	}
}

func (s *Session) indexOf(id string) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// AddTask appends a pending task. Appending is legal in any non-terminal
// state since a new task always lands after the cursor. Returns a
// validation error without mutating on bad input.
func (s *Session) AddTask(name string, durationHours float64, notes string) (*Task, error) {
	if err := validateTask(name, durationHours); err != nil {
		return nil, err
	}
	if s.State == StateCompleted {
		return nil, nil
	}
	task := Task{
		ID:            uuid.NewString(),
		Name:          name,
		DurationHours: durationHours,
		Notes:         notes,
		Status:        StatusPending,
		Extensions:    []Extension{},
	}
	s.Tasks = append(s.Tasks, task)
	s.TotalPlannedMs += timeutil.HoursToMs(durationHours)
	return &s.Tasks[len(s.Tasks)-1], nil
}

// UpdateTask applies a patch to a still-editable task, keeping
// TotalPlannedMs consistent with duration edits. Edits to the active or
// past tasks are rejected with applied=false.
func (s *Session) UpdateTask(id string, patch TaskPatch) (bool, error) {
	idx := s.indexOf(id)
	if idx < 0 || !s.editable(idx) {
		return false, nil
	}
	task := &s.Tasks[idx]

	name := task.Name
	if patch.Name != nil {
		name = *patch.Name
	}
	duration := task.DurationHours
	if patch.DurationHours != nil {
		duration = *patch.DurationHours
	}
	if err := validateTask(name, duration); err != nil {
		return false, err
	}

	if patch.DurationHours != nil {
		s.TotalPlannedMs += timeutil.HoursToMs(duration) - timeutil.HoursToMs(task.DurationHours)
		task.DurationHours = duration
	}
	if patch.Name != nil {
		task.Name = name
	}
	if patch.Notes != nil {
		task.Notes = *patch.Notes
	}
	return true, nil
}

// RemoveTask deletes a still-editable task and subtracts its duration from
// the planned total.
func (s *Session) RemoveTask(id string) bool {
	idx := s.indexOf(id)
	if idx < 0 || !s.editable(idx) {
		return false
	}
	s.TotalPlannedMs -= timeutil.HoursToMs(s.Tasks[idx].DurationHours)
	s.Tasks = append(s.Tasks[:idx], s.Tasks[idx+1:]...)
	return true
}

// Reorder moves the task at from to position to. While running or paused,
// neither endpoint may be at or before the cursor.
func (s *Session) Reorder(from, to int) bool {
	if from < 0 || from >= len(s.Tasks) || to < 0 || to >= len(s.Tasks) {
		return false
	}
	if s.State == StateRunning || s.State == StatePaused {
		if from <= s.CurrentTaskIndex || to <= s.CurrentTaskIndex {
			return false
		}
	} else if s.State == StateCompleted {
		return false
	}
	if from == to {
		return true
	}
	task := s.Tasks[from]
	s.Tasks = append(s.Tasks[:from], s.Tasks[from+1:]...)
	s.Tasks = append(s.Tasks[:to], append([]Task{task}, s.Tasks[to:]...)...)
	return true
}

// Start transitions idle -> running: task 0 becomes active with
// StartedAt=now. Requires a non-empty list of valid tasks.
func (s *Session) Start(now time.Time) bool {
	if s.State != StateIdle || len(s.Tasks) == 0 {
		return false
	}
	for i := range s.Tasks {
		if validateTask(s.Tasks[i].Name, s.Tasks[i].DurationHours) != nil {
			return false
		}
	}
	started := now
	for i := range s.Tasks {
		s.Tasks[i].Status = StatusPending
		s.Tasks[i].StartedAt = nil
	}
	s.Tasks[0].Status = StatusActive
	s.Tasks[0].StartedAt = &started
	s.State = StateRunning
	s.StartedAt = &started
	s.CurrentTaskIndex = 0
	return true
}

// CurrentTask returns the task at the cursor, or nil when the session has
// no meaningful cursor.
func (s *Session) CurrentTask() *Task {
	if s.State != StateRunning && s.State != StatePaused {
		return nil
	}
	if s.CurrentTaskIndex < 0 || s.CurrentTaskIndex >= len(s.Tasks) {
		return nil
	}
	return &s.Tasks[s.CurrentTaskIndex]
}

// CompleteCurrent finishes the active task, recording timeSpentMs and the
// early flag, then either activates the next task or completes the
// session. Returns done=true when the session reached its terminal state.
// A no-op unless running with an active task at the cursor.
func (s *Session) CompleteCurrent(now time.Time, timeSpentMs int64, early bool) (done, applied bool) {
	if s.State != StateRunning {
		return false, false
	}
	cur := s.CurrentTask()
	if cur == nil || cur.Status != StatusActive {
		return false, false
	}

	completed := now
	cur.Status = StatusCompleted
	cur.CompletedAt = &completed
	cur.TimeSpentMs = timeSpentMs
	cur.CompletedEarly = early
	s.TotalActualMs += timeSpentMs

	next := s.CurrentTaskIndex + 1
	if next < len(s.Tasks) {
		s.CurrentTaskIndex = next
		s.Tasks[next].Status = StatusActive
		s.Tasks[next].StartedAt = &completed
		return false, true
	}

	s.State = StateCompleted
	s.CompletedAt = &completed
	return true, true
}

// ExtendCurrent appends an extension to the active task and grows the
// planned total. Legal only while running; elapsed time is untouched.
func (s *Session) ExtendCurrent(minutes int, now time.Time) (*Extension, bool) {
	if s.State != StateRunning || minutes <= 0 {
		return nil, false
	}
	cur := s.CurrentTask()
	if cur == nil {
		return nil, false
	}
	ext := Extension{
		ID:        uuid.NewString(),
		Minutes:   minutes,
		AppliedAt: now,
	}
	cur.Extensions = append(cur.Extensions, ext)
	s.TotalPlannedMs += timeutil.MinutesToMs(minutes)
	return &cur.Extensions[len(cur.Extensions)-1], true
}

// Pause records an emergency pause: running -> paused with an open
// PauseEvent. The active task's elapsed time is frozen by the owning
// store, never reset.
func (s *Session) Pause(now time.Time, reason string) bool {
	if s.State != StateRunning {
		return false
	}
	s.PauseEvents = append(s.PauseEvents, PauseEvent{
		ID:       uuid.NewString(),
		PausedAt: now,
		Reason:   reason,
	})
	s.State = StatePaused
	return true
}

// Resume closes the most recent PauseEvent and returns to running.
func (s *Session) Resume(now time.Time) bool {
	if s.State != StatePaused {
		return false
	}
	if n := len(s.PauseEvents); n > 0 && s.PauseEvents[n-1].ResumedAt == nil {
		resumed := now
		s.PauseEvents[n-1].ResumedAt = &resumed
	}
	s.State = StateRunning
	return true
}

// ExtensionCount is the number of extensions granted across all tasks.
func (s *Session) ExtensionCount() int {
	var n int
	for i := range s.Tasks {
		n += len(s.Tasks[i].Extensions)
	}
	return n
}

// CompletedTaskCount is the number of tasks finished so far.
func (s *Session) CompletedTaskCount() int {
	var n int
	for i := range s.Tasks {
		if s.Tasks[i].Status == StatusCompleted {
			n++
		}
	}
	return n
}
