package store

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sadopc/lockstep/internal/history"
	"github.com/sadopc/lockstep/internal/session"
	"github.com/sadopc/lockstep/internal/timeutil"
)

// Snapshot is the full application state: the unit of persistence and of
// import/export. TimerActive/ElapsedMs/LastTick are the transient timer
// fields for the active task.
type Snapshot struct {
	Settings       Settings               `json:"settings"`
	CurrentSession *session.Session       `json:"current_session,omitempty"`
	History        []history.DailySummary `json:"history"`
	TimerActive    bool                   `json:"timer_active"`
	ElapsedMs      int64                  `json:"elapsed_ms"`
	LastTick       *time.Time             `json:"last_tick,omitempty"`
}

// RemainingMs is the active task's budget minus elapsed time, clamped at
// zero. Zero when no task is active.
func (s Snapshot) RemainingMs() int64 {
	if s.CurrentSession == nil {
		return 0
	}
	cur := s.CurrentSession.CurrentTask()
	if cur == nil {
		return 0
	}
	remaining := cur.BudgetMs() - s.ElapsedMs
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingPercent is the percentage of the active task's budget still
// left.
func (s Snapshot) RemainingPercent() float64 {
	if s.CurrentSession == nil {
		return 0
	}
	cur := s.CurrentSession.CurrentTask()
	if cur == nil {
		return 0
	}
	return timeutil.RemainingPercent(s.ElapsedMs, cur.BudgetMs())
}

// OfferExtensions reports whether extension offers should be visible for
// the active task, honoring the halving threshold per extension granted.
func (s Snapshot) OfferExtensions() bool {
	if s.CurrentSession == nil || s.CurrentSession.State != session.StateRunning {
		return false
	}
	cur := s.CurrentSession.CurrentTask()
	if cur == nil {
		return false
	}
	return timeutil.ShouldOfferExtensions(
		s.RemainingPercent(),
		s.Settings.ExtensionThresholdPercent,
		len(cur.Extensions),
	)
}

func defaultSnapshot() Snapshot {
	return Snapshot{
		Settings: DefaultSettings(),
		History:  []history.DailySummary{},
	}
}

// importDoc mirrors Snapshot with a raw settings field so a missing
// settings object can be told apart from an empty one.
type importDoc struct {
	Settings       json.RawMessage        `json:"settings"`
	CurrentSession *session.Session       `json:"current_session"`
	History        []history.DailySummary `json:"history"`
	TimerActive    bool                   `json:"timer_active"`
	ElapsedMs      int64                  `json:"elapsed_ms"`
	LastTick       *time.Time             `json:"last_tick"`
}

// decodeSnapshot parses a snapshot document. A settings object must be
// present; fields absent from it take their defaults.
func decodeSnapshot(doc []byte) (Snapshot, error) {
	var raw importDoc
	if err := json.Unmarshal(doc, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	if len(raw.Settings) == 0 || string(raw.Settings) == "null" {
		return Snapshot{}, fmt.Errorf("snapshot missing settings object")
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(raw.Settings, &settings); err != nil {
		return Snapshot{}, fmt.Errorf("parse settings: %w", err)
	}

	snap := Snapshot{
		Settings:       settings,
		CurrentSession: raw.CurrentSession,
		History:        raw.History,
		TimerActive:    raw.TimerActive,
		ElapsedMs:      raw.ElapsedMs,
		LastTick:       raw.LastTick,
	}
	if snap.History == nil {
		snap.History = []history.DailySummary{}
	}
	return snap, nil
}

func encodeSnapshot(snap Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Reconcile corrects a freshly loaded snapshot against the current clock.
// If the session was running and its active task has a start timestamp,
// elapsed time is recomputed as now-startedAt rather than trusting the
// stale persisted value (the process may have been suspended mid-run). A
// negative result means clock skew and the persisted value wins.
func Reconcile(snap Snapshot, now time.Time) Snapshot {
	if snap.CurrentSession == nil {
		snap.TimerActive = false
		snap.LastTick = nil
		return snap
	}

	if snap.CurrentSession.State == session.StateRunning {
		snap.TimerActive = true
		if cur := snap.CurrentSession.CurrentTask(); cur != nil && cur.StartedAt != nil {
			computed := now.Sub(*cur.StartedAt).Milliseconds()
			if computed >= 0 {
				snap.ElapsedMs = computed
			}
		}
		tick := now
		snap.LastTick = &tick
		return snap
	}

	snap.TimerActive = false
	snap.LastTick = nil
	return snap
}
