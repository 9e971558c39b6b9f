// Package history folds completed sessions into per-day summaries.
package history

import (
	"github.com/sadopc/lockstep/internal/session"
)

// DailySummary accumulates every session completed on one calendar date.
type DailySummary struct {
	Date           string            `json:"date"`
	TasksPlanned   int               `json:"tasks_planned"`
	TasksCompleted int               `json:"tasks_completed"`
	PlannedTimeMs  int64             `json:"planned_time_ms"`
	ActualTimeMs   int64             `json:"actual_time_ms"`
	ExtensionsUsed int               `json:"extensions_used"`
	PausesUsed     int               `json:"pauses_used"`
	Sessions       []session.Session `json:"sessions"`
}

// Record folds a completed session into the summary for its date, creating
// the summary lazily on first use. Counters accumulate, never overwrite:
// multiple sessions on the same date share a single summary.
func Record(summaries []DailySummary, s *session.Session) []DailySummary {
	idx := -1
	for i := range summaries {
		if summaries[i].Date == s.Date {
			idx = i
			break
		}
	}

	var summary DailySummary
	if idx >= 0 {
		summary = summaries[idx]
	} else {
		summary = DailySummary{Date: s.Date}
	}

	summary.TasksPlanned += len(s.Tasks)
	summary.TasksCompleted += s.CompletedTaskCount()
	summary.PlannedTimeMs += s.TotalPlannedMs
	summary.ActualTimeMs += s.TotalActualMs
	summary.ExtensionsUsed += s.ExtensionCount()
	summary.PausesUsed += len(s.PauseEvents)
	summary.Sessions = append(summary.Sessions, *s)

	if idx >= 0 {
		out := make([]DailySummary, len(summaries))
		copy(out, summaries)
		out[idx] = summary
		return out
	}
	return append(append([]DailySummary{}, summaries...), summary)
}

// ForDate returns the summary for a date, if one exists.
func ForDate(summaries []DailySummary, date string) (DailySummary, bool) {
	for i := range summaries {
		if summaries[i].Date == date {
			return summaries[i], true
		}
	}
	return DailySummary{}, false
}

// Totals sums the headline counters across a set of summaries, for the
// reports view.
type Totals struct {
	Days           int
	TasksPlanned   int
	TasksCompleted int
	PlannedTimeMs  int64
	ActualTimeMs   int64
	ExtensionsUsed int
	PausesUsed     int
}

func Sum(summaries []DailySummary) Totals {
	var t Totals
	t.Days = len(summaries)
	for i := range summaries {
		s := &summaries[i]
		t.TasksPlanned += s.TasksPlanned
		t.TasksCompleted += s.TasksCompleted
		t.PlannedTimeMs += s.PlannedTimeMs
		t.ActualTimeMs += s.ActualTimeMs
		t.ExtensionsUsed += s.ExtensionsUsed
		t.PausesUsed += s.PausesUsed
	}
	return t
}
