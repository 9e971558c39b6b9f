// Package timeutil holds the duration conversion and formatting helpers
// shared by the session core and the TUI. All durations are carried as
// int64 milliseconds; tasks are authored in decimal hours and extensions
// in whole minutes.
package timeutil

import (
	"fmt"
	"math"
	"time"
)

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
)

// HoursToMs converts decimal hours (e.g. 1.5) to milliseconds.
func HoursToMs(hours float64) int64 {
	return int64(math.Round(hours * float64(msPerHour)))
}

// MsToHours converts milliseconds to decimal hours.
func MsToHours(ms int64) float64 {
	return float64(ms) / float64(msPerHour)
}

// MinutesToMs converts whole minutes to milliseconds.
func MinutesToMs(minutes int) int64 {
	return int64(minutes) * msPerMinute
}

// MsToMinutes converts milliseconds to decimal minutes.
func MsToMinutes(ms int64) float64 {
	return float64(ms) / float64(msPerMinute)
}

// FormatCountdown renders a countdown as H:MM:SS when at least one whole
// hour remains, else M:SS. Floor-rounded and clamped at zero.
func FormatCountdown(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / msPerSecond
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatDuration renders a compact human-readable duration such as
// "2h 15m", "3h" or "45m".
func FormatDuration(ms int64) string {
	hours := MsToHours(ms)
	if hours >= 1 {
		h := int(hours)
		m := int(math.Round((hours - float64(h)) * 60))
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", int(math.Round(MsToMinutes(ms))))
}

// FormatHours renders decimal hours with singular/plural wording, e.g.
// "1 hour", "2 hours", "90 minutes", "1h 30m".
func FormatHours(hours float64) string {
	if hours >= 1 {
		h := int(hours)
		m := int(math.Round((hours - float64(h)) * 60))
		if m == 0 {
			if h == 1 {
				return "1 hour"
			}
			return fmt.Sprintf("%d hours", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
	minutes := int(math.Round(hours * 60))
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// RemainingPercent returns the percentage (0-100) of totalMs not yet
// consumed by elapsedMs. A zero total yields 0.
func RemainingPercent(elapsedMs, totalMs int64) float64 {
	if totalMs == 0 {
		return 0
	}
	remaining := totalMs - elapsedMs
	if remaining < 0 {
		remaining = 0
	}
	return float64(remaining) / float64(totalMs) * 100
}

// ExtensionThreshold halves the base threshold for every extension already
// granted: 10% -> 5% -> 2.5% -> ... Diminishing availability keeps stacked
// extensions from trivially reopening the offer.
func ExtensionThreshold(basePercent float64, extensionCount int) float64 {
	return basePercent / math.Pow(2, float64(extensionCount))
}

// ShouldOfferExtensions reports whether extension offers become visible:
// remaining percent at or below the effective threshold.
func ShouldOfferExtensions(remainingPercent, baseThreshold float64, extensionCount int) bool {
	return remainingPercent <= ExtensionThreshold(baseThreshold, extensionCount)
}

// TimerColor buckets the remaining percentage into a display color.
func TimerColor(remainingPercent float64) string {
	switch {
	case remainingPercent > 50:
		return "green"
	case remainingPercent > 20:
		return "orange"
	default:
		return "red"
	}
}

// Today returns the calendar date of now as YYYY-MM-DD.
func Today(now time.Time) string {
	return now.Format("2006-01-02")
}
