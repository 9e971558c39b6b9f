package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/lockstep/internal/history"
	"github.com/sadopc/lockstep/internal/store"
	"github.com/sadopc/lockstep/internal/timeutil"
)

// historyModel renders per-day summaries of past sessions: a bar chart of
// actual focus hours over a 7-day window plus a detail table.
type historyModel struct {
	store  *store.Store
	width  int
	height int

	offset int // 7-day blocks back from today (0 = current)

	chart barchart.Model
}

func newHistoryModel(s *store.Store) historyModel {
	return historyModel{
		store: s,
		chart: barchart.New(60, 12),
	}
}

func (h *historyModel) setSize(w, h2 int) {
	h.width = w
	h.height = h2
}

func (h historyModel) dateRange() (time.Time, time.Time) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	end := today.AddDate(0, 0, 1-7*h.offset)
	start := end.AddDate(0, 0, -7)
	return start, end
}

func (h historyModel) update(msg tea.Msg, snap store.Snapshot) (historyModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return h, nil
	}
	switch {
	case key.Matches(keyMsg, keys.Left):
		h.offset++
	case key.Matches(keyMsg, keys.Right):
		if h.offset > 0 {
			h.offset--
		}
	}
	return h, nil
}

func (h *historyModel) buildChart(summaries []history.DailySummary) {
	chartWidth := h.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if h.height > 30 {
		chartHeight = 16
	}

	h.chart = barchart.New(chartWidth, chartHeight)

	from, to := h.dateRange()

	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format("2006-01-02")
		label := d.Format("Mon 02")

		var values []barchart.BarValue
		if summary, ok := history.ForDate(summaries, dateStr); ok {
			hours := timeutil.MsToHours(summary.ActualTimeMs)
			values = append(values, barchart.BarValue{
				Name:  "focus",
				Value: hours,
				Style: lipgloss.NewStyle().Foreground(colorPrimary),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}

		bars = append(bars, barchart.BarData{
			Label:  label,
			Values: values,
		})
	}

	h.chart.PushAll(bars)
	h.chart.Draw()
}

func (h historyModel) view(snap store.Snapshot) string {
	w := h.width - 4

	h.buildChart(snap.History)

	from, to := h.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf(
		"%s — %s", from.Format("Jan 02"), to.Add(-24*time.Hour).Format("Jan 02, 2006"),
	))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("History"), "  ", dateLabel,
	)

	chartView := h.chart.View()
	tableView := h.renderTable(snap.History, w)
	totalsView := h.renderTotals(snap.History)

	nav := mutedStyle.Render("  ←/→: navigate weeks")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", chartView, "", tableView, "", totalsView, "", nav,
		),
	)
}

func (h historyModel) renderTable(summaries []history.DailySummary, w int) string {
	from, to := h.dateRange()

	var rows []string
	headerRow := mutedStyle.Render(fmt.Sprintf(
		"  %-12s %6s %7s %10s %10s %5s %7s",
		"Date", "Tasks", "Done", "Planned", "Actual", "Ext", "Pauses",
	))
	rows = append(rows, headerRow)
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 62))))

	shown := 0
	for _, s := range summaries {
		d, err := time.ParseInLocation("2006-01-02", s.Date, time.Local)
		if err != nil || d.Before(from) || !d.Before(to) {
			continue
		}
		rows = append(rows, fmt.Sprintf("  %-12s %6d %7d %10s %10s %5d %7d",
			s.Date, s.TasksPlanned, s.TasksCompleted,
			timeutil.FormatDuration(s.PlannedTimeMs),
			timeutil.FormatDuration(s.ActualTimeMs),
			s.ExtensionsUsed, s.PausesUsed,
		))
		shown++
	}

	if shown == 0 {
		return mutedStyle.Render("  No sessions in this period")
	}
	return strings.Join(rows, "\n")
}

func (h historyModel) renderTotals(summaries []history.DailySummary) string {
	totals := history.Sum(summaries)
	if totals.TasksPlanned == 0 {
		return ""
	}
	return highlightStyle.Render(fmt.Sprintf(
		"  All time: %d/%d tasks done, %s focused, %d extensions, %d pauses",
		totals.TasksCompleted, totals.TasksPlanned,
		timeutil.FormatDuration(totals.ActualTimeMs),
		totals.ExtensionsUsed, totals.PausesUsed,
	))
}
