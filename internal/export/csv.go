package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/lockstep/internal/history"
	"github.com/sadopc/lockstep/internal/timeutil"
)

// HistoryToCSV writes one row per completed session across all daily
// summaries.
func HistoryToCSV(summaries []history.DailySummary, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	// Header
	header := []string{"Date", "Session", "Started", "Completed", "Tasks", "Tasks Done", "Planned", "Actual", "Extensions", "Pauses"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, day := range summaries {
		for _, sess := range day.Sessions {
			startedStr := ""
			if sess.StartedAt != nil {
				startedStr = sess.StartedAt.Local().Format(time.RFC3339)
			}
			completedStr := ""
			if sess.CompletedAt != nil {
				completedStr = sess.CompletedAt.Local().Format(time.RFC3339)
			}

			row := []string{
				day.Date,
				sess.ID,
				startedStr,
				completedStr,
				fmt.Sprintf("%d", len(sess.Tasks)),
				fmt.Sprintf("%d", sess.CompletedTaskCount()),
				timeutil.FormatDuration(sess.TotalPlannedMs),
				timeutil.FormatDuration(sess.TotalActualMs),
				fmt.Sprintf("%d", sess.ExtensionCount()),
				fmt.Sprintf("%d", len(sess.PauseEvents)),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	return w.Error()
}
