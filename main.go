package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/sadopc/lockstep/internal/storage"
	"github.com/sadopc/lockstep/internal/store"
	"github.com/sadopc/lockstep/internal/tui"
)

func main() {
	dbPath, err := storage.DefaultDBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	db, err := storage.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	s := store.New(db, newLogger(dbPath))

	app := tui.NewApp(s)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger writes structured logs next to the database. Stderr belongs
// to the TUI, so logging is discarded when the file cannot be opened.
func newLogger(dbPath string) zerolog.Logger {
	var w io.Writer = io.Discard
	if dbPath != "" {
		logPath := filepath.Join(filepath.Dir(dbPath), "lockstep.log")
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		}
	}
	level := zerolog.InfoLevel
	if os.Getenv("LOCKSTEP_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
