package tui

import (
	"time"

	"atelier/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type Options struct {
	Dir     string
	ActorID string
	// Logger must not write to the terminal; the CLI passes a --log-file logger or a nop.
	Logger *zap.Logger
	// DuplicateTimeout bounds each duplicate/undo call (0 disables the bound).
	DuplicateTimeout time.Duration
}

func Run(opts Options) error {
	applyThemePreference()
	applyColorProfilePreference()

	if err := (store.Store{Dir: opts.Dir}).Ensure(); err != nil {
		return err
	}
	m := newAppModel(opts)
	defer m.resetWorkflows()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
