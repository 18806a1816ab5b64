package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guseggert/pyconsole/console"
	"github.com/guseggert/pyconsole/internal/watch"
	"go.uber.org/zap"
)

type Options struct {
	Theme Theme
	// SourcePath, if set, is loaded at startup and reloaded whenever it changes.
	SourcePath string
	Logger     *zap.Logger
}

// Run shows the console until the user quits.
func Run(ctx context.Context, session *console.Session, opts Options) error {
	log := zap.NewNop()
	if opts.Logger != nil {
		log = opts.Logger
	}

	if opts.SourcePath != "" {
		f, err := os.Open(opts.SourcePath)
		if err != nil {
			return fmt.Errorf("opening source: %w", err)
		}
		err = session.LoadSource(opts.SourcePath, f)
		f.Close()
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := tea.NewProgram(New(ctx, session, opts.Theme), tea.WithAltScreen(), tea.WithContext(ctx))

	if opts.SourcePath != "" {
		w, err := watch.New(opts.SourcePath, func(src string) {
			p.Send(SourceChangedMsg{Source: src})
		}, watch.WithLogger(log))
		if err != nil {
			return fmt.Errorf("watching source: %w", err)
		}
		defer w.Close()
	}

	_, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
