package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/guseggert/pyconsole/backend"
	"github.com/guseggert/pyconsole/console"
	"github.com/guseggert/pyconsole/internal/logging"
	"github.com/guseggert/pyconsole/internal/net"
	"github.com/guseggert/pyconsole/tui"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
)

func tuiAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	// the TUI owns the terminal, so logs go to a file
	l, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer l.Sync()

	t, err := newTransport(cfg, l)
	if err != nil {
		return err
	}
	session := newSession(cfg, t, l)
	return tui.Run(c.Context, session, tui.Options{
		Theme:      tui.ThemeByName(cfg.Theme),
		SourcePath: c.Args().First(),
		Logger:     l,
	})
}

func runAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("run takes exactly one file", 2)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer l.Sync()

	t, err := newTransport(cfg, l)
	if err != nil {
		return err
	}
	changed := make(chan struct{}, 1)
	session := newSession(cfg, t, l, console.WithOnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	path := c.Args().First()
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	err = session.LoadSource(path, f)
	f.Close()
	if err != nil {
		return err
	}

	err = waitForBackend(c.Context, t, cfg.WaitTimeout)
	if err != nil {
		return cli.Exit(fmt.Sprintf("backend at %s is not reachable: %s", cfg.BackendURL, err), 1)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	p := &linePrinter{w: c.App.Writer, history: session.History()}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				p.print()
			}
		}
	}()

	// stdin is never closed under us, so this goroutine may outlive the run
	go forwardLines(ctx, session, os.Stdin)

	runErr := session.Run(ctx)
	cancel()
	wg.Wait()
	p.print()

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("run failed: %s", runErr), 1)
	}
	return nil
}

// waitForBackend polls the backend's heartbeat for up to d, so a backend that is still
// starting doesn't fail the run. A zero d skips the wait.
func waitForBackend(ctx context.Context, t console.Transport, d time.Duration) error {
	w, ok := t.(interface {
		WaitForServer(ctx context.Context) error
	})
	if !ok || d == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return w.WaitForServer(ctx)
}

// forwardLines submits each line read from r until ctx is done.
func forwardLines(ctx context.Context, session *console.Session, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		session.Submit(ctx, scanner.Text())
	}
}

// linePrinter writes history lines that haven't been written yet.
type linePrinter struct {
	mu      sync.Mutex
	w       io.Writer
	history *console.History
	printed int
}

func (p *linePrinter) print() {
	p.mu.Lock()
	defer p.mu.Unlock()
	lines := p.history.Snapshot()
	if len(lines) < p.printed {
		// cleared
		p.printed = 0
	}
	for _, line := range lines[p.printed:] {
		fmt.Fprintln(p.w, line)
	}
	p.printed = len(lines)
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l, err := logging.New(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer l.Sync()

	addr, err := net.ResolveListenAddr(cfg.Backend.ListenAddr)
	if err != nil {
		return err
	}
	if addr != cfg.Backend.ListenAddr {
		fmt.Fprintf(c.App.Writer, "listening on http://%s\n", addr)
	}

	opts := []backend.Option{
		backend.WithLogger(l),
		backend.WithListenAddr(addr),
		backend.WithInterpreter(cfg.Backend.Interpreter...),
		backend.WithSettle(cfg.Backend.Settle),
	}
	if cfg.Backend.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.Backend.LogLevel)
		if err != nil {
			return fmt.Errorf("parsing backend log level: %w", err)
		}
		// after WithLogger, which it modifies
		opts = append(opts, backend.WithLogLevel(lvl))
	}
	server, err := backend.NewServer(opts...)
	if err != nil {
		return fmt.Errorf("building backend: %w", err)
	}

	go func() {
		<-c.Context.Done()
		server.Stop()
	}()

	err = server.Run()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
