package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/guseggert/pyconsole/console"
	"github.com/guseggert/pyconsole/internal/config"
	"github.com/guseggert/pyconsole/transport"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "pyconsole",
		Usage: "an interactive console for remotely executed Python",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the config file. Defaults to the nearest " + config.FileName + " at or above the working directory.",
			},
			&cli.StringFlag{
				Name:  "backend-url",
				Usage: "Base URL of the execution backend.",
			},
			&cli.StringFlag{
				Name:  "transport",
				Usage: "How run output is streamed. One of [http,websocket].",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "One of [debug,info,warn,error].",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "tui",
				Usage:     "open the interactive console",
				ArgsUsage: "[file.py]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "theme",
						Usage: "One of [dark,light].",
					},
				},
				Action: tuiAction,
			},
			{
				Name:      "run",
				Usage:     "run a file once, answering prompts from stdin",
				ArgsUsage: "file.py",
				Action:    runAction,
			},
			{
				Name:  "serve",
				Usage: "run the reference execution backend",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen-addr",
						Usage: "The address for the HTTP server to listen on.",
					},
					&cli.StringFlag{
						Name:  "interpreter",
						Usage: `The command that runs code, which is passed as its last argument, e.g. "python3 -u -c".`,
					},
					&cli.DurationFlag{
						Name:  "settle",
						Usage: "How long a send waits for the program to go quiet.",
					},
				},
				Action: serveAction,
			},
		},
		Action: tuiAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file and applies the global flags over it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working dir: %w", err)
		}
		path, err = config.Find(wd)
		if err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if c.IsSet("backend-url") {
		cfg.BackendURL = c.String("backend-url")
	}
	if c.IsSet("transport") {
		cfg.Transport = c.String("transport")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("theme") {
		cfg.Theme = c.String("theme")
	}
	if c.IsSet("listen-addr") {
		cfg.Backend.ListenAddr = c.String("listen-addr")
	}
	if c.IsSet("interpreter") {
		cfg.Backend.Interpreter = strings.Fields(c.String("interpreter"))
	}
	if c.IsSet("settle") {
		cfg.Backend.Settle = c.Duration("settle")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func newTransport(cfg *config.Config, l *zap.Logger) (console.Transport, error) {
	opts := []transport.ClientOption{
		transport.WithClientLogger(l),
		transport.WithRetryMax(cfg.RetryMax),
	}
	if cfg.ResponseTimeout > 0 {
		opts = append(opts, transport.WithCustomizeRetryableClient(responseTimeout(cfg.ResponseTimeout)))
	}
	if cfg.Transport == config.TransportWebSocket {
		c, err := transport.NewWSClient(cfg.BackendURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("building WebSocket client: %w", err)
		}
		return c, nil
	}
	c, err := transport.NewClient(cfg.BackendURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("building HTTP client: %w", err)
	}
	return c, nil
}

// responseTimeout bounds the wait for response headers. A run's body streams for as long as
// the program runs, so the whole request can't be bounded.
func responseTimeout(d time.Duration) func(*retryablehttp.Client) {
	return func(r *retryablehttp.Client) {
		if t, ok := r.HTTPClient.Transport.(*http.Transport); ok {
			t.ResponseHeaderTimeout = d
		}
	}
}

func newSession(cfg *config.Config, t console.Transport, l *zap.Logger, opts ...console.Option) *console.Session {
	opts = append([]console.Option{
		console.WithLogger(l),
		console.WithSaver(console.DirSaver{Dir: cfg.SaveDir}),
		console.WithEchoPrompts(cfg.EchoPrompts),
	}, opts...)
	return console.NewSession(t, opts...)
}
