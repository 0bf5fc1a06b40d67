package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/dexsim/internal/config"
)

const usage = `Usage: dexsim [-env FILE] <command> [flags]

Commands:
  manual      interactive trading against a seeded book
  simulate    run automated traders and print a summary
  visualize   print the depth of a seeded book
  stats       run a short simulation and print book statistics
  replay      replay a YAML scenario file

Run 'dexsim <command> -h' for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run parses global flags, loads configuration and dispatches to a
// subcommand. Reports go to stdout; logs go to stderr.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("dexsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	envFile := fs.String("env", ".env", "optional env file with configuration")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.New(slog.NewJSONHandler(stderr, nil)).Error("failed to load config", slog.String("error", err.Error()))
		return 1
	}

	logger := newLogger(cfg.LogLevel, stderr)
	slog.SetDefault(logger)

	app := &app{cfg: cfg, logger: logger, stdin: stdin, stdout: stdout, stderr: stderr}

	var cmd func(context.Context, []string) error
	switch name := fs.Arg(0); name {
	case "manual":
		cmd = app.manual
	case "simulate":
		cmd = app.simulate
	case "visualize":
		cmd = app.visualize
	case "stats":
		cmd = app.stats
	case "replay":
		cmd = app.replay
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		fs.Usage()
		return 2
	}

	if err := cmd(ctx, fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		if errors.Is(err, context.Canceled) {
			logger.Info("interrupted")
			return 130
		}
		logger.Error("command failed", slog.String("command", fs.Arg(0)), slog.String("error", err.Error()))
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func newLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
}
