package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/codeflow/panel/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("codeflow-panel", pflag.ContinueOnError)
	configPath := flags.String("config", "", "panel config path (default ~/.config/codeflow/panel.toml)")
	poll := flags.Duration("poll", 0, "status refresh interval, e.g. 5s (overrides poll_interval)")
	document := flags.String("document", "", "engine config document to edit (overrides document_path)")
	logLevel := flags.String("log-level", "", "debug, info, warn or error (overrides log_level)")
	prefsPath := flags.String("prefs", "", "UI preferences path (default ~/.config/codeflow/prefs.toml)")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "codeflow-panel: %v\n", err)
		return 2
	}
	if args := flags.Args(); len(args) > 0 {
		fmt.Fprintf(os.Stderr, "codeflow-panel: unexpected argument: %s\n", args[0])
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath:   *configPath,
		PrefsPath:    *prefsPath,
		PollInterval: *poll,
		DocumentPath: *document,
		LogLevel:     *logLevel,
	}
	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "codeflow-panel: %v\n", err)
		return 1
	}
	return 0
}
