package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codeflow/panel/internal/config"
	"github.com/codeflow/panel/internal/configsync"
	"github.com/codeflow/panel/internal/docstore"
	"github.com/codeflow/panel/internal/engine"
	"github.com/codeflow/panel/internal/logger"
	"github.com/codeflow/panel/internal/logstream"
	"github.com/codeflow/panel/internal/prefs"
	"github.com/codeflow/panel/internal/status"
	"github.com/codeflow/panel/internal/ui"
)

// Options configure the panel. Zero values keep what the config file says.
type Options struct {
	ConfigPath   string
	PrefsPath    string // empty uses default ~/.config/codeflow/prefs.toml
	PollInterval time.Duration
	DocumentPath string
	LogLevel     string
}

// Run boots the panel TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Path: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Close()

	userPrefs := prefs.Load(opts.PrefsPath)

	client, err := engine.NewClient(cfg.APIBind, engine.Options{
		StatusPath: cfg.StatusPath,
		LogsPath:   cfg.LogsPath,
	})
	if err != nil {
		return fmt.Errorf("init engine client: %w", err)
	}

	source, err := docstore.NewFileSource(cfg.DocumentPath)
	if err != nil {
		return fmt.Errorf("init config document: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	poller := status.New(status.Options{Fetcher: client, Logger: log.SugaredLogger})
	defer poller.Stop()
	if err := poller.Start(cfg.PollInterval); err != nil {
		return fmt.Errorf("start status poller: %w", err)
	}

	stream := logstream.New(logstream.Options{
		Addr:   client.LogsURL(),
		Dialer: engine.NewWebsocketDialer(),
		Logger: log.SugaredLogger,
	})
	defer stream.Close()

	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Add(1)
	go func() {
		defer wg.Done()
		superviseStream(runCtx, stream, cfg, log)
	}()

	controller := configsync.New(configsync.Options{
		Source:        source,
		Codec:         docstore.CodecFor(source.Path),
		Logger:        log.SugaredLogger,
		ConflictCheck: cfg.ConflictCheck,
	})
	defer controller.Close()

	log.Infow("panel_started",
		"api_bind", cfg.APIBind,
		"document", source.Path,
		"poll_interval", cfg.PollInterval,
		"reconnect", cfg.Reconnect,
	)

	err = ui.Run(ui.Options{
		Context:   runCtx,
		Poller:    poller,
		Logs:      stream,
		Config:    controller,
		Settings:  &cfg,
		Logger:    log.SugaredLogger,
		ThemeName: userPrefs.Theme,
		View:      ui.ParseView(userPrefs.View),
		PrefsPath: opts.PrefsPath,
	})
	cancel()
	if err != nil {
		log.Errorw("panel_ui_failed", "err", err)
		return err
	}
	log.Infow("panel_stopped")
	return nil
}

// loadSettings reads the config file and applies command-line overrides.
func loadSettings(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load panel config: %w", err)
	}
	if opts.PollInterval < 0 {
		return config.Config{}, fmt.Errorf("poll interval must be positive, got %s", opts.PollInterval)
	}
	if opts.PollInterval > 0 {
		cfg.PollInterval = opts.PollInterval
	}
	if path := strings.TrimSpace(opts.DocumentPath); path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("resolve document path: %w", err)
		}
		cfg.DocumentPath = expanded
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	return cfg, nil
}

// superviseStream connects the log stream once, or keeps it connected when
// reconnect is enabled. It returns when ctx is done or retries run out.
func superviseStream(ctx context.Context, stream *logstream.Client, cfg config.Config, log *logger.Logger) {
	if !cfg.Reconnect {
		if err := stream.Connect(ctx); err != nil && !errors.Is(err, logstream.ErrClosed) {
			log.Warnw("ws_connect_failed", "addr", stream.Addr(), "err", err)
		}
		return
	}
	r := logstream.NewReconnector(stream, logstream.ReconnectOptions{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Logger:      log.SugaredLogger,
	})
	err := r.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, logstream.ErrRetriesExhausted):
		log.Warnw("ws_reconnect_stopped", "addr", stream.Addr(), "max_attempts", cfg.ReconnectMaxAttempts)
	default:
		log.Warnw("ws_supervisor_failed", "addr", stream.Addr(), "err", err)
	}
}
