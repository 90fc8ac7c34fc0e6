package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/sessionctl/internal/api"
	"github.com/five82/sessionctl/internal/config"
	"github.com/five82/sessionctl/internal/controller"
	"github.com/five82/sessionctl/internal/hub"
	"github.com/five82/sessionctl/internal/prefs"
	"github.com/five82/sessionctl/internal/state"
	"github.com/five82/sessionctl/internal/ui"
)

// Options configure the sessionctl application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/sessionctl/prefs.toml
	PollEvery  int    // milliseconds; zero uses the configured interval
	Headless   bool   // serve the HTTP control surface instead of the TUI
	Listen     string // overrides api_listen in headless mode
}

// Run boots the controller and its consumer until the context is cancelled
// or the TUI exits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var echo io.Writer
	if opts.Headless {
		echo = os.Stderr
	}
	logger, logFile, err := openLog(cfg.LogPath(), echo)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		return fmt.Errorf("load prefs: %w", err)
	}

	client, err := hub.NewClient(cfg.HubAddr)
	if err != nil {
		return fmt.Errorf("init hub client: %w", err)
	}

	interval := cfg.PollInterval
	if opts.PollEvery > 0 {
		interval = time.Duration(opts.PollEvery) * time.Millisecond
	}

	store := &state.Store{}
	ctrl := controller.New(client, store, controller.Options{
		Initiator:    cfg.InitiatorID,
		CallTimeout:  cfg.CallTimeout,
		ScanTimeout:  cfg.ScanTimeout,
		RefreshDelay: cfg.ResetRefreshDelay,
		SessionMode:  userPrefs.SessionMode,
		Logger:       logger,
	})

	logger.Info("sessionctl starting",
		"hub_addr", cfg.HubAddr,
		"push", cfg.Push,
		"poll_interval", interval,
		"headless", opts.Headless,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ctrl.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("controller: %w", err)
		}
		return nil
	})

	feedLogger := logger.With("component", "feed")
	if cfg.Push {
		StartSubscriber(gctx, ctrl, client, feedLogger)
	} else {
		StartPoller(gctx, ctrl, client, interval, feedLogger)
	}

	g.Go(func() error {
		// The consumer decides the lifetime of everything else.
		defer cancel()
		if opts.Headless {
			listen := cfg.APIListen
			if v := strings.TrimSpace(opts.Listen); v != "" {
				listen = v
			}
			return api.Serve(gctx, listen, ctrl, logger)
		}
		return ui.Run(ui.Options{
			Context:    gctx,
			Controller: ctrl,
			Prefs:      userPrefs,
			PrefsPath:  opts.PrefsPath,
			LogPath:    cfg.LogPath(),
			Logger:     logger.With("component", "ui"),
		})
	})

	err = g.Wait()
	logger.Info("sessionctl stopped", "error", errString(err))
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ Feed = (*controller.Controller)(nil)

