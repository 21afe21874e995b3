package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"commentflow/internal/browser"
	"commentflow/internal/bus"
	"commentflow/internal/config"
	"commentflow/internal/coordinator"
	"commentflow/internal/extractor"
	"commentflow/internal/metrics"
	"commentflow/internal/panel"
	"commentflow/internal/prefs"
	"commentflow/internal/renderer"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func streamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream [meeting-url]",
		Short: "Open the meeting and stream its chat across the page",
		Long: `Launches Chrome on the saved profile, opens the meeting and flies every
new chat message across the page while streaming is enabled. Toggle
streaming with the configured shortcut (default Ctrl+Shift+S) or with
'commentflow prefs toggle'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Browser.MeetURL = args[0]
			}
			return runStream(cfg)
		},
	}
}

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func runStream(cfg *config.Config) error {
	shortcut, err := extractor.ParseShortcut(cfg.Extractor.Shortcut)
	if err != nil {
		return fmt.Errorf("extractor.shortcut: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := prefs.NewSQLiteStore(cfg.Prefs.DBPath, logger)
	if err != nil {
		return fmt.Errorf("preference store: %w", err)
	}
	defer store.Close()

	events := bus.NewEventBus(logger)
	requests := bus.New(64, logger)

	indicator := coordinator.NewBadgeIndicator(logger)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.Attach(events)
		indicator.OnChange(m.SetStreaming)
	}

	bridge := browser.NewBridge(browser.BridgeConfig{
		ProfileDir: cfg.Browser.ProfileDir,
		Headless:   cfg.Browser.Headless,
		Logger:     logger,
	})
	tabCtx, cancelTab := bridge.NewContext(ctx)
	defer cancelTab()

	session := browser.NewSession(tabCtx, browser.SessionConfig{
		MeetURL:   cfg.Browser.MeetURL,
		Selectors: browser.Selectors(cfg.Browser.Selectors),
		Shortcut:  shortcut,
		Renderer:  renderer.New(renderer.Config{Caller: requests, Events: events, Logger: logger}),
		Logger:    logger,
	})

	coord := coordinator.New(coordinator.Config{
		Store:     store,
		Tabs:      session,
		Indicator: indicator,
		Events:    events,
		BurstSize: cfg.Delivery.BurstSize,
		Logger:    logger,
	})
	if err := coord.SyncIndicator(ctx); err != nil {
		logger.Warn("cannot read streaming flag", "err", err)
	}

	dispatcher := coordinator.NewDispatcher(coordinator.DispatcherConfig{
		Interval: millis(cfg.Delivery.IntervalMs),
		Logger:   logger,
	}, requests, coord.Slot(), events)

	served := make(chan struct{})
	go func() {
		defer close(served)
		coord.Serve(ctx, requests)
	}()
	go dispatcher.Start(ctx)

	var metricsSrv *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "err", err)
			}
		}()
		logger.Info("metrics enabled", "addr", cfg.Metrics.Addr)
	}

	panelDone := make(chan struct{})
	if cfg.Panel.Enabled {
		settings := panel.New(panel.Config{Addr: cfg.Panel.Addr, Caller: requests, Events: events, Logger: logger})
		go func() {
			defer close(panelDone)
			if err := settings.Start(ctx); err != nil {
				logger.Error("settings panel error", "err", err)
			}
		}()
	} else {
		close(panelDone)
	}

	if err := session.Open(ctx); err != nil {
		stop()
		<-served
		<-panelDone
		requests.Close()
		return err
	}
	logger.Info("streaming session started. Press Ctrl+C to stop.", "shortcut", shortcut.String())

	var observers sync.WaitGroup
	pacing := millis(cfg.Extractor.PacingMs)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-tabCtx.Done():
			logger.Info("browser closed")
			break loop
		case p, ok := <-session.Pages():
			if !ok {
				break loop
			}
			observers.Add(1)
			go func() {
				defer observers.Done()
				ex := extractor.New(extractor.Config{Caller: requests, Pacing: pacing, Events: events, Logger: logger})
				if err := ex.Run(ctx, p); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("observer ended", "page", p.ID(), "err", err)
				}
			}()
		case ev := <-session.Keys():
			go extractor.ToggleOnShortcut(ctx, requests, shortcut, ev, logger)
		}
	}

	logger.Info("shutting down...")
	stop()
	session.Close()
	<-served
	<-panelDone
	requests.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		observers.Wait()
		session.Wait()
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}
