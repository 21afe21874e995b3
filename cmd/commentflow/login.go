package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"commentflow/internal/browser"
	"commentflow/internal/coordinator"
	"commentflow/internal/domain"
	"commentflow/internal/prefs"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const loginURL = "https://accounts.google.com/"

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [url]",
		Short: "Open Chrome to sign in to Google",
		Long:  "Opens a visible Chrome window on the commentflow profile. Sign in, then press Ctrl+C; the session is reused by 'commentflow stream'.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			url := loginURL
			if len(args) == 1 {
				url = args[0]
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bridge := browser.NewBridge(browser.BridgeConfig{ProfileDir: cfg.Browser.ProfileDir, Logger: logger})
			return bridge.Login(ctx, url)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, profile and streaming state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			configState := "defaults (no file)"
			if _, err := os.Stat(cfgPath); err == nil {
				configState = cfgPath
			}
			profileState := "not created; run 'commentflow login'"
			if info, err := os.Stat(cfg.Browser.ProfileDir); err == nil && info.IsDir() {
				profileState = cfg.Browser.ProfileDir
			}
			metricsState := "disabled"
			if cfg.Metrics.Enabled {
				metricsState = "http://" + cfg.Metrics.Addr + "/metrics"
			}
			panelState := "disabled"
			if cfg.Panel.Enabled {
				panelState = "http://" + cfg.Panel.Addr + "/"
			}

			streamingState := "unknown"
			store, err := prefs.NewSQLiteStore(cfg.Prefs.DBPath, logger)
			if err != nil {
				streamingState = fmt.Sprintf("store unavailable: %v", err)
			} else {
				defer store.Close()
				c := coordinator.New(coordinator.Config{Store: store, Logger: logger})
				resp, err := c.Handle(cmd.Context(), domain.GetIsEnabledStreaming{})
				switch {
				case err != nil:
					streamingState = err.Error()
				case !resp.Present:
					streamingState = "off (never set)"
				case resp.Flag:
					streamingState = "on"
				default:
					streamingState = "off"
				}
			}

			data := pterm.TableData{
				{"Item", "State"},
				{"Version", version},
				{"Config", configState},
				{"Chrome profile", profileState},
				{"Meeting URL", cfg.Browser.MeetURL},
				{"Preferences", cfg.Prefs.DBPath},
				{"Streaming", streamingState},
				{"Shortcut", cfg.Extractor.Shortcut},
				{"Delivery", fmt.Sprintf("burst %d, retry every %dms", cfg.Delivery.BurstSize, cfg.Delivery.IntervalMs)},
				{"Metrics", metricsState},
				{"Settings panel", panelState},
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
}
