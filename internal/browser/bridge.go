// Package browser drives the meeting tab through the Chrome DevTools
// Protocol: it launches Chrome on a persistent profile, watches the page
// for new chat messages, and draws comments over it.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chromedp/chromedp"
)

// DefaultMeetURL is opened when no meeting URL is configured.
const DefaultMeetURL = "https://meet.google.com/"

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Bridge launches Chrome instances that share one user profile, so a Google
// login done once with Login is reused by every streaming session.
type Bridge struct {
	profileDir string
	headless   bool
	logger     *slog.Logger
}

// BridgeConfig holds configuration for the browser bridge.
type BridgeConfig struct {
	ProfileDir string // Chrome user data directory (persists cookies/sessions)
	Headless   bool   // Run headless (true) or with visible UI (false)
	Logger     *slog.Logger
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.ProfileDir == "" {
		cfg.ProfileDir = DefaultProfileDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		profileDir: cfg.ProfileDir,
		headless:   cfg.Headless,
		logger:     cfg.Logger,
	}
}

// DefaultProfileDir is ~/.commentflow/chrome-profile.
func DefaultProfileDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".commentflow", "chrome-profile")
}

// ProfileDir returns the Chrome user data directory in use.
func (b *Bridge) ProfileDir() string { return b.profileDir }

func (b *Bridge) allocatorOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.profileDir),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.UserAgent(userAgent),
	)
	if headless {
		return append(opts, chromedp.Headless)
	}
	return append(opts, chromedp.Flag("headless", false))
}

// NewContext creates a new chromedp context with the bridge's Chrome profile.
// The caller MUST call cancel() when done.
func (b *Bridge) NewContext(parentCtx context.Context) (context.Context, context.CancelFunc) {
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		b.logger.Error("failed to create profile dir", "dir", b.profileDir, "err", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, b.allocatorOptions(b.headless)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	cancelAll := func() {
		taskCancel()
		allocCancel()
	}

	return taskCtx, cancelAll
}

// Login opens a visible browser for the user to log in manually.
// After login, cookies are saved in the profile directory.
func (b *Bridge) Login(ctx context.Context, url string) error {
	if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	b.logger.Info("opening browser for login", "url", url)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions(false)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	if err := chromedp.Run(taskCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}

	b.logger.Info("browser opened. Please log in manually. Press Ctrl+C when done.")

	<-ctx.Done()

	b.logger.Info("login session saved", "profile", b.profileDir)
	return nil
}
