package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"commentflow/internal/config"
	"commentflow/internal/extractor"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your commentflow installation",
		Long: `Verifies that the configuration, preference database, Chrome binary and
profile are set up for streaming. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("commentflow doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file
			var cfg *config.Config
			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s (using defaults)", cfgPath))
				warned++
				cfg = config.Defaults()
				config.ExpandPaths(cfg)
			} else {
				printPass("Config file", cfgPath)
				passed++

				loaded, err := config.Load(cfgPath)
				if err != nil {
					printFail("Config validation", err.Error())
					failed++
					fmt.Printf("\n%d passed, %d failed\n", passed, failed)
					return fmt.Errorf("config invalid")
				}
				printPass("Config validation", "valid")
				passed++
				cfg = loaded
			}

			// 2. Preference database writable
			if err := checkDatabase(cfg.Prefs.DBPath); err != nil {
				printFail("Preferences", err.Error())
				failed++
			} else {
				printPass("Preferences", cfg.Prefs.DBPath)
				passed++
			}

			// 3. Chrome binary
			if path, err := findChrome(); err != nil {
				printFail("Chrome", err.Error())
				failed++
			} else {
				printPass("Chrome", path)
				passed++
			}

			// 4. Profile
			if info, err := os.Stat(cfg.Browser.ProfileDir); err != nil || !info.IsDir() {
				printWarn("Chrome profile", "missing; run 'commentflow login' to sign in")
				warned++
			} else {
				printPass("Chrome profile", cfg.Browser.ProfileDir)
				passed++
			}

			// 5. Shortcut
			if sc, err := extractor.ParseShortcut(cfg.Extractor.Shortcut); err != nil {
				printFail("Shortcut", err.Error())
				failed++
			} else {
				printPass("Shortcut", sc.String())
				passed++
			}

			// 6. Metrics address
			if cfg.Metrics.Enabled {
				if err := checkAddr(cfg.Metrics.Addr); err != nil {
					printWarn("Metrics addr", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Addr, err))
					warned++
				} else {
					printPass("Metrics addr", cfg.Metrics.Addr+" available")
					passed++
				}
			}

			// 7. Panel address
			if cfg.Panel.Enabled {
				if err := checkAddr(cfg.Panel.Addr); err != nil {
					printWarn("Panel addr", fmt.Sprintf("%s may be in use: %v", cfg.Panel.Addr, err))
					warned++
				} else {
					printPass("Panel addr", cfg.Panel.Addr+" available")
					passed++
				}
			}

			// 8. Log file writable
			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", cfg.General.LogFile)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before streaming.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ncommentflow should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! Run 'commentflow stream' to start.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

// chromeCandidates are tried in order when locating a Chrome binary.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

func findChrome() (string, error) {
	if runtime.GOOS == "darwin" {
		const app = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(app); err == nil {
			return app, nil
		}
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no Chrome or Chromium found in PATH")
}

func checkAddr(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
