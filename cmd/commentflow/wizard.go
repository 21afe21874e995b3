package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"commentflow/internal/config"
	"commentflow/internal/coordinator"
	"commentflow/internal/domain"
	"commentflow/internal/prefs"

	"github.com/spf13/cobra"
)

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: meeting → color → size → font → save",
		Long:  "Guides you through the meeting URL, comment appearance and delivery mode. Writes the config to the path used by --config or default, and the appearance to the preference store.",
		RunE:  runWizard,
	}
}

// chooser prompts on stdin with a default shown in brackets.
type chooser struct {
	reader *bufio.Reader
}

func (c chooser) prompt(def string) (string, error) {
	if def != "" {
		fmt.Fprintf(os.Stdout, " [%s]: ", def)
	} else {
		fmt.Fprint(os.Stdout, ": ")
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(line)
	if s == "" {
		return def, nil
	}
	return s, nil
}

// pick lists options and returns the chosen one. Out-of-range input keeps
// the default.
func (c chooser) pick(title string, options []string, current string) (string, error) {
	fmt.Printf("\n--- %s ---\n", title)
	def := 1
	for i, o := range options {
		label := o
		if label == "" {
			label = "(page default)"
		}
		fmt.Fprintf(os.Stdout, "  %d) %s\n", i+1, label)
		if o == current {
			def = i + 1
		}
	}
	fmt.Fprintf(os.Stdout, "Choose (1-%d)", len(options))
	choice, err := c.prompt(strconv.Itoa(def))
	if err != nil {
		return "", err
	}
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 1 || idx > len(options) {
		idx = def
	}
	return options[idx-1], nil
}

func runWizard(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c := chooser{reader: bufio.NewReader(os.Stdin)}

	// Step 1: Meeting
	fmt.Println("\n--- Step 1: Meeting ---")
	fmt.Fprint(os.Stdout, "Meeting URL opened by 'commentflow stream'")
	url, err := c.prompt(cfg.Browser.MeetURL)
	if err != nil {
		return err
	}
	cfg.Browser.MeetURL = url

	store, err := prefs.NewSQLiteStore(cfg.Prefs.DBPath, logger)
	if err != nil {
		return fmt.Errorf("preference store: %w", err)
	}
	defer store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	coord := coordinator.New(coordinator.Config{Store: store, Logger: logger})

	current := func(req domain.Request) string {
		resp, err := coord.Handle(ctx, req)
		if err != nil {
			return ""
		}
		return resp.Value
	}

	// Steps 2-4: Appearance
	color, err := c.pick("Step 2: Comment color (auto uses the sender's avatar color)", domain.Colors, current(domain.GetColor{}))
	if err != nil {
		return err
	}
	size, err := c.pick("Step 3: Font size", domain.FontSizes, lookupOr(current(domain.GetFontSize{}), domain.FontSizeL))
	if err != nil {
		return err
	}
	family, err := c.pick("Step 4: Font family", domain.FontFamilies, current(domain.GetFontFamily{}))
	if err != nil {
		return err
	}

	// Step 5: Delivery
	fmt.Println("\n--- Step 5: Delivery ---")
	fmt.Fprint(os.Stdout, "Comments held while one is on screen (1 keeps only the latest)")
	burst, err := c.prompt(strconv.Itoa(cfg.Delivery.BurstSize))
	if err != nil {
		return err
	}
	if n, err := strconv.Atoi(burst); err == nil {
		cfg.Delivery.BurstSize = n
	}

	// Save
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	for _, req := range []domain.Request{
		domain.SetColor{Value: color},
		domain.SetFontSize{Value: size},
		domain.SetFontFamily{Value: family},
	} {
		if _, err := coord.Handle(ctx, req); err != nil {
			return fmt.Errorf("save preference: %w", err)
		}
	}

	fmt.Fprintf(os.Stdout, "\nConfig saved to %s\n", cfgPath)
	fmt.Println("Next: run 'commentflow login' once to sign in, then 'commentflow stream'.")
	return nil
}

func lookupOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
