package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"commentflow/internal/coordinator"
	"commentflow/internal/domain"
	"commentflow/internal/prefs"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// prefSpec maps a CLI preference name to its coordinator requests.
type prefSpec struct {
	key     string // backing store cell
	values  []string
	get     domain.Request
	set     func(v string) domain.Request
	isBool  bool
	display func(resp domain.Response) string
}

func stringValue(resp domain.Response) string {
	if !resp.Present {
		return "(unset)"
	}
	if resp.Value == "" {
		return `""`
	}
	return resp.Value
}

var prefSpecs = map[string]prefSpec{
	"color": {
		key:     domain.KeyColor,
		values:  domain.Colors,
		get:     domain.GetColor{},
		set:     func(v string) domain.Request { return domain.SetColor{Value: v} },
		display: stringValue,
	},
	"fontSize": {
		key:     domain.KeyFontSize,
		values:  domain.FontSizes,
		get:     domain.GetFontSize{},
		set:     func(v string) domain.Request { return domain.SetFontSize{Value: v} },
		display: stringValue,
	},
	"fontFamily": {
		key:     domain.KeyFontFamily,
		values:  domain.FontFamilies,
		get:     domain.GetFontFamily{},
		set:     func(v string) domain.Request { return domain.SetFontFamily{Value: v} },
		display: stringValue,
	},
	"streaming": {
		key:    domain.KeyIsEnabledStreaming,
		values: []string{"true", "false"},
		get:    domain.GetIsEnabledStreaming{},
		set: func(v string) domain.Request {
			b, _ := strconv.ParseBool(v)
			return domain.SetIsEnabledStreaming{Value: b}
		},
		isBool: true,
		display: func(resp domain.Response) string {
			if !resp.Present {
				return "(unset)"
			}
			return strconv.FormatBool(resp.Flag)
		},
	},
}

var prefNames = []string{"color", "fontSize", "fontFamily", "streaming"}

func lookupPref(name string) (prefSpec, error) {
	spec, ok := prefSpecs[name]
	if !ok {
		return prefSpec{}, fmt.Errorf("unknown preference %q (one of: %s)", name, strings.Join(prefNames, ", "))
	}
	return spec, nil
}

// normalizePref validates value against the preference's vocabulary and
// returns it in canonical form.
func normalizePref(spec prefSpec, value string) (string, error) {
	if spec.isBool {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("expected true or false, got %q", value)
		}
		return strconv.FormatBool(b), nil
	}
	if match, ok := lo.Find(spec.values, func(v string) bool { return strings.EqualFold(v, value) }); ok {
		return match, nil
	}
	quoted := lo.Map(spec.values, func(v string, _ int) string { return strconv.Quote(v) })
	return "", fmt.Errorf("invalid value %q (one of: %s)", value, strings.Join(quoted, ", "))
}

// withCoordinator runs fn against a coordinator over the configured store.
// No tab is attached, so only preference requests are meaningful.
func withCoordinator(fn func(ctx context.Context, c *coordinator.Coordinator, store *prefs.SQLiteStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := prefs.NewSQLiteStore(cfg.Prefs.DBPath, logger)
	if err != nil {
		return fmt.Errorf("preference store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fn(ctx, coordinator.New(coordinator.Config{Store: store, Logger: logger}), store)
}

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "View and change display preferences",
		Long: `Preferences are read by a running 'commentflow stream' on every comment,
so changes apply to the next comment without a restart.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "get [name]",
		Short:     "Show one preference (color, fontSize, fontFamily, streaming)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: prefNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := lookupPref(args[0])
			if err != nil {
				return err
			}
			return withCoordinator(func(ctx context.Context, c *coordinator.Coordinator, _ *prefs.SQLiteStore) error {
				resp, err := c.Handle(ctx, spec.get)
				if err != nil {
					return err
				}
				fmt.Println(spec.display(resp))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [name] [value]",
		Short: "Change a preference (e.g. prefs set color auto)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := lookupPref(args[0])
			if err != nil {
				return err
			}
			value, err := normalizePref(spec, args[1])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return withCoordinator(func(ctx context.Context, c *coordinator.Coordinator, _ *prefs.SQLiteStore) error {
				if _, err := c.Handle(ctx, spec.set(value)); err != nil {
					return err
				}
				pterm.Success.Printfln("%s = %s", args[0], value)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Toggle streaming on or off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCoordinator(func(ctx context.Context, c *coordinator.Coordinator, _ *prefs.SQLiteStore) error {
				resp, err := c.Handle(ctx, domain.ToggleIsEnabledStreaming{})
				if err != nil {
					return err
				}
				if resp.Flag {
					pterm.Success.Println("Streaming enabled")
				} else {
					pterm.Info.Println("Streaming disabled")
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all preferences and their allowed values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCoordinator(func(ctx context.Context, c *coordinator.Coordinator, store *prefs.SQLiteStore) error {
				stored, err := store.All(ctx)
				if err != nil {
					return err
				}
				updated := lo.SliceToMap(stored, func(p domain.Preference) (string, time.Time) {
					return p.Key, p.UpdatedAt
				})

				data := pterm.TableData{{"Name", "Value", "Allowed", "Updated"}}
				for _, name := range prefNames {
					spec := prefSpecs[name]
					resp, err := c.Handle(ctx, spec.get)
					if err != nil {
						return err
					}
					when := "-"
					if t, ok := updated[spec.key]; ok {
						when = t.Local().Format(time.DateTime)
					}
					allowed := lo.Map(spec.values, func(v string, _ int) string {
						return lo.Ternary(v == "", `""`, v)
					})
					data = append(data, []string{name, spec.display(resp), strings.Join(allowed, " "), when})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			})
		},
	})

	var limit int
	history := &cobra.Command{
		Use:   "history [name]",
		Short: "Show previous values of a preference, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := lookupPref(args[0])
			if err != nil {
				return err
			}
			return withCoordinator(func(ctx context.Context, _ *coordinator.Coordinator, store *prefs.SQLiteStore) error {
				values, err := store.History(ctx, spec.key, limit)
				if err != nil {
					return err
				}
				if len(values) == 0 {
					pterm.Info.Printfln("No history for %s", args[0])
					return nil
				}
				data := pterm.TableData{{"#", "Value"}}
				for i, v := range values {
					data = append(data, []string{strconv.Itoa(i + 1), lo.FromPtrOr(v, "(deleted)")})
				}
				return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
			})
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of entries")
	cmd.AddCommand(history)

	return cmd
}
