package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Browser: BrowserConfig{
			ProfileDir: "~/.commentflow/chrome-profile",
			Headless:   false,
			MeetURL:    "https://meet.google.com/",
		},
		Prefs: PrefsConfig{
			DBPath: "~/.commentflow/prefs.db",
		},
		Extractor: ExtractorConfig{
			PacingMs: 250,
			Shortcut: "Ctrl+Shift+S",
		},
		Delivery: DeliveryConfig{
			IntervalMs: 2000,
			BurstSize:  1,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9477",
		},
		Panel: PanelConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9478",
		},
	}
}

// ExpandPaths resolves ~/ in every path-valued field. Load does this for
// file configs; callers falling back to Defaults should call it themselves.
func ExpandPaths(cfg *Config) {
	cfg.Browser.ProfileDir = ExpandPath(cfg.Browser.ProfileDir)
	cfg.Prefs.DBPath = ExpandPath(cfg.Prefs.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
}
