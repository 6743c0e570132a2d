package config

import "github.com/spf13/cobra"

// Flags are the command line overrides shared by every command.
type Flags struct {
	ConfigFile string
	Dev        bool
	LogPath    string
	Prefs      string
	Offline    bool
}

func (f *Flags) Register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.ConfigFile, "config", "", "Path to a cognix.yaml config file")
	cmd.PersistentFlags().BoolVar(&f.Dev, "dev", false, "Development mode")
	cmd.PersistentFlags().StringVar(&f.LogPath, "logPath", "", "Path to save the log file")
	cmd.PersistentFlags().StringVar(&f.Prefs, "prefs", "", "Path to the preferences file")
	cmd.PersistentFlags().BoolVar(&f.Offline, "offline", false, "Skip remote sign-in and use a local identity")
}

// Apply copies the flags that were set onto cfg.
func (f *Flags) Apply(cfg *Config) {
	if f.Dev {
		cfg.Dev = true
	}
	if f.LogPath != "" {
		cfg.LogPath = f.LogPath
	}
	if f.Prefs != "" {
		cfg.Preferences.Path = f.Prefs
	}
	if f.Offline {
		cfg.Offline = true
	}
}
