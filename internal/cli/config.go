package cli

import (
	"fmt"
	"log/slog"

	"github.com/mcoot/arena-auth/internal/config"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Flags holds the global command line flags. Set values override the
// environment.
type Flags struct {
	BackendURL string
	AnonKey    string
	State      string
	StateDir   string
	EnvFile    string
	Output     string
	Verbose    bool
}

// DefaultFlags returns the flags before parsing
func DefaultFlags() *Flags {
	return &Flags{
		EnvFile: ".env",
		Output:  FormatText,
	}
}

// Resolve loads the environment and applies the flag overrides on top of it
func (f *Flags) Resolve() (config.Config, slog.Level, error) {
	if f.Output != FormatText && f.Output != FormatJSON {
		return config.Config{}, 0, fmt.Errorf("invalid output format %q: must be %s or %s", f.Output, FormatText, FormatJSON)
	}

	if f.EnvFile != "" {
		config.LoadDotEnv(f.EnvFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, 0, err
	}

	if f.BackendURL != "" {
		cfg.SupabaseURL = f.BackendURL
	}
	if f.AnonKey != "" {
		cfg.SupabaseAnonKey = f.AnonKey
	}
	if f.State != "" {
		cfg.State = f.State
	}
	if f.StateDir != "" {
		cfg.StateDir = f.StateDir
	}

	if f.Verbose {
		return cfg, slog.LevelDebug, nil
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, 0, err
	}
	return cfg, level, nil
}
