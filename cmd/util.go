package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/notetaker/config"
)

// Globals carries the root command's persistent flags to every subcommand.
type Globals struct {
	ConfigPath string
	Output     string
	Debug      bool
}

// LoadConfig loads configuration from --config (or the default location) and
// applies the --output and --debug overrides.
func (g *Globals) LoadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g != nil && g.ConfigPath != "" {
		path, perr := config.ExpandPath(g.ConfigPath)
		if perr != nil {
			return nil, perr
		}
		cfg, err = config.LoadConfigFrom(path)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, err
	}
	if g == nil {
		return cfg, nil
	}
	if g.Output != "" {
		format := config.OutputFormat(g.Output)
		if !format.IsValid() {
			return nil, fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", g.Output)
		}
		cfg.OutputFormat = format
	}
	if g.Debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// printOutput writes v as JSON or YAML, or calls text for the text format.
func printOutput(w io.Writer, format config.OutputFormat, v interface{}, text func(io.Writer) error) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return text(w)
	}
}

// ensureParentDir creates the directory holding path.
func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	return nil
}

// truncate shortens s to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// valueOrDefault returns value, or def when value is empty.
func valueOrDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
