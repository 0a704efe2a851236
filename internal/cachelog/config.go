package cachelog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cachelog/internal/lease"
)

// DefaultConfigFile is the config file name looked up in the working
// directory by the CLI.
const DefaultConfigFile = ".cachelog.yaml"

// Config carries everything a store needs. It replaces the process-wide
// mutable defaults of older designs: the root and fallback scope are
// explicit here and threaded through every call.
type Config struct {
	// Root is the cache root directory partitioned into scopes.
	Root string `yaml:"root"`

	// Scope is the fallback scope used when a call passes scope "".
	Scope string `yaml:"scope"`

	// GitDir is the directory whose git state is captured as provenance
	// on logged invocations.
	GitDir string `yaml:"git_dir"`

	// RequireCommitted refuses to log invocations while the worktree has
	// uncommitted changes.
	RequireCommitted bool `yaml:"require_committed"`

	// Lease tunes index lease acquisition for this store's scopes.
	Lease lease.Options `yaml:"lease"`
}

// DefaultConfig returns the documented process-wide fallback configuration.
func DefaultConfig() Config {
	return Config{
		Root:   "./.cachelog",
		Scope:  "",
		GitDir: ".",
	}
}

// LoadConfig reads a YAML config file over DefaultConfig. A missing file is
// not an error; the defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("cachelog: read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("cachelog: parse config %s: %w", path, err)
	}
	if cfg.Root == "" {
		cfg.Root = DefaultConfig().Root
	}
	if cfg.GitDir == "" {
		cfg.GitDir = "."
	}
	return cfg, nil
}
