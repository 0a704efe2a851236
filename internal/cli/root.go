// Package cli implements the cachelog command line interface: inspection
// and recovery tooling over a cache root shared with live processes.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cachelog/internal/cachelog"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Root       string
	Scope      string
	Format     string // "json" | "text"
	Verbose    bool

	cfg cachelog.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cachelog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cachelog",
		Short: "Inspect and repair an on-disk computation cache",
		Long: `cachelog memoizes expensive computations on disk and keeps a permanent
log of every invocation. This CLI inspects a cache root and rebuilds a
scope's index from its artifact files after corruption.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			cfg, err := cachelog.LoadConfig(opts.ConfigFile)
			if err != nil {
				return err
			}
			if opts.Root != "" {
				cfg.Root = opts.Root
			}
			if opts.Scope != "" {
				cfg.Scope = opts.Scope
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", cachelog.DefaultConfigFile, "config file")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", "", "cache root directory (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Scope, "scope", "", "scope within the cache root (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewEntriesCommand(opts))
	cmd.AddCommand(NewCallsCommand(opts))
	cmd.AddCommand(NewRebuildCommand(opts))

	return cmd
}

// newStore builds the store for the resolved configuration.
func (o *RootOptions) newStore() *cachelog.Store {
	return cachelog.New(o.cfg)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
