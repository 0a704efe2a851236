package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// LookupOptions holds flags for the lookup command.
type LookupOptions struct {
	*RootOptions
	Function string
	Args     string
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LookupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Return the cached result for a function and argument set",
		Long: `Look up the cached result of function(args) in a scope.

On a hit the stored payload is written to stdout verbatim. On a miss the
command exits non-zero without output.

Examples:
  cachelog lookup --func simulate --args '{"seed":42}'
  cachelog lookup --root ./.cachelog --scope experiments --func simulate --args '{"seed":42}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "func", "", "function name (required)")
	_ = cmd.MarkFlagRequired("func")
	cmd.Flags().StringVar(&opts.Args, "args", "", "argument set as JSON object")

	return cmd
}

func runLookup(opts *LookupOptions, cmd *cobra.Command) error {
	args, err := parseArgs(opts.Args)
	if err != nil {
		return err
	}

	payload, hit, err := opts.newStore().Lookup(context.Background(), opts.Scope, opts.Function, args)
	if err != nil {
		return err
	}
	if !hit {
		return fmt.Errorf("no cached result for %s(%s)", opts.Function, opts.Args)
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]any{"result": payload})
	}
	_, err = cmd.OutOrStdout().Write(payload)
	return err
}
