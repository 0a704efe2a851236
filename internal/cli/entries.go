package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// EntriesOptions holds flags for the entries command.
type EntriesOptions struct {
	*RootOptions
	Function string
	Args     string
}

// NewEntriesCommand creates the entries command.
func NewEntriesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EntriesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List the historical log entries for a function and argument set",
		Long: `List every recorded invocation of function(args) in a scope, in the
order the entries were folded into the index.

Examples:
  cachelog entries --func simulate --args '{"seed":42}'
  cachelog entries --func simulate --args '{"seed":42}' --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntries(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "func", "", "function name (required)")
	_ = cmd.MarkFlagRequired("func")
	cmd.Flags().StringVar(&opts.Args, "args", "", "argument set as JSON object")

	return cmd
}

func runEntries(opts *EntriesOptions, cmd *cobra.Command) error {
	args, err := parseArgs(opts.Args)
	if err != nil {
		return err
	}

	entries, err := opts.newStore().ListLogEntries(context.Background(), opts.Scope, opts.Function, args, nil)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), entries)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no log entries")
		return nil
	}
	for _, e := range entries {
		when := time.Unix(0, e.Timestamp).UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(out, "%s  %s", when, e.FileName)
		if len(e.Metadata) > 0 {
			fmt.Fprintf(out, "  %v", e.Metadata)
		}
		fmt.Fprintln(out)
	}
	return nil
}
