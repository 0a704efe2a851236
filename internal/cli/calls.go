package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// CallsOptions holds flags for the calls command.
type CallsOptions struct {
	*RootOptions
	Function string
}

// NewCallsCommand creates the calls command.
func NewCallsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calls",
		Short: "List every recorded invocation of a function",
		Long: `List every invocation of a function recorded in a scope, across all
argument sets, in fold order.

Examples:
  cachelog calls --func simulate
  cachelog calls --func simulate --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalls(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "func", "", "function name (required)")
	_ = cmd.MarkFlagRequired("func")

	return cmd
}

func runCalls(opts *CallsOptions, cmd *cobra.Command) error {
	calls, err := opts.newStore().LoggedCalls(context.Background(), opts.Scope, opts.Function)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), calls)
	}

	out := cmd.OutOrStdout()
	if len(calls) == 0 {
		fmt.Fprintln(out, "no recorded calls")
		return nil
	}
	for _, c := range calls {
		when := time.Unix(0, c.Timestamp).UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(out, "%s  %v", when, c.Arguments)
		if len(c.Metadata) > 0 {
			fmt.Fprintf(out, "  %v", c.Metadata)
		}
		fmt.Fprintln(out)
	}
	return nil
}
