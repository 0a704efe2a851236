package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRebuildCommand creates the rebuild command.
func NewRebuildCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Reconstruct a scope's index from its artifact files",
		Long: `Discard the persisted index for a scope and rebuild it by scanning
every artifact file and replaying its embedded record. Artifacts that fail
to parse, or whose stored identity does not match their stored arguments,
are skipped and reported.

Do not run rebuild while other processes are writing to the same scope:
folds landing during the rebuild are lost.

Examples:
  cachelog rebuild --root ./.cachelog --scope experiments
  cachelog rebuild --scope experiments --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(rootOpts, cmd)
		},
	}
	return cmd
}

func runRebuild(opts *RootOptions, cmd *cobra.Command) error {
	report, err := opts.newStore().Rebuild(context.Background(), opts.Scope)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "scanned %d artifact file(s): %d kept, %d skipped\n",
		report.Scanned, len(report.Kept), len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Fprintf(out, "  skipped %s: %s\n", s.File, s.Reason)
	}
	return nil
}
