package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferrovax/dredge/pkg/extract"
)

func newRunCmd(opts *appOptions) *cobra.Command {
	var storePath, start, end, policy string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline: extract, analyze, group, organize",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := extract.ResolveWindow(start, end, time.Now())
			if err != nil {
				return err
			}
			p, _, err := opts.buildPipeline(true)
			if err != nil {
				return err
			}

			sum, err := p.Run(cmd.Context(), storePath, window, policy)
			out := cmd.OutOrStdout()
			if sum.Extract != nil {
				fmt.Fprintf(out, "extract:  %d written, %d skipped, %d failed\n",
					sum.Extract.Written, sum.Extract.Skipped, sum.Extract.Failed)
			}
			if sum.Analyze != nil {
				fmt.Fprintf(out, "analyze:  %d classified (%d valuable), %d skipped, %d failed\n",
					sum.Analyze.Classified, sum.Analyze.Valuable, sum.Analyze.Skipped, sum.Analyze.Failed)
			}
			if sum.Group != nil {
				fmt.Fprintf(out, "group:    %d item(s) into %d group(s) (%s policy)\n",
					sum.Group.Items, sum.Group.Groups, sum.Group.Policy)
			}
			if sum.Organize != nil {
				fmt.Fprintf(out, "organize: %d group(s), %d ambiguous, %d misjudged\n",
					sum.Organize.Groups, sum.Organize.Ambiguous, sum.Organize.Misjudged)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "object store root (a .git/objects directory)")
	cmd.Flags().StringVar(&start, "start", "", "window start, inclusive")
	cmd.Flags().StringVar(&end, "end", "", "window end, exclusive")
	cmd.Flags().StringVar(&policy, "policy", "", "grouping policy: iterative or batch")
	cmd.MarkFlagRequired("store")
	return cmd
}
