package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOrganizeCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "organize",
		Short: "Order each group into a lineage and write the organized layout",
		Long: `Compares each group's members pairwise, infers the newest-to-oldest
order, and lays the results out for review: the newest version under its
suggested filename, older versions under old/, members the evidence
rejects under misjudged/, and a JSON report per group.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := opts.buildPipeline(true)
			if err != nil {
				return err
			}
			sum, err := p.Organize(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%d group(s) organized: %d ambiguous, %d misjudged member(s), %d failed pair(s)\n",
				sum.Groups, sum.Ambiguous, sum.Misjudged, sum.FailedPairs)
			return nil
		},
	}
}
