package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGroupCmd(opts *appOptions) *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Cluster valuable contents into logical file groups",
		Long: `Groups the valuable classified contents into hypotheses of "versions
of the same file". The iterative policy compares each item against a
representative of every group and self-corrects as evidence accumulates;
the batch policy asks the oracle to partition everything in one call.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := opts.buildPipeline(true)
			if err != nil {
				return err
			}
			sum, err := p.Group(cmd.Context(), policy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d item(s) into %d group(s) (%s policy)\n",
				sum.Items, sum.Groups, sum.Policy)
			return nil
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "grouping policy: iterative or batch (default: mode's policy)")
	return cmd
}
