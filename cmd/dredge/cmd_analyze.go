package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Classify extracted contents through the oracle",
		Long: `Reads the extraction log, classifies every content the analysis
report does not already cover, and copies the valuable ones under
suggested filenames. Already-classified ids are skipped, so the stage
resumes where it stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := opts.buildPipeline(true)
			if err != nil {
				return err
			}
			sum, err := p.Analyze(cmd.Context())
			if sum != nil {
				fmt.Fprintf(cmd.OutOrStdout(),
					"%d classified (%d valuable), %d skipped, %d failed\n",
					sum.Classified, sum.Valuable, sum.Skipped, sum.Failed)
			}
			return err
		},
	}
}
