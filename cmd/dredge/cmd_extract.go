package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ferrovax/dredge/pkg/extract"
)

func newExtractCmd(opts *appOptions) *cobra.Command {
	var storePath, start, end string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract in-window blobs from a loose object store",
		Long: `Scans the object store, keeps commits whose timestamp falls inside
[start, end), and writes every blob those commits reference to the
extraction area. Both bounds use the form "2006-01-02 15:04" in local
time; with neither given the window is [today 02:00, now).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := extract.ResolveWindow(start, end, time.Now())
			if err != nil {
				return err
			}
			p, _, err := opts.buildPipeline(false)
			if err != nil {
				return err
			}

			sum, err := p.Extract(cmd.Context(), storePath, window)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"window %s: %d commit(s), %d candidate blob(s): %d written, %d skipped, %d failed\n",
				sum.Window, sum.CommitsInWindow, sum.Candidates,
				sum.Written, sum.Skipped, sum.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "object store root (a .git/objects directory)")
	cmd.Flags().StringVar(&start, "start", "", "window start, inclusive")
	cmd.Flags().StringVar(&end, "end", "", "window end, exclusive")
	cmd.MarkFlagRequired("store")
	return cmd
}
