package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ferrovax/dredge/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &appOptions{}
	root := &cobra.Command{
		Use:          "dredge",
		Short:        "Recover file versions left behind in a git object store",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", config.DefaultFileName, "configuration file")
	pf.StringVar(&opts.outRoot, "out", "", "output root directory (overrides config)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&opts.fast, "fast", false, "fast mode: batch grouping, fewer retries")
	pf.IntVar(&opts.workers, "workers", 0, "oracle worker pool width (overrides config)")
	pf.StringVar(&opts.model, "model", "", "oracle model (overrides config)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newExtractCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newGroupCmd(opts))
	root.AddCommand(newOrganizeCmd(opts))
	root.AddCommand(newRunCmd(opts))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "dredge 0.1.0-dev")
		},
	}
}
