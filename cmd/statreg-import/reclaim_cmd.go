package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newReclaimCmd(root *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "reclaim",
		Short: "Return jobs stuck in Dequeued to the queue",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if timeout <= 0 {
				return withCode(exitUsage, fmt.Errorf("--timeout must be positive, got %s", timeout))
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}
			defer cfg.Unload()

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.worker.ReclaimTimedOutJobs(a.context(cmd.Context()), timeout)
			if err != nil {
				return withCode(exitDB, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d job(s)\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "Reclaim jobs dequeued longer than this")
	return cmd
}
