package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iota-uz/statreg/pkg/configuration"
)

type rootOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "statreg-import",
		Short:         "Statistical register file import pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env", ".env.local"}, "Env files to load")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withCode(exitUsage, err)
	})

	cmd.AddCommand(newWorkerCmd(opts))
	cmd.AddCommand(newReclaimCmd(opts))
	cmd.AddCommand(newImportFileCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newAuthzCheckCmd(opts))
	return cmd
}

func (o *rootOptions) load() (*configuration.Configuration, error) {
	cfg, err := configuration.Load(o.envFiles)
	if err != nil {
		return nil, withCode(exitValidation, fmt.Errorf("load configuration: %w", err))
	}
	return cfg, nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return withCode(exitUsage, err)
		}
		return nil
	}
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
