package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rollbackOpts struct {
	*rootOpts
	environment string
	noWait      bool
}

func newRollback(parent *rootOpts) *rollbackOpts {
	return &rollbackOpts{rootOpts: parent}
}

func (opts *rollbackOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Return an environment to its last known-good version.",
		Example: makeExample(
			"caravelctl rollback -e production",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.environment, "environment", "e", "", "environment to roll back")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "request the rollback and return without waiting for a terminal state")
	return cmd
}

func (opts *rollbackOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.environment == "" {
		return newUsageError("--environment is required")
	}

	d, err := opts.API.PostRollback(cmd.Context(), opts.environment)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "deployment %s: rolling %s back to %s\n", d.ID, d.Environment, d.Version)

	if opts.noWait {
		return nil
	}
	return await(cmd.Context(), opts.API, d)
}
