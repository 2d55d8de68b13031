package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type deployOpts struct {
	*rootOpts
	environment string
	version     string
	noWait      bool
}

func newDeploy(parent *rootOpts) *deployOpts {
	return &deployOpts{rootOpts: parent}
}

func (opts *deployOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a version to an environment and wait for it to verify.",
		Example: makeExample(
			"caravelctl deploy -e staging -v 1.4.2",
			"caravelctl deploy -e production -v 1.4.2 --no-wait",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.environment, "environment", "e", "", "environment to deploy to")
	cmd.Flags().StringVarP(&opts.version, "version", "v", "", "version to deploy")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "request the deployment and return without waiting for a terminal state")
	return cmd
}

func (opts *deployOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.environment == "" || opts.version == "" {
		return newUsageError("both --environment and --version are required")
	}

	d, err := opts.API.PostDeployment(cmd.Context(), opts.environment, opts.version)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "deployment %s: %s of %s to %s\n", d.ID, d.Cause, d.Version, d.Environment)

	if opts.noWait {
		return nil
	}
	return await(cmd.Context(), opts.API, d)
}
