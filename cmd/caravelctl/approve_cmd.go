package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caraveld/caravel"
)

type approveOpts struct {
	*rootOpts
	environment string
	deployment  string
}

func newApprove(parent *rootOpts) *approveOpts {
	return &approveOpts{rootOpts: parent}
}

func (opts *approveOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a deployment waiting at the approval gate.",
		Example: makeExample(
			"caravelctl approve -e production",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.environment, "environment", "e", "", "environment with a deployment awaiting approval")
	cmd.Flags().StringVarP(&opts.deployment, "deployment", "d", "", "specific deployment ID to approve (optional)")
	return cmd
}

func (opts *approveOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.environment == "" {
		return newUsageError("--environment is required")
	}

	if err := opts.API.PostApproval(cmd.Context(), opts.environment, caravel.DeploymentID(opts.deployment)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "approved; deployment to %s is proceeding\n", opts.environment)
	return nil
}
