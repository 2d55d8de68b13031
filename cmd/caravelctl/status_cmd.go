package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type statusOpts struct {
	*rootOpts
	environment string
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show an environment's current and last known-good versions.",
		Example: makeExample(
			"caravelctl status -e staging",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.environment, "environment", "e", "", "environment to inspect")
	return cmd
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.environment == "" {
		return newUsageError("--environment is required")
	}

	status, err := opts.API.Status(cmd.Context(), opts.environment)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "ENVIRONMENT\t%s\n", status.Environment.Name)
	fmt.Fprintf(w, "CURRENT\t%s\n", orNone(string(status.Versions.Current)))
	fmt.Fprintf(w, "PREVIOUS\t%s\n", orNone(string(status.Versions.Previous)))
	if latest := status.Latest; latest != nil {
		fmt.Fprintf(w, "LATEST DEPLOYMENT\t%s (%s %s, %s)\n", latest.ID, latest.Cause, latest.Version, latest.Status)
		if latest.Reason != "" {
			fmt.Fprintf(w, "REASON\t%s\n", latest.Reason)
		}
	}
	return w.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
