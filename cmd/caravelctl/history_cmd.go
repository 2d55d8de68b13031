package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type historyOpts struct {
	*rootOpts
	environment string
}

func newHistory(parent *rootOpts) *historyOpts {
	return &historyOpts{rootOpts: parent}
}

func (opts *historyOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List an environment's deployments, most recent first.",
		Example: makeExample(
			"caravelctl history -e production",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.environment, "environment", "e", "", "environment to inspect")
	return cmd
}

func (opts *historyOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return errorWantedNoArgs
	}
	if opts.environment == "" {
		return newUsageError("--environment is required")
	}

	deployments, err := opts.API.History(cmd.Context(), opts.environment)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tVERSION\tCAUSE\tSTATUS\tSTARTED\tREASON")
	for _, d := range deployments {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			d.Sequence, d.Version, d.Cause, d.Status,
			d.StartedAt.Format("2006-01-02 15:04:05"), d.Reason)
	}
	return w.Flush()
}
