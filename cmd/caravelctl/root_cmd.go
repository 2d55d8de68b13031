package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caraveld/caravel/api"
	transport "github.com/caraveld/caravel/http"
	"github.com/caraveld/caravel/http/client"
)

const (
	EnvVariableURL = "CARAVEL_URL"
)

type rootOpts struct {
	URL string
	API api.Server
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
caravelctl promotes application versions through environments.

Workflow:
  caravelctl deploy -e staging -v 1.4.2     # Roll out a version; wait for health.
  caravelctl status -e staging              # Which version is live?
  caravelctl rollback -e staging            # Return to the last known-good version.
  caravelctl history -e staging             # What happened before?
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "caravelctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "http://localhost:3030",
		fmt.Sprintf("base URL of the caraveld API server; you can also set the environment variable %s", EnvVariableURL))

	cmd.AddCommand(
		newDeploy(opts).Command(),
		newRollback(opts).Command(),
		newApprove(opts).Command(),
		newStatus(opts).Command(),
		newHistory(opts).Command(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}
	opts.API = client.New(http.DefaultClient, transport.NewRouter(), url)
	return nil
}
