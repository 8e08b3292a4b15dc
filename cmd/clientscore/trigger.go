package main

import (
	"os"
	"time"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/http/client"
	"github.com/spf13/cobra"
)

type triggerFlags struct {
	url     string
	secret  string
	timeout time.Duration
}

func newTriggerCmd(_ *rootFlags) *cobra.Command {
	f := &triggerFlags{}

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Ask a running server to start a scoring run, as the cron scheduler does",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := f.secret
			if secret == "" {
				secret = os.Getenv("CRON_SECRET")
			}
			c := client.New(f.url, client.WithSecret(secret), client.WithTimeout(f.timeout))
			return runOnce(cmd.Context(), c, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.url, "url", "http://localhost:9080", "Base URL of the scoring server")
	flags.StringVar(&f.secret, "secret", "", "Bearer secret (default: $CRON_SECRET)")
	flags.DurationVar(&f.timeout, "timeout", 2*time.Minute, "Request timeout")
	return cmd
}
