package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/http/client"
	"github.com/spf13/cobra"
)

type statusFlags struct {
	url     string
	timeout time.Duration
}

type statusReport struct {
	Stats   map[string]any     `json:"stats"`
	Metrics map[string]float64 `json:"metrics"`
}

func newStatusCmd(_ *rootFlags) *cobra.Command {
	f := &statusFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a running server's stats and scoring metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client.New(f.url, client.WithTimeout(f.timeout))
			ctx := cmd.Context()

			stats, err := c.Stats(ctx)
			if err != nil {
				return exitError(1, "failed to fetch stats: %v", err)
			}
			mfs, err := c.Metrics(ctx)
			if err != nil {
				return exitError(1, "failed to fetch metrics: %v", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(statusReport{Stats: stats, Metrics: client.Summarize(mfs, client.MetricPrefix)}); err != nil {
				return fmt.Errorf("write status: %w", err)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.url, "url", "http://localhost:9080", "Base URL of the scoring server")
	flags.DurationVar(&f.timeout, "timeout", 10*time.Second, "Request timeout")
	return cmd
}
