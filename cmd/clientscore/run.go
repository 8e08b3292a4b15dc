package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/phucmetlamroi/agency-manager/internal/adapters/http/api"
	"github.com/phucmetlamroi/agency-manager/internal/domain/types"
	"github.com/spf13/cobra"
)

func newRunCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one scoring batch against the database and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Logs go to stderr so stdout carries only the report.
			cfg, err := setup(ctx, rf, os.Stderr)
			if err != nil {
				return exitError(2, "failed to load config: %v", err)
			}

			src, err := openSource(ctx, cfg)
			if err != nil {
				return exitError(3, "failed to connect database: %v", err)
			}
			defer src.Close()

			return runOnce(ctx, newService(cfg, src, false), cmd.OutOrStdout())
		},
	}
}

// runOnce triggers a single run and writes the report to out. A failed
// run still prints its report and exits 1.
func runOnce(ctx context.Context, trigger api.RunTrigger, out io.Writer) error {
	report, err := trigger.Trigger(ctx)
	if perr := printReport(out, report); perr != nil {
		return perr
	}
	if err != nil {
		return exitError(1, "scoring run failed: %v", err)
	}
	return nil
}

func printReport(out io.Writer, report types.RunReport) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
