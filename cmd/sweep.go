package cmd

import (
	"fmt"
	"io"

	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/spf13/cobra"
)

func newMonitorCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run one liveness sweep over all platforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := app.monitor.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), monitorJSON(report))
			}

			return writeMonitorReport(cmd.OutOrStdout(), app, report)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the sweep report as JSON")

	return cmd
}

func newRefreshCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Reload the open page of every platform browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := app.refresher.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			return writeRefreshReport(cmd.OutOrStdout(), report)
		},
	}

	return cmd
}

func newProbeCmd(app *app) *cobra.Command {
	var (
		platformID string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Classify the tab each platform browser shows right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var results []application.ProbeResult
			if platformID == "" {
				results = app.probe.CheckAll(cmd.Context())
			} else {
				result, err := app.probe.Check(cmd.Context(), domain.PlatformID(platformID))
				if err != nil {
					return err
				}
				results = []application.ProbeResult{result}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}

			for _, result := range results {
				detail := result.PageURL
				if detail == "" {
					detail = result.Message
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s\n", result.Platform, result.State, detail); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "Platform ID (default: all platforms)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the results as JSON")

	return cmd
}

type sweepFailureJSON struct {
	Platform domain.PlatformID
	Error    string
}

type monitorReportJSON struct {
	Snapshot    domain.MonitorSnapshot
	Transitions []domain.SessionLostAlert
	Skipped     []domain.PlatformID
	Failures    []sweepFailureJSON
}

func monitorJSON(report application.MonitorReport) monitorReportJSON {
	return monitorReportJSON{
		Snapshot:    report.Snapshot,
		Transitions: report.Transitions,
		Skipped:     report.Skipped,
		Failures:    failuresJSON(report.Failures),
	}
}

func failuresJSON(failures []application.SweepFailure) []sweepFailureJSON {
	out := make([]sweepFailureJSON, 0, len(failures))
	for _, failure := range failures {
		out = append(out, sweepFailureJSON{Platform: failure.Platform, Error: failure.Err.Error()})
	}

	return out
}

func writeMonitorReport(out io.Writer, app *app, report application.MonitorReport) error {
	for _, platform := range app.catalog.All() {
		entry, ok := report.Snapshot.Entries[platform.ID]
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s: %s", platform.ID, entry.State)
		if entry.State == domain.LivenessLoggedIn {
			line += fmt.Sprintf(" for %.1fh", entry.Duration.Hours())
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}

	for _, alert := range report.Transitions {
		if _, err := fmt.Fprintf(out, "LOST %s after %.1fh: %s\n", alert.PlatformID, alert.HeldFor.Hours(), alert.Reason); err != nil {
			return err
		}
	}
	for _, id := range report.Skipped {
		if _, err := fmt.Fprintf(out, "%s: skipped, challenge in progress\n", id); err != nil {
			return err
		}
	}

	return writeFailures(out, report.Failures)
}

func writeRefreshReport(out io.Writer, report application.RefreshReport) error {
	for _, result := range report.Refreshed {
		if _, err := fmt.Fprintf(out, "%s: reloaded %s\n", result.Platform, result.PageURL); err != nil {
			return err
		}
	}
	for _, id := range report.Skipped {
		if _, err := fmt.Fprintf(out, "%s: skipped, challenge in progress\n", id); err != nil {
			return err
		}
	}

	return writeFailures(out, report.Failures)
}

func writeFailures(out io.Writer, failures []application.SweepFailure) error {
	for _, failure := range failures {
		if _, err := fmt.Fprintf(out, "%s: failed: %v\n", failure.Platform, failure.Err); err != nil {
			return err
		}
	}

	return nil
}
