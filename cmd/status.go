package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	statusadapter "github.com/bnema/qr-session-keeper/internal/adapters/render/status"
	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *app) *cobra.Command {
	var (
		platformID string
		asJSON     bool
		withProbe  bool
		staleAfter time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session status of each platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reports, err := loadReports(cmd, app.service, platformID)
			if err != nil {
				return err
			}

			var probes map[domain.PlatformID]application.ProbeResult
			if withProbe {
				probes = make(map[domain.PlatformID]application.ProbeResult, len(reports))
				for _, report := range reports {
					result, err := app.probe.Check(cmd.Context(), report.Platform)
					if err != nil {
						return err
					}
					probes[report.Platform] = result
				}
			}

			return writeReportsOutput(cmd, app, reports, probes, staleAfter, asJSON)
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "Platform ID (default: all platforms)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output status as JSON")
	cmd.Flags().BoolVar(&withProbe, "probe", false, "Also look at the open tab of each platform browser")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 12*time.Hour, "Flag logged-in sessions not validated for this long")

	return cmd
}

type statusJSON struct {
	application.StatusReport
	Probe *application.ProbeResult `json:",omitempty"`
}

func writeReportsOutput(cmd *cobra.Command, app *app, reports []application.StatusReport, probes map[domain.PlatformID]application.ProbeResult, staleAfter time.Duration, asJSON bool) error {
	if asJSON {
		out := make([]statusJSON, 0, len(reports))
		for _, report := range reports {
			entry := statusJSON{StatusReport: report}
			if probe, ok := probes[report.Platform]; ok {
				entry.Probe = &probe
			}
			out = append(out, entry)
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	names := make(map[domain.PlatformID]string)
	for _, platform := range app.catalog.All() {
		names[platform.ID] = platform.Name
	}

	rendered, err := app.statusRenderer(reports, statusadapter.RenderOptions{
		Now:        app.now(),
		StaleAfter: staleAfter,
		Names:      names,
		Probes:     probes,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func loadReports(cmd *cobra.Command, svc *application.Service, platformID string) ([]application.StatusReport, error) {
	if platformID == "" {
		return svc.GetStatusAll(cmd.Context())
	}

	report, err := svc.GetStatus(cmd.Context(), domain.PlatformID(platformID))
	if err != nil {
		return nil, err
	}

	return []application.StatusReport{report}, nil
}

// resolvePlatform returns the flag value or the catalog's default platform.
func resolvePlatform(app *app, platformID string) domain.PlatformID {
	if platformID == "" {
		return app.catalog.Default().ID
	}

	return domain.PlatformID(platformID)
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
