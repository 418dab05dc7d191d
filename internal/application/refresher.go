package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/rs/zerolog"
)

// Refresher keeps long-lived browser sessions warm by reloading a page over
// the remote-debugging endpoint.
type Refresher struct {
	catalog  *Catalog
	devtools ports.DevTools
	runtime  ports.Runtime
	registry *ChallengeRegistry
	metrics  ports.Metrics
	logger   zerolog.Logger
}

func NewRefresher(catalog *Catalog, devtools ports.DevTools, runtime ports.Runtime, registry *ChallengeRegistry, metrics ports.Metrics, logger zerolog.Logger) *Refresher {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &Refresher{
		catalog:  catalog,
		devtools: devtools,
		runtime:  runtime,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Sweep reloads the first open page of every platform. A platform without a
// container, endpoint or page is reported as a failure and the sweep moves
// on.
func (r *Refresher) Sweep(ctx context.Context) (RefreshReport, error) {
	var report RefreshReport

	for _, platform := range r.catalog.All() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		id := platform.ID
		if r.registry != nil && r.registry.Busy(id) {
			report.Skipped = append(report.Skipped, id)
			continue
		}

		result, err := r.refresh(ctx, platform)
		if err != nil {
			r.metrics.Refreshed(id, "failed")
			r.logger.Warn().Err(err).Str("platform", string(id)).Msg("refresh failed")
			report.Failures = append(report.Failures, SweepFailure{Platform: id, Err: err})
			continue
		}

		r.metrics.Refreshed(id, "reloaded")
		r.logger.Info().Str("platform", string(id)).Str("page", result.PageID).Msg("page reloaded")
		report.Refreshed = append(report.Refreshed, result)
	}

	return report, nil
}

func (r *Refresher) refresh(ctx context.Context, platform domain.Platform) (RefreshResult, error) {
	probeCtx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	defer cancel()

	if r.runtime != nil && platform.Container != "" {
		running, err := r.runtime.IsRunning(probeCtx, platform.Container)
		if err != nil {
			return RefreshResult{}, fmt.Errorf("inspect container %s: %w", platform.Container, err)
		}
		if !running {
			return RefreshResult{}, fmt.Errorf("container %s is not running", platform.Container)
		}
	}

	if platform.CDPURL == "" {
		return RefreshResult{}, ErrNoDebugEndpoint
	}

	pages, err := r.devtools.ListPages(probeCtx, platform.CDPURL)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("list pages: %w", err)
	}

	page, ok := FirstPage(pages)
	if !ok {
		return RefreshResult{}, ErrNoOpenPage
	}

	if err := r.devtools.Reload(probeCtx, platform.CDPURL, page.ID); err != nil {
		return RefreshResult{}, fmt.Errorf("reload page %s: %w", page.ID, err)
	}

	return RefreshResult{Platform: platform.ID, PageID: page.ID, PageURL: page.URL}, nil
}

// FirstPage picks the first regular tab, skipping devtools and extension
// targets.
func FirstPage(targets []ports.PageTarget) (ports.PageTarget, bool) {
	for _, target := range targets {
		if target.Type != "" && target.Type != "page" {
			continue
		}
		if strings.HasPrefix(target.URL, "devtools://") || strings.HasPrefix(target.URL, "chrome-extension://") {
			continue
		}
		return target, true
	}

	return ports.PageTarget{}, false
}
