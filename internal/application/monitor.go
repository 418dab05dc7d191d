package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/rs/zerolog"
)

const DefaultProbeTimeout = 15 * time.Second

type MonitorConfig struct {
	// ProbeTimeout bounds the runtime calls made for one platform.
	ProbeTimeout time.Duration
}

// Monitor sweeps every platform for a cheap liveness signal and alerts when
// a logged-in session is lost. It never launches a browser.
type Monitor struct {
	catalog   *Catalog
	store     *SessionStore
	runtime   ports.Runtime
	snapshots ports.SnapshotRepository
	registry  *ChallengeRegistry
	notifier  ports.Notifier
	clock     ports.Clock
	metrics   ports.Metrics
	logger    zerolog.Logger
	cfg       MonitorConfig
}

func NewMonitor(
	catalog *Catalog,
	store *SessionStore,
	runtime ports.Runtime,
	snapshots ports.SnapshotRepository,
	registry *ChallengeRegistry,
	notifier ports.Notifier,
	clock ports.Clock,
	metrics ports.Metrics,
	logger zerolog.Logger,
	cfg MonitorConfig,
) *Monitor {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	return &Monitor{
		catalog:   catalog,
		store:     store,
		runtime:   runtime,
		snapshots: snapshots,
		registry:  registry,
		notifier:  notifier,
		clock:     clock,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Sweep runs one pass over all platforms. The new snapshot replaces the
// stored one only after every platform was processed. Per-platform failures
// keep that platform's previous entry and never stop the sweep.
func (m *Monitor) Sweep(ctx context.Context) (MonitorReport, error) {
	previous, err := m.loadSnapshot(ctx)
	if err != nil {
		return MonitorReport{}, err
	}

	now := m.clock.Now()
	report := MonitorReport{Snapshot: domain.NewMonitorSnapshot(now)}

	for _, platform := range m.catalog.All() {
		if err := ctx.Err(); err != nil {
			return MonitorReport{}, err
		}

		id := platform.ID
		logger := m.logger.With().Str("platform", string(id)).Logger()
		before, seen := previous.Entries[id]

		if m.registry != nil && m.registry.Busy(id) {
			report.Skipped = append(report.Skipped, id)
			if seen {
				report.Snapshot.Entries[id] = before
			}
			continue
		}

		state, reason, err := m.liveness(ctx, platform, now)
		if err != nil {
			logger.Warn().Err(err).Msg("liveness check failed")
			report.Failures = append(report.Failures, SweepFailure{Platform: id, Err: err})
			if seen {
				report.Snapshot.Entries[id] = before
			}
			continue
		}

		after := before.Observe(state, now)
		report.Snapshot.Entries[id] = after
		m.metrics.LivenessObserved(id, state)
		logger.Debug().Str("state", string(state)).Str("reason", reason).Dur("held", after.Duration).Msg("liveness observed")

		if seen && before.State == domain.LivenessLoggedIn && state == domain.LivenessLoggedOut {
			alert := domain.SessionLostAlert{
				PlatformID: id,
				Name:       platform.Name,
				HeldFor:    before.Duration,
				LostAt:     now,
				Reason:     reason,
			}
			report.Transitions = append(report.Transitions, alert)
			m.onSessionLost(ctx, logger, alert)
		}
	}

	if err := m.snapshots.Save(ctx, report.Snapshot); err != nil {
		return report, fmt.Errorf("save monitor snapshot: %w", err)
	}

	return report, nil
}

func (m *Monitor) loadSnapshot(ctx context.Context) (domain.MonitorSnapshot, error) {
	snapshot, err := m.snapshots.Load(ctx)
	switch {
	case err == nil:
		if snapshot.Entries == nil {
			snapshot.Entries = map[domain.PlatformID]domain.SnapshotEntry{}
		}
		return snapshot, nil
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return domain.NewMonitorSnapshot(time.Time{}), nil
	case errors.Is(err, domain.ErrCorruptState):
		m.logger.Warn().Err(err).Msg("monitor snapshot unreadable, starting fresh")
		return domain.NewMonitorSnapshot(time.Time{}), nil
	default:
		return domain.MonitorSnapshot{}, fmt.Errorf("load monitor snapshot: %w", err)
	}
}

func (m *Monitor) onSessionLost(ctx context.Context, logger zerolog.Logger, alert domain.SessionLostAlert) {
	m.metrics.SessionLost(alert.PlatformID)

	if m.notifier != nil {
		if err := m.notifier.SessionLost(ctx, alert); err != nil {
			logger.Warn().Err(err).Msg("deliver session-lost alert")
		}
	}

	record, err := m.store.Record(ctx, alert.PlatformID)
	if err != nil {
		logger.Warn().Err(err).Msg("read session record after loss")
		return
	}
	if record.Status != domain.StatusLoggedIn {
		return
	}
	if _, err := m.store.MarkChecked(ctx, alert.PlatformID, domain.StatusExpired); err != nil {
		logger.Warn().Err(err).Msg("mark session expired after loss")
	}
}

// liveness is logged in when the container runs and its credential artifact
// is large and fresh enough. The size threshold is a per-platform tunable.
func (m *Monitor) liveness(ctx context.Context, platform domain.Platform, now time.Time) (domain.LivenessState, string, error) {
	if platform.Container == "" {
		return "", "", ErrNoContainer
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	running, err := m.runtime.IsRunning(probeCtx, platform.Container)
	if err != nil {
		return "", "", fmt.Errorf("inspect container %s: %w", platform.Container, err)
	}
	if !running {
		return domain.LivenessLoggedOut, "container not running", nil
	}

	if platform.CredentialArtifact == "" {
		return domain.LivenessLoggedIn, "container running", nil
	}

	info, err := m.runtime.StatFile(probeCtx, platform.Container, platform.CredentialArtifact)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactNotFound) {
			return domain.LivenessLoggedOut, "credential artifact missing", nil
		}
		return "", "", fmt.Errorf("stat credential artifact: %w", err)
	}

	if info.Size < platform.MinArtifactBytes {
		return domain.LivenessLoggedOut, fmt.Sprintf("credential artifact is %d bytes, below %d", info.Size, platform.MinArtifactBytes), nil
	}
	if platform.MaxArtifactAge > 0 && now.Sub(info.ModTime) > platform.MaxArtifactAge {
		return domain.LivenessLoggedOut, fmt.Sprintf("credential artifact not modified for %s", now.Sub(info.ModTime).Truncate(time.Minute)), nil
	}

	return domain.LivenessLoggedIn, "credential artifact fresh", nil
}
