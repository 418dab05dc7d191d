package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultPageSettle     = 5 * time.Second
	DefaultAcquireTimeout = 90 * time.Second
)

// DefaultProfile is a desktop Chrome fingerprint in the platform's locale.
func DefaultProfile() ports.Profile {
	return ports.Profile{
		Locale:         "zh-CN",
		TimezoneID:     "Asia/Shanghai",
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1280,
		ViewportHeight: 800,
	}
}

type ChallengeConfig struct {
	// Timeout bounds the completion watch when a command sets none.
	Timeout time.Duration
	// AcquireTimeout bounds opening the page and extracting the image.
	AcquireTimeout time.Duration
	PageSettle     time.Duration
	Profile        ports.Profile
}

type ChallengeService struct {
	base       context.Context
	catalog    *Catalog
	browser    ports.Browser
	store      *SessionStore
	registry   *ChallengeRegistry
	watcher    *Watcher
	clock      ports.Clock
	metrics    ports.Metrics
	logger     zerolog.Logger
	cfg        ChallengeConfig
	strategies func(domain.Platform) []ExtractionStrategy
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewChallengeService builds the acquirer. Background watches run on base,
// so cancelling base stops every watch that outlived its request.
func NewChallengeService(
	base context.Context,
	catalog *Catalog,
	browser ports.Browser,
	store *SessionStore,
	registry *ChallengeRegistry,
	watcher *Watcher,
	clock ports.Clock,
	metrics ports.Metrics,
	logger zerolog.Logger,
	cfg ChallengeConfig,
) *ChallengeService {
	if base == nil {
		base = context.Background()
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultChallengeTimeout
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.PageSettle < 0 {
		cfg.PageSettle = 0
	}
	if cfg.Profile == (ports.Profile{}) {
		cfg.Profile = DefaultProfile()
	}

	return &ChallengeService{
		base:       base,
		catalog:    catalog,
		browser:    browser,
		store:      store,
		registry:   registry,
		watcher:    watcher,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		strategies: DefaultStrategies,
		sleep:      sleepContext,
	}
}

// IssueChallenge terminates any in-flight challenge of the platform, opens a
// fresh login page and returns its challenge image. The page stays open and
// is handed to a completion watcher.
func (s *ChallengeService) IssueChallenge(ctx context.Context, cmd IssueChallengeCommand) (ChallengeResult, error) {
	platform, err := s.catalog.Get(cmd.Platform)
	if err != nil {
		return ChallengeResult{}, err
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}

	parent := s.base
	if cmd.WaitForCompletion {
		parent = ctx
	}

	session, result, watchCtx, stop, err := s.start(ctx, parent, platform, timeout)
	if err != nil {
		return ChallengeResult{}, err
	}

	maxTicks := TicksFor(timeout, s.watcher.PollInterval())
	run := func(watchCtx context.Context, stop context.CancelFunc) WatchOutcome {
		defer stop()
		defer s.registry.remove(session)
		return s.watcher.Run(watchCtx, session, platform, maxTicks, cmd.Progress)
	}

	if cmd.Issued != nil {
		if err := cmd.Issued(result); err != nil {
			session.Cancel(err)
			run(watchCtx, stop)
			return ChallengeResult{}, fmt.Errorf("deliver challenge: %w", err)
		}
	}

	if cmd.WaitForCompletion {
		result.Outcome = run(watchCtx, stop)
		return result, nil
	}

	go run(watchCtx, stop)
	result.Outcome = WatchOutcome{ChallengeID: session.ID, Platform: platform.ID, State: WatchWaiting}
	return result, nil
}

// Cancel stops the platform's in-flight challenge.
func (s *ChallengeService) Cancel(ctx context.Context, id domain.PlatformID) error {
	return s.registry.Cancel(ctx, id)
}

func (s *ChallengeService) Active(id domain.PlatformID) (*ChallengeSession, bool) {
	return s.registry.Active(id)
}

// start runs under the platform's issuance lock so no second challenge can
// appear between supersession and registration.
func (s *ChallengeService) start(ctx, parent context.Context, platform domain.Platform, timeout time.Duration) (*ChallengeSession, ChallengeResult, context.Context, context.CancelFunc, error) {
	unlock := s.registry.lockPlatform(platform.ID)
	defer unlock()

	logger := s.logger.With().Str("platform", string(platform.ID)).Logger()
	if previous := s.registry.Supersede(ctx, platform.ID); previous != nil {
		logger.Info().Str("challenge", previous.ID).Msg("superseded in-flight challenge")
	}

	page, image, strategy, err := s.acquire(ctx, platform)
	if err != nil {
		s.metrics.ChallengeIssued(platform.ID, "failed")
		logger.Warn().Err(err).Msg("challenge acquisition failed")
		return nil, ChallengeResult{}, nil, nil, err
	}

	if _, err := s.store.MarkPending(ctx, platform.ID); err != nil {
		closeQuietly(logger, page)
		s.metrics.ChallengeIssued(platform.ID, "failed")
		return nil, ChallengeResult{}, nil, nil, &AcquisitionError{Platform: platform.ID, Stage: "persist", Err: err}
	}

	now := s.clock.Now()
	session := newChallengeSession(platform.ID, page, now, now.Add(timeout))
	watchCtx, stop := s.watchContext(parent, session, timeout)
	s.registry.register(session)
	s.metrics.ChallengeIssued(platform.ID, "issued")
	logger.Info().Str("challenge", session.ID).Str("strategy", strategy).Int("bytes", len(image)).Msg("challenge issued")

	return session, ChallengeResult{
		ChallengeID: session.ID,
		Platform:    platform.ID,
		Image:       image,
		Strategy:    strategy,
		IssuedAt:    now,
	}, watchCtx, stop, nil
}

// watchContext derives the watch context and wires its cancel into the
// session. The deadline leaves room for the settle period after the last
// tick.
func (s *ChallengeService) watchContext(parent context.Context, session *ChallengeSession, timeout time.Duration) (context.Context, context.CancelFunc) {
	watchCtx, cancel := context.WithCancelCause(parent)
	session.cancel = cancel

	budget := timeout + s.watcher.PollInterval() + s.watcher.settle + time.Minute
	watchCtx, stopTimeout := context.WithTimeoutCause(watchCtx, budget, ErrWatcherTimeout)

	return watchCtx, func() {
		stopTimeout()
		cancel(nil)
	}
}

func (s *ChallengeService) acquire(ctx context.Context, platform domain.Platform) (ports.BrowserSession, []byte, string, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	defer cancel()

	page, err := s.browser.Open(acquireCtx, s.cfg.Profile)
	if err != nil {
		return nil, nil, "", &AcquisitionError{Platform: platform.ID, Stage: "open", Err: err}
	}

	logger := s.logger.With().Str("platform", string(platform.ID)).Logger()
	if err := page.Navigate(acquireCtx, platform.LoginURL); err != nil {
		closeQuietly(logger, page)
		return nil, nil, "", &AcquisitionError{Platform: platform.ID, Stage: "navigate", Err: err}
	}

	if err := s.sleep(acquireCtx, s.cfg.PageSettle); err != nil {
		closeQuietly(logger, page)
		return nil, nil, "", &AcquisitionError{Platform: platform.ID, Stage: "settle", Err: err}
	}

	image, strategy, err := ExtractChallenge(acquireCtx, page, s.strategies(platform))
	if err != nil {
		closeQuietly(logger, page)
		return nil, nil, "", &AcquisitionError{Platform: platform.ID, Stage: "extract", Err: err}
	}

	return page, image, strategy, nil
}

func closeQuietly(logger zerolog.Logger, page ports.BrowserSession) {
	if err := page.Close(); err != nil {
		logger.Warn().Err(err).Msg("close browser session")
	}
}
