package application

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval     = 2 * time.Second
	DefaultSettlePeriod     = 3 * time.Second
	DefaultChallengeTimeout = 300 * time.Second
)

type WatchState string

const (
	WatchWaiting          WatchState = "waiting"
	WatchResolvedLoggedIn WatchState = "resolved_logged_in"
	WatchTimedOut         WatchState = "timed_out"
	WatchCancelled        WatchState = "cancelled"
	WatchErrored          WatchState = "errored"
)

func (s WatchState) Terminal() bool {
	return s != WatchWaiting && s != ""
}

// Observation is what one poll tick read from the page.
type Observation struct {
	Location   string
	TokenCount int
	Err        error
}

// WatchMachine is the tick-driven state of a completion watch. It performs
// no I/O.
type WatchMachine struct {
	Platform        domain.Platform
	InitialLocation string
	MaxTicks        int
	State           WatchState
	Ticks           int
	Err             error
}

func NewWatchMachine(platform domain.Platform, initialLocation string, maxTicks int) WatchMachine {
	return WatchMachine{
		Platform:        platform,
		InitialLocation: initialLocation,
		MaxTicks:        maxTicks,
		State:           WatchWaiting,
	}
}

// Step consumes one observation. Terminal machines are returned unchanged.
func (m WatchMachine) Step(observation Observation) WatchMachine {
	if m.State.Terminal() {
		return m
	}

	m.Ticks++
	switch {
	case observation.Err != nil:
		m.State = WatchErrored
		m.Err = observation.Err
	case m.Platform.IsCompletionSignal(m.InitialLocation, observation.Location):
		m.State = WatchResolvedLoggedIn
	case m.MaxTicks > 0 && m.Ticks >= m.MaxTicks:
		m.State = WatchTimedOut
		m.Err = ErrWatcherTimeout
	}

	return m
}

// Cancel moves a waiting machine to cancelled, or to timed out when the
// cause is the watch deadline.
func (m WatchMachine) Cancel(cause error) WatchMachine {
	if m.State.Terminal() {
		return m
	}

	m.State = WatchCancelled
	if errors.Is(cause, ErrWatcherTimeout) {
		m.State = WatchTimedOut
	}
	m.Err = cause
	return m
}

// TicksFor is the number of poll ticks that fit in timeout.
func TicksFor(timeout, interval time.Duration) int {
	if interval <= 0 || timeout <= 0 {
		return 1
	}

	ticks := int(timeout / interval)
	if timeout%interval != 0 {
		ticks++
	}
	if ticks < 1 {
		ticks = 1
	}

	return ticks
}

// WatchProgress is emitted once per tick, separately from the final outcome.
type WatchProgress struct {
	ChallengeID     string
	Platform        domain.PlatformID
	Tick            int
	MaxTicks        int
	Location        string
	LocationChanged bool
	TokenCount      int
	State           WatchState
}

type WatchOutcome struct {
	ChallengeID string
	Platform    domain.PlatformID
	State       WatchState
	Ticks       int
	Record      domain.SessionRecord
	Err         error
}

type WatcherConfig struct {
	PollInterval time.Duration
	Settle       time.Duration
}

type Watcher struct {
	store    *SessionStore
	clock    ports.Clock
	metrics  ports.Metrics
	logger   zerolog.Logger
	interval time.Duration
	settle   time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewWatcher(store *SessionStore, clock ports.Clock, metrics ports.Metrics, logger zerolog.Logger, cfg WatcherConfig) *Watcher {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}

	return &Watcher{
		store:    store,
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
		interval: cfg.PollInterval,
		settle:   cfg.Settle,
		sleep:    sleepContext,
	}
}

func (w *Watcher) PollInterval() time.Duration {
	return w.interval
}

// Run polls the challenge's page until the approval is detected, the tick
// budget runs out, or ctx is cancelled. The browser session is closed exactly
// once before Run returns.
func (w *Watcher) Run(ctx context.Context, session *ChallengeSession, platform domain.Platform, maxTicks int, progress chan<- WatchProgress) (outcome WatchOutcome) {
	logger := w.logger.With().Str("platform", string(platform.ID)).Str("challenge", session.ID).Logger()

	defer session.finish()
	defer func() {
		if err := session.close(); err != nil {
			logger.Warn().Err(err).Msg("close challenge browser session")
		}
		w.metrics.ChallengeIssued(platform.ID, string(outcome.State))
		logger.Info().Str("state", string(outcome.State)).Int("ticks", outcome.Ticks).Msg("challenge watch finished")
	}()

	machine := NewWatchMachine(platform, session.InitialLocation, maxTicks)
	for !machine.State.Terminal() {
		if err := w.sleep(ctx, w.interval); err != nil {
			machine = machine.Cancel(interruption(ctx))
			break
		}

		observation := w.observe(ctx, session.page)
		if ctx.Err() != nil {
			machine = machine.Cancel(interruption(ctx))
			break
		}

		machine = machine.Step(observation)
		update := WatchProgress{
			ChallengeID:     session.ID,
			Platform:        platform.ID,
			Tick:            machine.Ticks,
			MaxTicks:        maxTicks,
			Location:        observation.Location,
			LocationChanged: observation.Location != session.InitialLocation,
			TokenCount:      observation.TokenCount,
			State:           machine.State,
		}
		emitProgress(progress, update)
		logger.Debug().
			Int("tick", update.Tick).
			Bool("url_changed", update.LocationChanged).
			Str("url", truncate(update.Location, 60)).
			Int("cookies", update.TokenCount).
			Msg("challenge poll")
	}

	outcome = WatchOutcome{
		ChallengeID: session.ID,
		Platform:    platform.ID,
		State:       machine.State,
		Ticks:       machine.Ticks,
		Err:         machine.Err,
	}
	if machine.State != WatchResolvedLoggedIn {
		return outcome
	}

	record, err := w.resolve(ctx, session)
	if err != nil {
		if ctx.Err() != nil {
			cancelled := NewWatchMachine(platform, session.InitialLocation, maxTicks).Cancel(interruption(ctx))
			outcome.State = cancelled.State
			outcome.Err = cancelled.Err
			return outcome
		}
		outcome.State = WatchErrored
		outcome.Err = err
		return outcome
	}

	outcome.Record = record
	return outcome
}

// resolve waits out post-login redirects, then persists the final token set.
func (w *Watcher) resolve(ctx context.Context, session *ChallengeSession) (domain.SessionRecord, error) {
	if err := w.sleep(ctx, w.settle); err != nil {
		return domain.SessionRecord{}, err
	}

	tokens, err := session.page.Cookies(ctx)
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("read session tokens: %w", err)
	}
	if len(tokens) == 0 {
		return domain.SessionRecord{}, domain.ErrNoTokens
	}

	return w.store.MarkLoggedIn(ctx, session.Platform, tokens)
}

func (w *Watcher) observe(ctx context.Context, page ports.BrowserSession) Observation {
	tokens, err := page.Cookies(ctx)
	if err != nil {
		return Observation{Location: page.URL(), Err: fmt.Errorf("read session tokens: %w", err)}
	}

	return Observation{Location: page.URL(), TokenCount: len(tokens)}
}

func interruption(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}

	return context.Canceled
}

func emitProgress(progress chan<- WatchProgress, update WatchProgress) {
	if progress == nil {
		return
	}

	select {
	case progress <- update:
	default:
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate caps value at limit bytes without splitting a UTF-8 sequence.
func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}

	return value[:cut]
}

// IsTimeout reports whether an outcome ended because the deadline passed.
func (o WatchOutcome) IsTimeout() bool {
	return o.State == WatchTimedOut || errors.Is(o.Err, ErrWatcherTimeout)
}
