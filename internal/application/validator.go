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

const (
	DefaultValidateTimeout = 30 * time.Second

	MessageNoCookies      = "No cookies stored, login required"
	MessageCorruptCookies = "Cookie file is corrupt, login required"
	MessageCookieExpired  = "Cookie expired, login required"
	MessageCookieValid    = "Cookie valid"
	MessageProbeFailed    = "Validation probe failed"
)

type ValidatorConfig struct {
	// Timeout bounds navigation to the protected page.
	Timeout time.Duration
	Settle  time.Duration
	Profile ports.Profile
}

// Validator re-checks stored tokens against a protected page in a disposable
// browser session. It never changes the stored tokens.
type Validator struct {
	catalog *Catalog
	browser ports.Browser
	store   *SessionStore
	metrics ports.Metrics
	logger  zerolog.Logger
	cfg     ValidatorConfig
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewValidator(catalog *Catalog, browser ports.Browser, store *SessionStore, metrics ports.Metrics, logger zerolog.Logger, cfg ValidatorConfig) *Validator {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultValidateTimeout
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Profile == (ports.Profile{}) {
		cfg.Profile = DefaultProfile()
	}

	return &Validator{
		catalog: catalog,
		browser: browser,
		store:   store,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		sleep:   sleepContext,
	}
}

// Validate classifies the platform's stored tokens as valid or expired and
// records the verdict. Browser failures produce StatusError together with a
// *ValidationError so they are never mistaken for a logout.
func (v *Validator) Validate(ctx context.Context, id domain.PlatformID) (ValidationResult, error) {
	platform, err := v.catalog.Get(id)
	if err != nil {
		return ValidationResult{}, err
	}

	logger := v.logger.With().Str("platform", string(id)).Logger()

	tokens, err := v.store.Tokens(ctx, id)
	switch {
	case errors.Is(err, domain.ErrCorruptState):
		logger.Warn().Err(err).Msg("stored tokens unreadable")
		return v.expireWithoutProbe(ctx, id, MessageCorruptCookies)
	case err != nil:
		v.metrics.Validated(id, domain.StatusError)
		return ValidationResult{Platform: id, Status: domain.StatusError, Message: MessageProbeFailed}, &ValidationError{Platform: id, Err: err}
	case len(tokens) == 0:
		return v.expireWithoutProbe(ctx, id, MessageNoCookies)
	}

	authenticated, location, err := v.probe(ctx, platform, tokens)
	if err != nil {
		logger.Warn().Err(err).Msg("validation probe failed")
		v.metrics.Validated(id, domain.StatusError)
		result := ValidationResult{Platform: id, Status: domain.StatusError, Message: MessageProbeFailed, Probed: true}
		if _, markErr := v.store.MarkChecked(ctx, id, domain.StatusError); markErr != nil {
			return result, &ValidationError{Platform: id, Err: errors.Join(err, markErr)}
		}
		return result, &ValidationError{Platform: id, Err: err}
	}

	result := ValidationResult{Platform: id, Valid: authenticated, Probed: true}
	if authenticated {
		result.Status = domain.StatusLoggedIn
		result.Message = MessageCookieValid
	} else {
		result.Status = domain.StatusExpired
		result.Message = MessageCookieExpired
	}

	logger.Info().Bool("valid", result.Valid).Str("url", truncate(location, 60)).Msg("session validated")
	v.metrics.Validated(id, result.Status)

	if _, err := v.store.MarkChecked(ctx, id, result.Status); err != nil {
		return result, fmt.Errorf("record validation result: %w", err)
	}

	return result, nil
}

// expireWithoutProbe answers without a browser. The verdict is only written
// back when the platform already has a record, so a never-used platform keeps
// reading as not started.
func (v *Validator) expireWithoutProbe(ctx context.Context, id domain.PlatformID, message string) (ValidationResult, error) {
	v.metrics.Validated(id, domain.StatusExpired)
	result := ValidationResult{Platform: id, Valid: false, Status: domain.StatusExpired, Message: message}

	exists, err := v.store.Exists(ctx, id)
	if err != nil {
		return result, err
	}
	if !exists {
		return result, nil
	}

	if _, err := v.store.MarkChecked(ctx, id, domain.StatusExpired); err != nil {
		return result, fmt.Errorf("record validation result: %w", err)
	}

	return result, nil
}

func (v *Validator) probe(ctx context.Context, platform domain.Platform, tokens []domain.Token) (bool, string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout+v.cfg.Settle)
	defer cancel()

	page, err := v.browser.Open(probeCtx, v.cfg.Profile)
	if err != nil {
		return false, "", fmt.Errorf("open browser: %w", err)
	}
	defer closeQuietly(v.logger, page)

	if err := page.AddCookies(probeCtx, tokens); err != nil {
		return false, "", fmt.Errorf("inject tokens: %w", err)
	}
	if err := page.Navigate(probeCtx, platform.ProtectedURL); err != nil {
		return false, "", fmt.Errorf("open protected page: %w", err)
	}
	if err := v.sleep(probeCtx, v.cfg.Settle); err != nil {
		return false, "", err
	}

	location := page.URL()
	return !platform.IsAuthGateway(location), location, nil
}
