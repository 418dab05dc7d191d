package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/rs/zerolog"
)

const (
	MessageNotStarted = "Request a QR code first"
	MessagePending    = "Waiting for scan..."
	MessageLoggedIn   = "Logged in, cookies saved"
	MessageExpired    = "Session expired, login required"
	MessageError      = "Last session check failed"
)

// SessionStore combines lifecycle records with the credential store that
// holds each platform's token set.
type SessionStore struct {
	repo   ports.SessionRepository
	tokens ports.SecretStore
	clock  ports.Clock
	logger zerolog.Logger
}

func NewSessionStore(repo ports.SessionRepository, tokens ports.SecretStore, clock ports.Clock, logger zerolog.Logger) *SessionStore {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SessionStore{repo: repo, tokens: tokens, clock: clock, logger: logger}
}

// TokenKey is where a platform's token set lives in the credential store.
func TokenKey(id domain.PlatformID) string {
	return path.Join("qk", string(id), "cookies.json")
}

// Record returns the lifecycle record of a platform. An absent record reads
// as not started and an unreadable one as expired. Tokens are attached only
// while the record is logged in.
func (s *SessionStore) Record(ctx context.Context, id domain.PlatformID) (domain.SessionRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSessionNotFound):
		return domain.NewSessionRecord(id), nil
	case errors.Is(err, domain.ErrCorruptState):
		s.logger.Warn().Err(err).Str("platform", string(id)).Msg("session state unreadable, assuming logged out")
		return domain.SessionRecord{PlatformID: id, Status: domain.StatusExpired}, nil
	default:
		return domain.SessionRecord{}, fmt.Errorf("get session record: %w", err)
	}

	if record.Status != domain.StatusLoggedIn {
		return record, nil
	}

	tokens, err := s.Tokens(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrCorruptState) {
			return domain.SessionRecord{}, err
		}
		s.logger.Warn().Err(err).Str("platform", string(id)).Msg("credential file unreadable, assuming logged out")
		record.Status = domain.StatusExpired
		return record, nil
	}
	if len(tokens) == 0 {
		record.Status = domain.StatusExpired
		return record, nil
	}

	record.Tokens = tokens
	return record, nil
}

func (s *SessionStore) List(ctx context.Context) ([]domain.SessionRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCorruptState) {
			s.logger.Warn().Err(err).Msg("session state unreadable, listing no records")
			return nil, nil
		}
		return nil, fmt.Errorf("list session records: %w", err)
	}

	return records, nil
}

// Tokens reads the stored token set regardless of the record status. A
// missing credential yields no tokens; a malformed one wraps
// domain.ErrCorruptState.
func (s *SessionStore) Tokens(ctx context.Context, id domain.PlatformID) ([]domain.Token, error) {
	raw, err := s.tokens.Get(ctx, TokenKey(id))
	if err != nil {
		if errors.Is(err, domain.ErrSecretNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stored tokens: %w", err)
	}

	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var tokens []domain.Token
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, fmt.Errorf("decode stored tokens: %w: %w", domain.ErrCorruptState, err)
	}

	return tokens, nil
}

// MarkPending starts a new challenge cycle.
func (s *SessionStore) MarkPending(ctx context.Context, id domain.PlatformID) (domain.SessionRecord, error) {
	now := s.clock.Now()
	record, err := s.repo.Update(ctx, id, func(record *domain.SessionRecord) error {
		record.Status = domain.StatusPending
		record.ChallengeIssuedAt = now
		record.LoggedInAt = time.Time{}
		return nil
	})
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("mark session pending: %w", err)
	}

	return record, nil
}

// MarkLoggedIn replaces the stored token set and flips the record to logged
// in. When the record cannot be saved the previous token set is restored.
func (s *SessionStore) MarkLoggedIn(ctx context.Context, id domain.PlatformID, tokens []domain.Token) (domain.SessionRecord, error) {
	if len(tokens) == 0 {
		return domain.SessionRecord{}, domain.ErrNoTokens
	}

	encoded, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("encode tokens: %w", err)
	}

	key := TokenKey(id)
	previous, previousErr := s.tokens.Get(ctx, key)

	if err := s.tokens.Put(ctx, key, string(encoded)); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("store tokens: %w", err)
	}

	now := s.clock.Now()
	record, err := s.repo.Update(ctx, id, func(record *domain.SessionRecord) error {
		record.Status = domain.StatusLoggedIn
		record.TokenRef = key
		record.LoggedInAt = now
		record.LastCheckedAt = now
		return nil
	})
	if err != nil {
		var rollbackErr error
		if previousErr == nil {
			rollbackErr = s.tokens.Put(ctx, key, previous)
		} else {
			rollbackErr = s.tokens.Delete(ctx, key)
		}
		if rollbackErr != nil {
			return domain.SessionRecord{}, fmt.Errorf("save logged-in record and rollback stored tokens: %w", errors.Join(err, rollbackErr))
		}

		return domain.SessionRecord{}, fmt.Errorf("save logged-in record: %w", err)
	}

	record.Tokens = tokens
	return record, nil
}

// MarkChecked records the outcome of a validation or liveness check. Token
// material and LoggedInAt are left untouched. A logged-in verdict never
// overrides a pending challenge: only the watcher completes a login cycle.
func (s *SessionStore) MarkChecked(ctx context.Context, id domain.PlatformID, status domain.SessionStatus) (domain.SessionRecord, error) {
	now := s.clock.Now()
	record, err := s.repo.Update(ctx, id, func(record *domain.SessionRecord) error {
		record.LastCheckedAt = now
		if status == domain.StatusLoggedIn && record.Status == domain.StatusPending {
			return nil
		}
		record.Status = status
		return nil
	})
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("mark session checked: %w", err)
	}

	return record, nil
}

// Exists reports whether a lifecycle record was ever written for id.
func (s *SessionStore) Exists(ctx context.Context, id domain.PlatformID) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrSessionNotFound):
		return false, nil
	case errors.Is(err, domain.ErrCorruptState):
		return true, nil
	default:
		return false, fmt.Errorf("get session record: %w", err)
	}
}

// Report is the local check-status view of one platform.
func (s *SessionStore) Report(ctx context.Context, id domain.PlatformID) (StatusReport, error) {
	record, err := s.Record(ctx, id)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{
		Platform:           id,
		Status:             record.Status,
		Message:            StatusMessage(record.Status),
		ChallengeIssuedAt:  record.ChallengeIssuedAt,
		LoggedInAt:         record.LoggedInAt,
		LastCheckedAt:      record.LastCheckedAt,
		ContinuousDuration: record.ContinuousDuration(s.clock.Now()),
	}
	if record.Status == domain.StatusLoggedIn {
		report.CookiesSaved = true
		report.CookiesCount = len(record.Tokens)
	}

	return report, nil
}

func StatusMessage(status domain.SessionStatus) string {
	switch status {
	case domain.StatusPending:
		return MessagePending
	case domain.StatusLoggedIn:
		return MessageLoggedIn
	case domain.StatusExpired:
		return MessageExpired
	case domain.StatusError:
		return MessageError
	default:
		return MessageNotStarted
	}
}
