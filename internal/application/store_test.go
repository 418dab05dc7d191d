package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/bnema/qr-session-keeper/internal/ports/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreRecordMissingIsNotStarted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	record, err := h.store.Record(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotStarted, record.Status)
	assert.False(t, record.HasTokens())

	report, err := h.service.GetStatus(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotStarted, report.Status)
	assert.Equal(t, MessageNotStarted, report.Message)
	assert.False(t, report.CookiesSaved)
}

func TestSessionStoreCorruptStateReadsAsExpired(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, os.WriteFile(h.repo.Path(), []byte("sessions = ["), 0o600))

	record, err := h.store.Record(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, record.Status)
}

func TestSessionStoreMarkLoggedInPersistsTokensAndStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.store.MarkPending(ctx, "douyin")
	require.NoError(t, err)

	record, err := h.store.MarkLoggedIn(ctx, "douyin", testTokens)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLoggedIn, record.Status)
	assert.Equal(t, h.clock.Now(), record.LoggedInAt)
	assert.Equal(t, TokenKey("douyin"), record.TokenRef)

	reloaded, err := h.store.Record(ctx, "douyin")
	require.NoError(t, err)
	assert.Equal(t, testTokens, reloaded.Tokens)

	h.clock.Advance(90 * time.Minute)
	report, err := h.store.Report(ctx, "douyin")
	require.NoError(t, err)
	assert.True(t, report.CookiesSaved)
	assert.Equal(t, len(testTokens), report.CookiesCount)
	assert.Equal(t, MessageLoggedIn, report.Message)
	assert.Equal(t, 90*time.Minute, report.ContinuousDuration)
}

func TestSessionStoreMarkLoggedInRejectsEmptyTokenSet(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	_, err := h.store.MarkLoggedIn(context.Background(), "douyin", nil)
	require.ErrorIs(t, err, domain.ErrNoTokens)
}

func TestSessionStoreMarkLoggedInRestoresPreviousTokensWhenRecordSaveFails(t *testing.T) {
	repo := mocks.NewMockSessionRepository(t)
	secrets := mocks.NewMockSecretStore(t)
	store := NewSessionStore(repo, secrets, newFixedClock(), zerolog.Nop())

	saveErr := errors.New("disk full")
	key := TokenKey("douyin")
	secrets.EXPECT().Get(mockAnyContext(), key).Return(`[{"name":"old","value":"v","domain":".douyin.com"}]`, nil)
	secrets.EXPECT().Put(mockAnyContext(), key, mockAnyString()).Return(nil).Once()
	repo.EXPECT().Update(mockAnyContext(), domain.PlatformID("douyin"), mockAnyUpdate()).Return(domain.SessionRecord{}, saveErr)
	secrets.EXPECT().Put(mockAnyContext(), key, `[{"name":"old","value":"v","domain":".douyin.com"}]`).Return(nil).Once()

	_, err := store.MarkLoggedIn(context.Background(), "douyin", testTokens)
	require.ErrorIs(t, err, saveErr)
}

func TestSessionStoreMarkLoggedInDeletesTokensWhenNothingToRestore(t *testing.T) {
	repo := mocks.NewMockSessionRepository(t)
	secrets := mocks.NewMockSecretStore(t)
	store := NewSessionStore(repo, secrets, newFixedClock(), zerolog.Nop())

	saveErr := errors.New("disk full")
	rollbackErr := errors.New("permission denied")
	key := TokenKey("douyin")
	secrets.EXPECT().Get(mockAnyContext(), key).Return("", domain.ErrSecretNotFound)
	secrets.EXPECT().Put(mockAnyContext(), key, mockAnyString()).Return(nil)
	repo.EXPECT().Update(mockAnyContext(), domain.PlatformID("douyin"), mockAnyUpdate()).Return(domain.SessionRecord{}, saveErr)
	secrets.EXPECT().Delete(mockAnyContext(), key).Return(rollbackErr)

	_, err := store.MarkLoggedIn(context.Background(), "douyin", testTokens)
	require.ErrorIs(t, err, saveErr)
	require.ErrorIs(t, err, rollbackErr)
	assert.ErrorContains(t, err, "rollback stored tokens")
}

func TestSessionStoreMarkCheckedKeepsTokens(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.store.MarkLoggedIn(ctx, "douyin", testTokens)
	require.NoError(t, err)

	record, err := h.store.MarkChecked(ctx, "douyin", domain.StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, record.Status)

	tokens, err := h.store.Tokens(ctx, "douyin")
	require.NoError(t, err)
	assert.Equal(t, testTokens, tokens)

	view, err := h.store.Record(ctx, "douyin")
	require.NoError(t, err)
	assert.Empty(t, view.Tokens)

	report, err := h.store.Report(ctx, "douyin")
	require.NoError(t, err)
	assert.False(t, report.CookiesSaved)
	assert.Equal(t, MessageExpired, report.Message)
}

func TestSessionStoreMarkCheckedNeverStartsALoginCycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.store.MarkPending(ctx, "douyin")
	require.NoError(t, err)

	record, err := h.store.MarkChecked(ctx, "douyin", domain.StatusLoggedIn)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)
	assert.True(t, record.LoggedInAt.IsZero())
	assert.Equal(t, h.clock.Now(), record.LastCheckedAt)

	_, err = h.store.MarkChecked(ctx, "douyin", domain.StatusExpired)
	require.NoError(t, err)
	record, err = h.store.MarkChecked(ctx, "douyin", domain.StatusLoggedIn)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLoggedIn, record.Status)
	assert.True(t, record.LoggedInAt.IsZero())
}

func TestSessionStoreMalformedTokensWrapCorruptState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.store.MarkLoggedIn(ctx, "douyin", testTokens)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(h.secrets.Root(), TokenKey("douyin")), []byte("{not json"), 0o600))

	_, err = h.store.Tokens(ctx, "douyin")
	require.ErrorIs(t, err, domain.ErrCorruptState)

	record, err := h.store.Record(ctx, "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, record.Status)
}

func TestServiceGetCookies(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.service.GetCookies(ctx, "douyin")
	require.ErrorIs(t, err, domain.ErrNoTokens)

	_, err = h.service.GetCookies(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrUnknownPlatform)

	_, err = h.store.MarkLoggedIn(ctx, "douyin", testTokens)
	require.NoError(t, err)

	tokens, err := h.service.GetCookies(ctx, "douyin")
	require.NoError(t, err)
	assert.Equal(t, testTokens, tokens)
}

func TestServiceGetStatusAllCoversEveryPlatform(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	reports, err := h.service.GetStatusAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, domain.DefaultPlatformID, reports[0].Platform)
}
