package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/gofrs/flock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T, path string) *Repository {
	t.Helper()

	config := viper.New()
	config.Set("state.path", path)

	repo, err := NewRepository(config)
	require.NoError(t, err)
	return repo
}

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "sessions.toml"))
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	first := domain.SessionRecord{
		PlatformID:        "douyin",
		Status:            domain.StatusLoggedIn,
		TokenRef:          "qk/douyin/cookies.json",
		ChallengeIssuedAt: now.Add(-time.Minute),
		LoggedInAt:        now,
		LastCheckedAt:     now.Add(time.Hour),
	}
	second := domain.SessionRecord{
		PlatformID:        "kuaishou",
		Status:            domain.StatusPending,
		ChallengeIssuedAt: now,
	}

	require.NoError(t, repo.Save(context.Background(), first))
	require.NoError(t, repo.Save(context.Background(), second))

	got, err := repo.GetByID(context.Background(), first.PlatformID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	records, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.SessionRecord{first, second}, records)
}

func TestRepositoryDoesNotPersistTokenValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	repo := newTestRepository(t, path)

	require.NoError(t, repo.Save(context.Background(), domain.SessionRecord{
		PlatformID: "douyin",
		Status:     domain.StatusLoggedIn,
		TokenRef:   "qk/douyin/cookies.json",
		Tokens:     []domain.Token{{Name: "sessionid", Value: "secret-value", Domain: ".douyin.com"}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-value")
	assert.Contains(t, string(data), "qk/douyin/cookies.json")

	got, err := repo.GetByID(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Empty(t, got.Tokens)
}

func TestRepositoryUpdateStartsFromImplicitRecord(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "sessions.toml"))
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	var seen domain.SessionRecord
	updated, err := repo.Update(context.Background(), "douyin", func(record *domain.SessionRecord) error {
		seen = *record
		record.Status = domain.StatusPending
		record.ChallengeIssuedAt = now
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNotStarted, seen.Status)
	assert.Equal(t, domain.PlatformID("douyin"), seen.PlatformID)
	assert.Equal(t, domain.StatusPending, updated.Status)

	got, err := repo.GetByID(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestRepositoryUpdateErrorLeavesFileUntouched(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "sessions.toml"))
	require.NoError(t, repo.Save(context.Background(), domain.SessionRecord{PlatformID: "douyin", Status: domain.StatusExpired}))

	boom := errors.New("boom")
	_, err := repo.Update(context.Background(), "douyin", func(record *domain.SessionRecord) error {
		record.Status = domain.StatusLoggedIn
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetByID(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
}

func TestRepositoryUpdateReplacesCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	require.NoError(t, os.WriteFile(path, []byte("sessions = ["), 0o600))
	repo := newTestRepository(t, path)

	_, err := repo.Update(context.Background(), "douyin", func(record *domain.SessionRecord) error {
		record.Status = domain.StatusPending
		return nil
	})
	require.NoError(t, err)

	got, err := repo.GetByID(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestRepositorySaveCreatesDefaultPathAndEnforcesPermissions(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	repo, err := NewRepository(viper.New())
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), domain.SessionRecord{PlatformID: "douyin", Status: domain.StatusPending}))

	info, err := os.Stat(filepath.Join(homeDir, ".qk", "sessions.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRepositoryMissingFileBehaviors(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "missing", "sessions.toml"))

	records, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = repo.GetByID(context.Background(), "douyin")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRepositoryMalformedTOMLReturnsCorruptState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	require.NoError(t, os.WriteFile(path, []byte("sessions = ["), 0o600))
	repo := newTestRepository(t, path)

	_, err := repo.List(context.Background())
	require.ErrorIs(t, err, domain.ErrCorruptState)
	assert.ErrorContains(t, err, "decode sessions file")

	_, err = repo.GetByID(context.Background(), "douyin")
	require.ErrorIs(t, err, domain.ErrCorruptState)
}

func TestRepositoryUnknownStatusFallsBackToNotStarted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"version = 1",
		"",
		"[[sessions]]",
		"platform_id = \"douyin\"",
		"status = \"bogus\"",
		"",
	}, "\n")), 0o600))
	repo := newTestRepository(t, path)

	got, err := repo.GetByID(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotStarted, got.Status)
}

func TestRepositorySaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "sessions.toml"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Save(ctx, domain.SessionRecord{PlatformID: "douyin"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRepositoryConcurrentUpdatesAcrossInstancesPreserveAllRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	repoA := newTestRepository(t, path)
	repoB := newTestRepository(t, path)

	const perRepoWrites = 50
	start := make(chan struct{})
	errCh := make(chan error, perRepoWrites*2)
	var wg sync.WaitGroup
	wg.Add(2)

	write := func(repo *Repository, prefix string) {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			errCh <- repo.Save(context.Background(), domain.SessionRecord{
				PlatformID: domain.PlatformID(prefix + strconv.Itoa(i)),
				Status:     domain.StatusPending,
			})
		}
	}

	go write(repoA, "a-")
	go write(repoB, "b-")

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	records, err := repoA.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, perRepoWrites*2)
}

func TestRepositorySaveSerializedTOMLIncludesVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	repo := newTestRepository(t, path)

	require.NoError(t, repo.Save(context.Background(), domain.SessionRecord{PlatformID: "douyin", Status: domain.StatusPending}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"version = 999",
		"",
		"sessions = []",
		"",
	}, "\n")), 0o600))
	repo := newTestRepository(t, path)

	_, err := repo.List(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported sessions schema version")
}

func TestRepositoryUpdateWaitsForLockHeldByAnotherProcess(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.toml")
	repo := newTestRepository(t, path)
	require.NoError(t, repo.Save(context.Background(), domain.SessionRecord{PlatformID: "douyin", Status: domain.StatusPending}))

	held := flock.New(path + lockFileSuffix)
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = repo.Update(ctx, "douyin", func(record *domain.SessionRecord) error {
		record.Status = domain.StatusLoggedIn
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	record, err := repo.GetByID(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)

	require.NoError(t, held.Unlock())
	_, err = repo.Update(context.Background(), "douyin", func(record *domain.SessionRecord) error {
		record.Status = domain.StatusLoggedIn
		return nil
	})
	require.NoError(t, err)

	record, err = repo.GetByID(context.Background(), "douyin")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLoggedIn, record.Status)
}
