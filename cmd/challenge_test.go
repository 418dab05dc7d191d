package cmd

import (
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/qr-session-keeper/internal/adapters/browser/browsertest"
	tomlrepo "github.com/bnema/qr-session-keeper/internal/adapters/repo/toml"
	filestore "github.com/bnema/qr-session-keeper/internal/adapters/secrets/file"
	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scannedHomeURL = "https://creator.douyin.com/creator-micro/home"

// streamLog records writes to stdout and stderr in the order they happen.
type streamLog struct {
	mu     sync.Mutex
	events []string
}

func (l *streamLog) writer(stream string) *streamWriter {
	return &streamWriter{log: l, stream: stream}
}

func (l *streamLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.events...)
}

type streamWriter struct {
	log    *streamLog
	stream string
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.log.mu.Lock()
	defer w.log.mu.Unlock()

	w.log.events = append(w.log.events, w.stream+": "+strings.TrimSpace(string(p)))
	return len(p), nil
}

// scanOnPoll shows a QR image and lands on the home page with session
// cookies from the given poll on.
func scanOnPoll(approveAt int) func(page *browsertest.Page) {
	return func(page *browsertest.Page) {
		page.Elements[`img[class*="qrcode_img"]`] = []*browsertest.Element{{Image: []byte("qr-png")}}
		page.OnPoll = func(p *browsertest.Page, call int) {
			if call < approveAt {
				return
			}
			p.Location = scannedHomeURL
			p.Jar = []domain.Token{
				{Name: "sessionid", Value: "abc123", Domain: ".douyin.com", Path: "/"},
				{Name: "passport_csrf_token", Value: "csrf", Domain: ".douyin.com", Path: "/"},
			}
		}
	}
}

func newChallengeApp(t *testing.T, browser *browsertest.Browser) *app {
	t.Helper()

	dir := t.TempDir()
	config := viper.New()
	config.Set("state.path", filepath.Join(dir, "sessions.toml"))
	repo, err := tomlrepo.NewRepository(config)
	require.NoError(t, err)

	catalog, err := application.NewCatalog(domain.DefaultPlatform())
	require.NoError(t, err)

	logger := zerolog.Nop()
	store := application.NewSessionStore(repo, filestore.NewStore(filepath.Join(dir, "credentials")), nil, logger)
	registry := application.NewChallengeRegistry(time.Second)
	watcher := application.NewWatcher(store, nil, nil, logger, application.WatcherConfig{PollInterval: 5 * time.Millisecond})
	t.Cleanup(func() { registry.Shutdown(context.Background()) })

	return &app{
		logger:     logger,
		catalog:    catalog,
		registry:   registry,
		service:    application.NewService(catalog, store),
		challenges: application.NewChallengeService(context.Background(), catalog, browser, store, registry, watcher, nil, nil, logger, application.ChallengeConfig{Timeout: 2 * time.Second}),
	}
}

func newStreamCommand(log *streamLog) *cobra.Command {
	c := &cobra.Command{}
	c.SetOut(log.writer("stdout"))
	c.SetErr(log.writer("stderr"))
	c.SetContext(context.Background())
	return c
}

func TestChallengeWaitPrintsImageBeforeProgress(t *testing.T) {
	browser := browsertest.New(scanOnPoll(3))
	a := newChallengeApp(t, browser)
	log := &streamLog{}

	err := runChallenge(newStreamCommand(log), a, domain.DefaultPlatformID, true, 0, "")
	require.NoError(t, err)

	events := log.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, "stdout: "+base64.StdEncoding.EncodeToString([]byte("qr-png")), events[0])

	var progressLines int
	for _, event := range events[1:] {
		if strings.HasPrefix(event, "stderr: [") {
			progressLines++
		}
	}
	assert.Positive(t, progressLines)
	assert.Contains(t, events, "stdout: Logged in to douyin, 2 cookies saved")

	report, err := a.service.GetStatus(context.Background(), domain.DefaultPlatformID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLoggedIn, report.Status)
}

func TestChallengeWaitWritesImageFileBeforeProgress(t *testing.T) {
	browser := browsertest.New(scanOnPoll(2))
	a := newChallengeApp(t, browser)
	log := &streamLog{}
	outPath := filepath.Join(t.TempDir(), "qr.png")

	err := runChallenge(newStreamCommand(log), a, domain.DefaultPlatformID, true, 0, outPath)
	require.NoError(t, err)

	events := log.snapshot()
	require.NotEmpty(t, events)
	assert.True(t, strings.HasPrefix(events[0], "stdout: QR code for douyin written to "+outPath), events[0])
}

func TestChallengeImageWriteFailureCancelsWatch(t *testing.T) {
	browser := browsertest.New(scanOnPoll(1))
	a := newChallengeApp(t, browser)
	log := &streamLog{}
	outPath := filepath.Join(t.TempDir(), "missing", "qr.png")

	err := runChallenge(newStreamCommand(log), a, domain.DefaultPlatformID, true, 0, outPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write qr image")

	for _, event := range log.snapshot() {
		assert.False(t, strings.HasPrefix(event, "stderr: ["), "no poll may run after a failed delivery: %s", event)
	}

	pages := browser.Pages()
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Closed())
	_, active := a.challenges.Active(domain.DefaultPlatformID)
	assert.False(t, active)

	report, err := a.service.GetStatus(context.Background(), domain.DefaultPlatformID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, report.Status)
}
