package application

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/qr-session-keeper/internal/adapters/browser/browsertest"
	tomlrepo "github.com/bnema/qr-session-keeper/internal/adapters/repo/toml"
	filestore "github.com/bnema/qr-session-keeper/internal/adapters/secrets/file"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testLoginURL = "https://creator.douyin.com/"
	testHomeURL  = "https://creator.douyin.com/creator-micro/home"
	testGateURL  = "https://creator.douyin.com/passport/web/login"
)

var testTokens = []domain.Token{
	{Name: "sessionid", Value: "abc123", Domain: ".douyin.com", Path: "/", HTTPOnly: true, Secure: true},
	{Name: "passport_csrf_token", Value: "csrf", Domain: ".douyin.com", Path: "/"},
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func mockAnyContext() interface{} {
	return mock.MatchedBy(func(context.Context) bool { return true })
}

type harness struct {
	clock      *fixedClock
	repo       *tomlrepo.Repository
	secrets    *filestore.Store
	store      *SessionStore
	catalog    *Catalog
	browser    *browsertest.Browser
	registry   *ChallengeRegistry
	watcher    *Watcher
	challenges *ChallengeService
	validator  *Validator
	service    *Service
}

func newHarness(t *testing.T, script func(page *browsertest.Page)) *harness {
	t.Helper()

	dir := t.TempDir()
	config := viper.New()
	config.Set("state.path", filepath.Join(dir, "sessions.toml"))

	repo, err := tomlrepo.NewRepository(config)
	require.NoError(t, err)

	catalog, err := NewCatalog(domain.DefaultPlatform())
	require.NoError(t, err)

	h := &harness{
		clock:    newFixedClock(),
		repo:     repo,
		secrets:  filestore.NewStore(filepath.Join(dir, "credentials")),
		catalog:  catalog,
		browser:  browsertest.New(script),
		registry: NewChallengeRegistry(time.Second),
	}
	logger := zerolog.Nop()

	h.store = NewSessionStore(h.repo, h.secrets, h.clock, logger)
	h.watcher = NewWatcher(h.store, h.clock, nil, logger, WatcherConfig{PollInterval: 2 * time.Second, Settle: 3 * time.Second})
	h.watcher.sleep = noSleep

	h.challenges = NewChallengeService(context.Background(), catalog, h.browser, h.store, h.registry, h.watcher, h.clock, nil, logger, ChallengeConfig{})
	h.challenges.sleep = noSleep

	h.validator = NewValidator(catalog, h.browser, h.store, nil, logger, ValidatorConfig{Settle: 3 * time.Second})
	h.validator.sleep = noSleep

	h.service = NewService(catalog, h.store)

	t.Cleanup(func() { h.registry.Shutdown(context.Background()) })
	return h
}

// loginPage scripts a login page that shows a QR image and is approved on
// the given poll. approveAt <= 0 never approves.
func loginPage(approveAt int) func(page *browsertest.Page) {
	return func(page *browsertest.Page) {
		page.Elements[`img[class*="qrcode_img"]`] = []*browsertest.Element{{Image: []byte("qr-png")}}
		page.OnPoll = func(p *browsertest.Page, call int) {
			if approveAt > 0 && call >= approveAt {
				p.Location = testHomeURL
				p.Jar = append([]domain.Token(nil), testTokens...)
			}
		}
		page.Route = requireSessionToken
	}
}

// requireSessionToken lands on the protected page only when a sessionid
// token was injected.
func requireSessionToken(url string, injected []domain.Token) string {
	if url != testHomeURL {
		return url
	}
	for _, token := range injected {
		if token.Name == "sessionid" && token.Value != "" {
			return url
		}
	}

	return testGateURL
}

func mockAnyString() interface{} {
	return mock.AnythingOfType("string")
}

func mockAnyUpdate() interface{} {
	return mock.Anything
}
