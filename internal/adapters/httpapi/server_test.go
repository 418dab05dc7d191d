package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/qr-session-keeper/internal/adapters/browser/browsertest"
	"github.com/bnema/qr-session-keeper/internal/adapters/metrics"
	tomlrepo "github.com/bnema/qr-session-keeper/internal/adapters/repo/toml"
	filestore "github.com/bnema/qr-session-keeper/internal/adapters/secrets/file"
	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	homeURL = "https://creator.douyin.com/creator-micro/home"
	gateURL = "https://creator.douyin.com/passport/web/login"
)

var sessionTokens = []domain.Token{
	{Name: "sessionid", Value: "abc123", Domain: ".douyin.com", Path: "/", HTTPOnly: true, Secure: true},
	{Name: "passport_csrf_token", Value: "csrf", Domain: ".douyin.com", Path: "/"},
}

// approvingPage shows a QR image and lands on the home page on the first
// poll. Navigations to the home page without a session token end up on the
// login gateway.
func approvingPage(page *browsertest.Page) {
	page.Elements[`img[class*="qrcode_img"]`] = []*browsertest.Element{{Image: []byte("qr-png")}}
	page.OnPoll = func(p *browsertest.Page, _ int) {
		p.Location = homeURL
		p.Jar = append([]domain.Token(nil), sessionTokens...)
	}
	page.Route = func(url string, injected []domain.Token) string {
		if url != homeURL {
			return url
		}
		for _, token := range injected {
			if token.Name == "sessionid" {
				return url
			}
		}
		return gateURL
	}
}

type apiFixture struct {
	server   *Server
	browser  *browsertest.Browser
	registry *prometheus.Registry
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()

	dir := t.TempDir()
	config := viper.New()
	config.Set("state.path", filepath.Join(dir, "sessions.toml"))
	repo, err := tomlrepo.NewRepository(config)
	require.NoError(t, err)

	catalog, err := application.NewCatalog(domain.DefaultPlatform())
	require.NoError(t, err)

	logger := zerolog.Nop()
	browser := browsertest.New(approvingPage)
	registry := prometheus.NewRegistry()
	recorder := metrics.New(registry)

	store := application.NewSessionStore(repo, filestore.NewStore(filepath.Join(dir, "credentials")), nil, logger)
	challengeRegistry := application.NewChallengeRegistry(time.Second)
	watcher := application.NewWatcher(store, nil, recorder, logger, application.WatcherConfig{PollInterval: 5 * time.Millisecond})
	challenges := application.NewChallengeService(context.Background(), catalog, browser, store, challengeRegistry, watcher, nil, recorder, logger, application.ChallengeConfig{Timeout: 2 * time.Second})
	validator := application.NewValidator(catalog, browser, store, recorder, logger, application.ValidatorConfig{})
	t.Cleanup(func() { challengeRegistry.Shutdown(context.Background()) })

	server := NewServer(Config{}, Deps{
		Service:    application.NewService(catalog, store),
		Challenges: challenges,
		Validator:  validator,
		Gatherer:   registry,
	}, logger)

	return apiFixture{server: server, browser: browser, registry: registry}
}

func (f apiFixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Echo.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}

	return rec, decoded
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	rec, body := f.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, map[string]any{"status": "ok"}, body)
}

func TestPreflightAllowsAnyOrigin(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	rec, _ := f.do(t, http.MethodOptions, "/douyin/qrcode", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Zero(t, f.browser.Opens())
}

func TestUnknownRoutesAnswerWithFlatError(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	for _, tc := range []struct{ method, target, body string }{
		{http.MethodGet, "/douyin/scrape", ""},
		{http.MethodGet, "/douyin/qrcode", ""},
		{http.MethodGet, "/a/b/c", ""},
		{http.MethodPost, "/douyin/scrape", "{}"},
		{http.MethodPost, "/", `{"action":"scrape"}`},
		{http.MethodDelete, "/douyin/status", ""},
	} {
		rec, body := f.do(t, tc.method, tc.target, tc.body)
		assert.Equal(t, http.StatusOK, rec.Code, "%s %s", tc.method, tc.target)
		assert.Equal(t, map[string]any{"error": MessageUnknownEndpoint}, body, "%s %s", tc.method, tc.target)
	}
	assert.Zero(t, f.browser.Opens())
}

func TestStatusBeforeAnyChallenge(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	for _, target := range []string{"/douyin/status", "/status"} {
		_, body := f.do(t, http.MethodGet, target, "")
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "not_started", body["status"])
		assert.Equal(t, application.MessageNotStarted, body["message"])
		assert.NotContains(t, body, "cookies_saved")
		assert.NotContains(t, body, "cookies_count")
	}
}

func TestChallengeFlowOverHTTP(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	_, body := f.do(t, http.MethodPost, "/", "")
	require.Equal(t, true, body["success"], body)
	image, err := base64.StdEncoding.DecodeString(body["qrcode_image"].(string))
	require.NoError(t, err)
	assert.Equal(t, []byte("qr-png"), image)
	assert.Equal(t, MessageScanChallenge, body["message"])
	assert.NotEmpty(t, body["challenge_id"])

	require.Eventually(t, func() bool {
		_, status := f.do(t, http.MethodPost, "/", `{"action":"check-status"}`)
		return status["status"] == "logged_in"
	}, 2*time.Second, 10*time.Millisecond)

	_, status := f.do(t, http.MethodGet, "/douyin/status", "")
	assert.Equal(t, true, status["cookies_saved"])
	assert.EqualValues(t, 2, status["cookies_count"])
	assert.Equal(t, application.MessageLoggedIn, status["message"])

	_, cookies := f.do(t, http.MethodGet, "/douyin/cookies", "")
	assert.Equal(t, true, cookies["success"])
	assert.EqualValues(t, 2, cookies["count"])
	require.Len(t, cookies["cookies"], 2)

	_, validation := f.do(t, http.MethodPost, "/douyin", `{"action":"validate"}`)
	assert.Equal(t, true, validation["success"])
	assert.Equal(t, true, validation["valid"])
	assert.Equal(t, "logged_in", validation["status"])
	assert.Equal(t, application.MessageCookieValid, validation["message"])

	pages := f.browser.Pages()
	require.Len(t, pages, 2)
	require.Eventually(t, func() bool { return pages[0].Closed() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, pages[1].Closed())
}

func TestPathActionWinsOverBodyAction(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	_, body := f.do(t, http.MethodPost, "/douyin/status", `{"action":"get-qrcode"}`)
	assert.Equal(t, "not_started", body["status"])
	assert.Zero(t, f.browser.Opens())
}

func TestValidateWithoutCookiesSkipsBrowser(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	_, body := f.do(t, http.MethodGet, "/validate", "")
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "expired", body["status"])
	assert.Zero(t, f.browser.Opens())
}

func TestCookiesBeforeLogin(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	_, body := f.do(t, http.MethodGet, "/cookies", "")
	assert.Equal(t, map[string]any{"success": false, "error": MessageNoCookies}, body)
}

func TestDomainFailuresStayInBody(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	rec, body := f.do(t, http.MethodGet, "/weibo/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "unknown platform")

	_, body = f.do(t, http.MethodPost, "/douyin/cancel", "")
	assert.Equal(t, false, body["success"])
	assert.Equal(t, application.ErrChallengeNotActive.Error(), body["error"])

	_, body = f.do(t, http.MethodGet, "/sessions/check", "")
	assert.Equal(t, false, body["success"])
}

func TestMetricsExposeChallengeCounters(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	_, body := f.do(t, http.MethodPost, "/douyin/qrcode", "{}")
	require.Equal(t, true, body["success"], body)

	rec, _ := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `qk_challenges_total{outcome="issued",platform="douyin"} 1`)
}

func TestChallengeTimeoutIsClamped(t *testing.T) {
	t.Parallel()

	limit := 5 * time.Minute
	tests := []struct {
		name    string
		seconds float64
		want    time.Duration
	}{
		{name: "unset", seconds: 0, want: 0},
		{name: "negative", seconds: -3, want: 0},
		{name: "not a number", seconds: math.NaN(), want: 0},
		{name: "within limit", seconds: 1.5, want: 1500 * time.Millisecond},
		{name: "at limit", seconds: limit.Seconds(), want: limit},
		{name: "beyond int64 nanoseconds", seconds: 1e300, want: limit},
		{name: "infinite", seconds: math.Inf(1), want: limit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, challengeTimeout(tt.seconds, limit))
		})
	}
}

func TestHugeBodyTimeoutStillIssuesChallenge(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	assert.Equal(t, application.DefaultChallengeTimeout, f.server.cfg.MaxChallengeTimeout)

	_, body := f.do(t, http.MethodPost, "/douyin", `{"action":"get-qrcode","timeout":1e300}`)
	require.Equal(t, true, body["success"], body)
	assert.NotEmpty(t, body["qrcode_image"])

	require.Eventually(t, func() bool {
		_, status := f.do(t, http.MethodGet, "/douyin/status", "")
		return status["status"] == "logged_in"
	}, 2*time.Second, 10*time.Millisecond)
}
