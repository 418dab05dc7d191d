package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusBeforeAnyChallenge(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "platforms: 1")
	assert.Contains(t, stdout, "Douyin Creator (douyin)")
	assert.Contains(t, stdout, "not started")
	assert.Contains(t, stdout, "Request a QR code first")
}

func TestStatusJSONOutput(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "status", "--platform", "douyin", "--json")
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(stdout)))

	var reports []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "douyin", reports[0]["Platform"])
	assert.Equal(t, "not_started", reports[0]["Status"])
	assert.NotContains(t, reports[0], "Probe")
}

func TestStatusUnknownPlatform(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "status", "--platform", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown platform")
}

func TestValidateWithoutCookiesAnswersWithoutBrowser(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "douyin: invalid (expired) No cookies stored, login required")
}

func TestValidateJSONOutput(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "validate", "--json")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, false, result["Valid"])
	assert.Equal(t, false, result["Probed"])
}

func TestCookiesBeforeLogin(t *testing.T) {
	home := t.TempDir()

	_, _, err := executeCLI(t, home, "cookies")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cookies found")
}

func TestConfiguredPlatformsReplaceDefault(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home))

	stdout, _, err := executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "platforms: 1")
	assert.Contains(t, stdout, "Alpha Studio (alpha)")
	assert.NotContains(t, stdout, "douyin")
}

func TestMonitorReportsPlatformWithoutContainer(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home))

	stdout, _, err := executeCLI(t, home, "monitor")
	require.NoError(t, err)
	assert.Contains(t, stdout, "alpha: failed: no container configured")
}

func TestProbeWithoutDebugEndpoint(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, writeConfigFixture(home))

	stdout, _, err := executeCLI(t, home, "probe", "--json")
	require.NoError(t, err)

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0]["Platform"])
	assert.Equal(t, "unknown", results[0]["State"])
	assert.Equal(t, "no remote-debugging endpoint configured", results[0]["Message"])
}

func TestInvalidPlatformConfigFailsEveryCommand(t *testing.T) {
	home := t.TempDir()
	configDir := filepath.Join(home, ".qk")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	config := `[[platforms]]
id = "broken"
login_url = "not a url"
protected_url = "https://example.com/home"
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(config), 0o644))

	_, _, err := executeCLI(t, home, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `platform "broken"`)
}

func TestSampleConfigDeclaresEveryPlatform(t *testing.T) {
	home := t.TempDir()
	sample, err := os.ReadFile(filepath.Join("..", "config.example.toml"))
	require.NoError(t, err)
	configDir := filepath.Join(home, ".qk")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.toml"), sample, 0o644))

	stdout, _, err := executeCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "platforms: 9")
	assert.Contains(t, stdout, "Douyin Creator (douyin)")
	for _, id := range []string{"kuaishou", "xiaohongshu", "toutiao-main", "toutiao-sub", "weibo", "channels", "mp-weixin", "zhihu"} {
		assert.Contains(t, stdout, "("+id+")")
	}
}

func TestSampleConfigPlatformPatterns(t *testing.T) {
	cfg := viper.New()
	cfg.SetConfigFile(filepath.Join("..", "config.example.toml"))
	require.NoError(t, cfg.ReadInConfig())

	platforms, err := loadPlatforms(cfg)
	require.NoError(t, err)
	require.Len(t, platforms, 9)

	byID := make(map[domain.PlatformID]domain.Platform, len(platforms))
	for _, platform := range platforms {
		require.NoError(t, platform.Validate(), platform.ID)
		byID[platform.ID] = platform
	}

	assert.Equal(t, domain.DefaultPlatform(), byID[domain.DefaultPlatformID])
	assert.Equal(t, []string{"login", "bizlogin"}, byID["mp-weixin"].LogoutPatterns)
	assert.Equal(t, []string{"signin", "login"}, byID["zhihu"].LogoutPatterns)
	assert.Equal(t, []string{"channels.weixin.qq.com/platform"}, byID["channels"].HomePatterns)
	assert.Equal(t, "http://127.0.0.1:19223", byID["kuaishou"].CDPURL)
	assert.Equal(t, 5*time.Minute, cfg.GetDuration("monitor.interval"))
}

func TestVersion(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "version")
	require.NoError(t, err)
	assert.Equal(t, "qk dev\n", stdout)
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv(configPathEnv, "")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfigFixture(home string) error {
	configDir := filepath.Join(home, ".qk")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}

	config := `[log]
level = "error"

[[platforms]]
id = "alpha"
name = "Alpha Studio"
login_url = "https://alpha.example.com/login"
protected_url = "https://alpha.example.com/creator/home"
`

	return os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(config), 0o644)
}
