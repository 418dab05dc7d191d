package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/qr-session-keeper/internal/adapters/httpapi"
	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/domain"
	"github.com/spf13/viper"
)

const (
	configDirName  = ".qk"
	configFileName = "config.toml"
	configPathEnv  = "QK_CONFIG"
	envPrefix      = "QK"
)

// platformConfig is one [[platforms]] table of the config file.
type platformConfig struct {
	ID                 string        `mapstructure:"id"`
	Name               string        `mapstructure:"name"`
	LoginURL           string        `mapstructure:"login_url"`
	ProtectedURL       string        `mapstructure:"protected_url"`
	LogoutPatterns     []string      `mapstructure:"logout_patterns"`
	HomePatterns       []string      `mapstructure:"home_patterns"`
	QRSelectors        []string      `mapstructure:"qr_selectors"`
	Container          string        `mapstructure:"container"`
	CDPURL             string        `mapstructure:"cdp_url"`
	CredentialArtifact string        `mapstructure:"credential_artifact"`
	MinArtifactBytes   int64         `mapstructure:"min_artifact_bytes"`
	MaxArtifactAge     time.Duration `mapstructure:"max_artifact_age"`
}

func (c platformConfig) toDomain() domain.Platform {
	return domain.Platform{
		ID:                 domain.PlatformID(c.ID),
		Name:               c.Name,
		LoginURL:           c.LoginURL,
		ProtectedURL:       c.ProtectedURL,
		LogoutPatterns:     c.LogoutPatterns,
		HomePatterns:       c.HomePatterns,
		QRSelectors:        c.QRSelectors,
		Container:          c.Container,
		CDPURL:             c.CDPURL,
		CredentialArtifact: c.CredentialArtifact,
		MinArtifactBytes:   c.MinArtifactBytes,
		MaxArtifactAge:     c.MaxArtifactAge,
	}
}

// loadConfig reads ~/.qk/config.toml (or $QK_CONFIG) when present and layers
// QK_* environment variables on top, e.g. QK_SERVER_LISTEN.
func loadConfig() (*viper.Viper, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, configDirName)

	cfg := viper.New()
	setDefaults(cfg, baseDir)

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	path := os.Getenv(configPathEnv)
	if path == "" {
		path = filepath.Join(baseDir, configFileName)
	}
	cfg.SetConfigFile(path)
	cfg.SetConfigType("toml")

	if err := cfg.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return cfg, nil
}

func setDefaults(cfg *viper.Viper, baseDir string) {
	cfg.SetDefault("state.path", filepath.Join(baseDir, "sessions.toml"))
	cfg.SetDefault("snapshot.path", filepath.Join(baseDir, "monitor_snapshot.toml"))
	cfg.SetDefault("credentials.dir", filepath.Join(baseDir, "credentials"))
	cfg.SetDefault("store.backend", storeBackendTOML)
	cfg.SetDefault("redis.addr", "127.0.0.1:6379")
	cfg.SetDefault("redis.db", 0)
	cfg.SetDefault("redis.prefix", "qk:")
	cfg.SetDefault("server.listen", httpapi.DefaultListenAddress)
	cfg.SetDefault("monitor.interval", 10*time.Minute)
	cfg.SetDefault("refresh.interval", 30*time.Minute)
	cfg.SetDefault("challenge.timeout", application.DefaultChallengeTimeout)
	cfg.SetDefault("challenge.poll_interval", application.DefaultPollInterval)
	cfg.SetDefault("challenge.settle", application.DefaultSettlePeriod)
	cfg.SetDefault("challenge.page_settle", application.DefaultPageSettle)
	cfg.SetDefault("challenge.first_image_timeout", application.DefaultAcquireTimeout)
	cfg.SetDefault("challenge.supersede_grace", application.DefaultSupersedeGrace)
	cfg.SetDefault("validate.timeout", application.DefaultValidateTimeout)
	cfg.SetDefault("validate.settle", application.DefaultSettlePeriod)
	cfg.SetDefault("browser.headless", true)
	cfg.SetDefault("browser.install", false)
	cfg.SetDefault("browser.executable_path", "")
	cfg.SetDefault("log.level", "info")
	cfg.SetDefault("log.format", "console")
}

// loadPlatforms returns the configured platforms, or the built-in default
// when the config declares none.
func loadPlatforms(cfg *viper.Viper) ([]domain.Platform, error) {
	var entries []platformConfig
	if err := cfg.UnmarshalKey("platforms", &entries); err != nil {
		return nil, fmt.Errorf("decode platforms: %w", err)
	}

	platforms := make([]domain.Platform, 0, len(entries))
	for _, entry := range entries {
		platform := entry.toDomain()
		if platform.ID == domain.DefaultPlatformID {
			platform = mergeDefault(platform)
		}
		platforms = append(platforms, platform)
	}

	return platforms, nil
}

// mergeDefault lets a [[platforms]] entry for the built-in platform override
// only the fields it sets.
func mergeDefault(override domain.Platform) domain.Platform {
	merged := domain.DefaultPlatform()
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.LoginURL != "" {
		merged.LoginURL = override.LoginURL
	}
	if override.ProtectedURL != "" {
		merged.ProtectedURL = override.ProtectedURL
	}
	if len(override.LogoutPatterns) > 0 {
		merged.LogoutPatterns = override.LogoutPatterns
	}
	if len(override.HomePatterns) > 0 {
		merged.HomePatterns = override.HomePatterns
	}
	if len(override.QRSelectors) > 0 {
		merged.QRSelectors = override.QRSelectors
	}
	if override.Container != "" {
		merged.Container = override.Container
	}
	if override.CDPURL != "" {
		merged.CDPURL = override.CDPURL
	}
	if override.CredentialArtifact != "" {
		merged.CredentialArtifact = override.CredentialArtifact
	}
	if override.MinArtifactBytes > 0 {
		merged.MinArtifactBytes = override.MinArtifactBytes
	}
	if override.MaxArtifactAge > 0 {
		merged.MaxArtifactAge = override.MaxArtifactAge
	}

	return merged
}
