package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bnema/qr-session-keeper/internal/adapters/browser/playwright"
	roddevtools "github.com/bnema/qr-session-keeper/internal/adapters/devtools/rod"
	"github.com/bnema/qr-session-keeper/internal/adapters/metrics"
	"github.com/bnema/qr-session-keeper/internal/adapters/notify"
	statusadapter "github.com/bnema/qr-session-keeper/internal/adapters/render/status"
	redisrepo "github.com/bnema/qr-session-keeper/internal/adapters/repo/redis"
	tomlrepo "github.com/bnema/qr-session-keeper/internal/adapters/repo/toml"
	dockerruntime "github.com/bnema/qr-session-keeper/internal/adapters/runtime/docker"
	filestore "github.com/bnema/qr-session-keeper/internal/adapters/secrets/file"
	"github.com/bnema/qr-session-keeper/internal/application"
	"github.com/bnema/qr-session-keeper/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	storeBackendTOML  = "toml"
	storeBackendRedis = "redis"
)

type app struct {
	config  *viper.Viper
	logger  zerolog.Logger
	catalog *application.Catalog

	service    *application.Service
	challenges *application.ChallengeService
	validator  *application.Validator
	monitor    *application.Monitor
	refresher  *application.Refresher
	probe      *application.PageProbe
	registry   *application.ChallengeRegistry

	metrics        *prometheus.Registry
	statusRenderer func([]application.StatusReport, statusadapter.RenderOptions) (string, error)
	now            func() time.Time

	closers []func() error
}

func wireApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}

	platforms, err := loadPlatforms(cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := application.NewCatalog(platforms...)
	if err != nil {
		return nil, fmt.Errorf("wire platform catalog: %w", err)
	}

	a := &app{
		config:         cfg,
		logger:         logger,
		catalog:        catalog,
		metrics:        prometheus.NewRegistry(),
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}
	a.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(a.metrics)

	sessions, snapshots, err := a.wireRepositories()
	if err != nil {
		return nil, err
	}

	clock := ports.SystemClock{}
	store := application.NewSessionStore(sessions, filestore.NewStore(cfg.GetString("credentials.dir")), clock, logger)

	browser := playwright.New(playwright.Options{
		Headless:       cfg.GetBool("browser.headless"),
		Install:        cfg.GetBool("browser.install"),
		ExecutablePath: cfg.GetString("browser.executable_path"),
	}, logger.With().Str("component", "browser").Logger())
	a.closers = append(a.closers, browser.Close)

	devtools := roddevtools.New()
	runtime := dockerruntime.NewRuntime()

	a.registry = application.NewChallengeRegistry(cfg.GetDuration("challenge.supersede_grace"))
	watcher := application.NewWatcher(store, clock, recorder, logger.With().Str("component", "watcher").Logger(), application.WatcherConfig{
		PollInterval: cfg.GetDuration("challenge.poll_interval"),
		Settle:       cfg.GetDuration("challenge.settle"),
	})

	a.service = application.NewService(catalog, store)
	a.challenges = application.NewChallengeService(
		context.Background(),
		catalog,
		browser,
		store,
		a.registry,
		watcher,
		clock,
		recorder,
		logger.With().Str("component", "challenge").Logger(),
		application.ChallengeConfig{
			Timeout:        cfg.GetDuration("challenge.timeout"),
			AcquireTimeout: cfg.GetDuration("challenge.first_image_timeout"),
			PageSettle:     cfg.GetDuration("challenge.page_settle"),
		},
	)
	a.validator = application.NewValidator(catalog, browser, store, recorder, logger.With().Str("component", "validator").Logger(), application.ValidatorConfig{
		Timeout: cfg.GetDuration("validate.timeout"),
		Settle:  cfg.GetDuration("validate.settle"),
	})
	a.monitor = application.NewMonitor(
		catalog,
		store,
		runtime,
		snapshots,
		a.registry,
		notify.NewLogNotifier(logger.With().Str("component", "monitor").Logger()),
		clock,
		recorder,
		logger.With().Str("component", "monitor").Logger(),
		application.MonitorConfig{},
	)
	a.refresher = application.NewRefresher(catalog, devtools, runtime, a.registry, recorder, logger.With().Str("component", "refresher").Logger())
	a.probe = application.NewPageProbe(catalog, devtools, clock)

	return a, nil
}

func (a *app) wireRepositories() (ports.SessionRepository, ports.SnapshotRepository, error) {
	switch backend := a.config.GetString("store.backend"); backend {
	case storeBackendTOML, "":
		sessions, err := tomlrepo.NewRepository(a.config)
		if err != nil {
			return nil, nil, fmt.Errorf("wire session repository: %w", err)
		}
		snapshots, err := tomlrepo.NewSnapshotRepository(a.config)
		if err != nil {
			return nil, nil, fmt.Errorf("wire snapshot repository: %w", err)
		}
		return sessions, snapshots, nil
	case storeBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr: a.config.GetString("redis.addr"),
			DB:   a.config.GetInt("redis.db"),
		})
		a.closers = append(a.closers, client.Close)

		repoConfig := redisrepo.Config{Client: client, KeyPrefix: a.config.GetString("redis.prefix")}
		sessions, err := redisrepo.New(repoConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("wire session repository: %w", err)
		}
		snapshots, err := redisrepo.NewSnapshotRepository(repoConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("wire snapshot repository: %w", err)
		}
		return sessions, snapshots, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store.backend %q (expected %s or %s)", backend, storeBackendTOML, storeBackendRedis)
	}
}

// shutdown stops in-flight challenges and releases the browser and store
// connections.
func (a *app) shutdown(ctx context.Context) error {
	a.registry.Shutdown(ctx)

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

const shutdownTimeout = 10 * time.Second

// release runs shutdown with a bounded context and logs what it could not close.
func (a *app) release() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("shutdown")
	}
}
