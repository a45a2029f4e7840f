package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/portico/internal/auth"
	"github.com/MrSnakeDoc/portico/internal/cache"
	"github.com/MrSnakeDoc/portico/internal/compose"
	"github.com/MrSnakeDoc/portico/internal/config"
	"github.com/MrSnakeDoc/portico/internal/health"
	"github.com/MrSnakeDoc/portico/internal/httpserver"
	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/logger"
	"github.com/MrSnakeDoc/portico/internal/observability"
	"github.com/MrSnakeDoc/portico/internal/readiness"
	"github.com/MrSnakeDoc/portico/internal/redis"
	"github.com/MrSnakeDoc/portico/internal/scheduler"
	"github.com/MrSnakeDoc/portico/internal/sources/endpoints"
	redisstore "github.com/MrSnakeDoc/portico/internal/store/redis"
	"github.com/MrSnakeDoc/portico/internal/version"
)

// ErrRestartRequired is returned by Run when composition failed for a
// reason retrying cannot fix.
var ErrRestartRequired = errors.New("fatal composition error, restart required")

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	machine     *readiness.Machine
	redisClient *goredis.Client
	bus         *redisstore.RevocationBus
	health      *scheduler.HealthPoller
	composition *scheduler.CompositionPoller
	sweeper     *scheduler.CacheSweeper
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
	loggerClient.Debug("configuration loaded", logger.Any("config", cfg.Redacted()))

	services, err := endpoints.Load(cfg.ServicesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load services: %w", err)
	}
	loggerClient.Info("services loaded",
		logger.String("file", cfg.ServicesFile),
		logger.Int("count", len(services)))

	engineURL, err := url.Parse(cfg.EngineURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse engine url: %w", err)
	}

	instanceID := uuid.NewString()
	metrics := observability.NewMetrics()

	// Authentication
	validationCache := cache.NewValidationCache()
	remote := auth.NewRemoteValidator(cfg.AuthURL, validationCache,
		auth.WithTimeout(cfg.AuthTimeout),
		auth.WithCacheTTL(cfg.AuthCacheTTL),
		auth.WithRecorder(metrics),
	)
	local := auth.NewLocalValidator(cfg.JWTSecret, auth.WithLeeway(cfg.JWTLeeway))
	gate := auth.NewGate(local, remote, loggerClient,
		auth.WithGateTimeout(cfg.AuthGateTimeout),
		auth.WithGateRecorder(metrics),
	)
	sweeper := scheduler.NewCacheSweeper(validationCache, loggerClient, cfg.AuthCacheSweepInterval)

	// Readiness
	machine := readiness.NewMachine(len(services), loggerClient)
	monitor := health.NewMonitor(services, loggerClient,
		health.WithConcurrency(cfg.HealthConcurrency),
		health.WithFailureLogCap(cfg.HealthFailureLogCap),
		health.WithRecorder(metrics),
	)
	healthTrigger := make(chan struct{}, 1)
	healthPoller := scheduler.NewHealthPoller(monitor, machine, loggerClient, cfg.HealthInterval, healthTrigger)
	composition := scheduler.NewCompositionPoller(
		compose.NewSDLComposer(nil), services, machine, loggerClient, cfg.ComposeInterval)

	metrics.Gauge("auth_cache_entries", "Entries in the validation cache.", func() float64 {
		return float64(validationCache.Len())
	})
	metrics.Gauge("ready", "1 when the gateway serves the data plane.", func() float64 {
		if machine.Snapshot().ReadyForRequests() {
			return 1
		}
		return 0
	})

	d := deps.Deps{
		Logger:             loggerClient,
		StartTime:          time.Now(),
		Version:            version.Version,
		Commit:             version.Commit,
		BuildDate:          version.BuildDate,
		GoVersion:          version.GoVersion,
		InstanceID:         instanceID,
		TimeNow:            time.Now,
		AllowedHosts:       cfg.AllowedHosts,
		AllowedCIDRS:       cfg.AllowedCIDRS,
		TrustProxy:         cfg.TrustProxy,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		SSLRedirect:        cfg.SSLRedirect,
		RequestTimeout:     cfg.RequestTimeout,
		Gate:               gate,
		Credentials:        remote,
		Cache:              validationCache,
		Readiness:          machine,
		Supergraph:         composition,
		EngineURL:          engineURL,
		Metrics:            metrics,
		HealthCheckTrigger: healthTrigger,
	}

	// Redis only carries logout propagation; the gateway runs without it.
	var (
		redisClient *goredis.Client
		bus         *redisstore.RevocationBus
	)
	if cfg.RedisEnabled() {
		redisClient, err = redis.New(context.Background(), redis.OptionsFromConfig(cfg), loggerClient)
		if err != nil {
			loggerClient.Warn("continuing without revocation bus", logger.Error(err))
		} else {
			bus = redisstore.NewRevocationBus(redisClient, instanceID, validationCache, loggerClient)
			d.Revocations = bus
			d.Redis = redisstore.NewStore(redisClient)
		}
	} else {
		loggerClient.Info("redis not configured, logout stays local to this instance")
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		machine:     machine,
		redisClient: redisClient,
		bus:         bus,
		health:      healthPoller,
		composition: composition,
		sweeper:     sweeper,
	}, nil
}

func (a *App) Run() error {
	a.logger.Infof("Starting portico %s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Infof("portico %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	defer func() { _ = a.logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.machine.Begin()

	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cache sweeper: %w", err)
	}
	a.logger.Info("cache sweeper started",
		logger.Duration("interval", a.cfg.AuthCacheSweepInterval))

	if err := a.health.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health poller: %w", err)
	}
	a.logger.Info("health poller started",
		logger.Duration("interval", a.cfg.HealthInterval))

	if err := a.composition.Start(ctx); err != nil {
		return fmt.Errorf("failed to start composition poller: %w", err)
	}
	a.logger.Info("composition poller started",
		logger.Duration("interval", a.cfg.ComposeInterval))

	busStarted := false
	if a.bus != nil {
		if err := a.bus.Start(ctx); err != nil {
			a.logger.Warn("revocation bus unavailable", logger.Error(err))
		} else {
			busStarted = true
		}
	}

	ln, err := a.server.Listen()
	if err != nil {
		a.shutdown(busStarted)
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.ListenAddr, err)
	}
	a.machine.ServerStarted()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case err := <-errCh:
		runErr = err
	case err := <-a.machine.Fatal():
		runErr = fmt.Errorf("%w: %v", ErrRestartRequired, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.shutdown(busStarted)

	if runErr != nil {
		return runErr
	}
	a.logger.Info("portico stopped cleanly")
	return nil
}

// shutdown stops the background loops in reverse start order.
func (a *App) shutdown(busStarted bool) {
	if busStarted {
		a.bus.Stop()
	}
	a.composition.Stop()
	a.health.Stop()
	a.sweeper.Stop()

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("Redis closed cleanly")
		}
	}
}
