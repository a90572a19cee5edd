package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/diayouth/internal/api"
	"github.com/npezzotti/diayouth/internal/association"
	"github.com/npezzotti/diayouth/internal/auth"
	"github.com/npezzotti/diayouth/internal/cache"
	"github.com/npezzotti/diayouth/internal/config"
	"github.com/npezzotti/diayouth/internal/database"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/npezzotti/diayouth/internal/stats"
	"github.com/npezzotti/diayouth/internal/supabase"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func main() {
	envFile := os.Getenv("DIAYOUTH_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("config")
	}

	logger := newLogger(cfg)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	dbConn, err := database.NewPgDiaYouthRepository(startCtx, cfg.DatabaseDSN)
	if err != nil {
		logger.WithError(err).Fatal("db open")
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.WithError(err).Error("db close")
		}
	}()

	if cfg.MigrateOnStart {
		if err := dbConn.Migrate(); err != nil {
			logger.WithError(err).Fatal("db migrate")
		}
	}

	var remote *supabase.Client
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		remote, err = supabase.NewClient(supabase.Config{URL: cfg.SupabaseURL, Key: cfg.SupabaseKey}, logger)
		if err != nil {
			logger.WithError(err).Fatal("supabase client")
		}
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	hub := feed.NewHub(logger, statsUpdater, api.Topics)

	members, err := association.NewMembership(cfg.MembershipCacheSize)
	if err != nil {
		logger.WithError(err).Fatal("membership cache")
	}

	var store association.Store = dbConn.Associations()
	if cfg.AssociationBackend == config.BackendSupabase {
		store = remote.Associations()
	}

	toggler := association.NewToggler(store, logger,
		association.WithMembership(members),
		association.WithStats(statsUpdater),
		association.WithNotifier(api.AssociationNotifier(hub)),
	)

	var (
		backend cache.Backend
		memory  *cache.MemoryBackend
	)
	switch cfg.CacheBackend {
	case config.CacheRedis:
		backend, err = cache.NewRedisBackend(startCtx, cfg.RedisAddr)
		if err != nil {
			logger.WithError(err).Fatal("redis cache")
		}
	default:
		memory = cache.NewMemoryBackend()
		backend = memory
	}
	listCache := cache.New(backend, cfg.CacheTTL, logger, statsUpdater)
	defer listCache.Close()

	var (
		provider auth.Provider
		verifier *auth.Verifier
	)
	switch cfg.AuthProvider {
	case config.AuthSupabase:
		provider = auth.NewSupabaseProvider(remote, dbConn, logger)
		verifier = auth.NewVerifier([]byte(cfg.SupabaseJWTSecret))
	default:
		provider = auth.NewLocalProvider(dbConn, cfg.SigningKey, logger)
		verifier = auth.NewVerifier(cfg.SigningKey)
	}

	svc := api.Services{
		DB:         dbConn,
		Auth:       provider,
		Verifier:   verifier,
		Toggler:    toggler,
		Membership: members,
		Hub:        hub,
		Cache:      listCache,
		Stats:      statsUpdater,
	}
	if remote != nil {
		svc.Storage = remote
	}
	srv := api.NewDiaYouthApp(mux, logger, svc, cfg)

	go hub.Run()

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	if err := listCache.Watch(runCtx, hub, api.Topics...); err != nil {
		logger.WithError(err).Fatal("cache watch")
	}

	if cfg.RealtimeBridge {
		bridge := supabase.NewBridge(hub, toggler, logger)
		rt := remote.Realtime(api.Topics, bridge.Handle)
		if err := rt.Validate(); err != nil {
			logger.WithError(err).Fatal("realtime bridge")
		}
		go rt.Run(runCtx)
	}

	jobs := cron.New()
	jobs.AddFunc("@every 5m", func() {
		if n := srv.Limiter().Cleanup(); n > 0 {
			logger.WithField("dropped", n).Debug("rate limiter cleanup")
		}
	})
	if memory != nil {
		jobs.AddFunc("@every 1m", func() {
			if n := memory.Sweep(); n > 0 {
				logger.WithField("expired", n).Debug("cache sweep")
			}
		})
	}
	jobs.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.WithField("signal", sig.String()).Info("received signal")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server")
		}
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown")
	}

	stopRun()
	<-jobs.Stop().Done()

	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.WithError(err).Error("change feed hub shutdown")
	}

	logger.Info("shutdown complete")
}
