// Package main wires together the earthquake monitoring service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/api"
	memorycache "github.com/jdsantos/quakewatch/internal/cache/memory"
	rediscache "github.com/jdsantos/quakewatch/internal/cache/redis"
	"github.com/jdsantos/quakewatch/internal/clock/system"
	"github.com/jdsantos/quakewatch/internal/config"
	collyfetcher "github.com/jdsantos/quakewatch/internal/fetcher/colly"
	"github.com/jdsantos/quakewatch/internal/id/uuid"
	"github.com/jdsantos/quakewatch/internal/logging"
	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/notifier"
	"github.com/jdsantos/quakewatch/internal/poller"
	"github.com/jdsantos/quakewatch/internal/store/postgres"
	"github.com/jdsantos/quakewatch/internal/summarizer"
	"github.com/jdsantos/quakewatch/internal/telemetry"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.DB.DSN, cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("database close failed", zap.Error(closeErr))
		}
	}()

	// A failed Redis connection degrades to the in-process cache rather than
	// keeping the service down; only summaries and sessions live there.
	var cache monitor.Cache
	redisCache, err := rediscache.New(ctx, rediscache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger.Named("redis"))
	if err != nil {
		logger.Warn("redis unavailable, using in-process cache", zap.Error(err))
		cache = memorycache.New()
	} else {
		cache = redisCache
		defer func() {
			if closeErr := redisCache.Close(); closeErr != nil {
				logger.Error("redis close failed", zap.Error(closeErr))
			}
		}()
	}

	events := postgres.NewEventStore(db)
	users := postgres.NewUserStore(db)
	settings := postgres.NewSettingsStore(db)
	clock := system.New()
	idGen := uuid.New()

	fetcher := collyfetcher.New(collyfetcher.Config{
		URL:       cfg.Bulletin.URL,
		UserAgent: cfg.Bulletin.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		CacheTTL:  cfg.BulletinCacheTTL(),
	}, cache, logger.Named("fetcher"))

	var generator summarizer.Generator
	if cfg.AI.APIKey != "" {
		gemini, err := summarizer.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logger.Warn("gemini init failed, summaries fall back to template", zap.Error(err))
			generator = summarizer.Disabled{}
		} else {
			generator = gemini
		}
	} else {
		logger.Info("no AI API key configured, summaries use template")
		generator = summarizer.Disabled{}
	}
	summaries := summarizer.New(generator, cache, cfg.SummaryCacheTTL(), logger.Named("summarizer"))

	var mailer notifier.Mailer
	if cfg.Mail.Host != "" {
		mailer = notifier.NewSMTPMailer(notifier.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	} else {
		mailer = notifier.LogMailer{Logger: logger.Named("mail")}
	}
	alerts := notifier.New(mailer, summaries, logger.Named("notifier"))

	watch := poller.New(poller.Config{
		Interval:     cfg.PollInterval(),
		MinMagnitude: cfg.Poller.MinMagnitude,
		MaxAttempts:  cfg.Poller.MaxAttempts,
		RetryDelay:   cfg.RetryDelay(),
	}, poller.Deps{
		Fetcher:  fetcher,
		Events:   events,
		Users:    users,
		Settings: settings,
		Notifier: alerts,
		Clock:    clock,
		Logger:   logger.Named("poller"),
	})

	apiServer := api.NewServer(api.Deps{
		Users:    users,
		Settings: settings,
		Events:   events,
		Notifier: alerts,
		Sessions: api.NewSessionStore(cache, cfg.SessionTTL()),
		IDGen:    idGen,
		Clock:    clock,
		Logger:   logger.Named("api"),
		Ready:    db.PingContext,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go watch.Run(ctx)

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
