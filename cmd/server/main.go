package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jengzang/roadsurvey-backend-go/internal/api"
	"github.com/jengzang/roadsurvey-backend-go/internal/config"
	"github.com/jengzang/roadsurvey-backend-go/internal/database"
	"github.com/jengzang/roadsurvey-backend-go/internal/handler"
	"github.com/jengzang/roadsurvey-backend-go/internal/metrics"
	"github.com/jengzang/roadsurvey-backend-go/internal/middleware"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/repository"
	"github.com/jengzang/roadsurvey-backend-go/internal/service"
	"github.com/jengzang/roadsurvey-backend-go/internal/session"
	"github.com/jengzang/roadsurvey-backend-go/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	replay := flag.String("replay", "", "replay a line-delimited JSON recording instead of a live transport")
	issueToken := flag.String("issue-token", "", "print an API token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens minted with -issue-token")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *replay != "" {
		cfg.ReplayFile = *replay
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if *issueToken != "" {
		token, err := middleware.IssueToken(cfg.JWTSecret, *issueToken, *tokenTTL)
		if err != nil {
			logger.Error("failed to issue token", "err", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	thresholds := service.NewThresholdService(cfg.Thresholds, repository.NewThresholdRepository(database.GetDB()))
	if cfg.ThresholdSource == config.ThresholdSourceProfile {
		if err := thresholds.LoadDefaultProfile(); err != nil {
			logger.Warn("using configured thresholds", "err", err)
		}
	}
	if err := cfg.WatchThresholds(func(t models.ThresholdSnapshot) {
		if err := thresholds.Set(t, "config-file"); err != nil {
			logger.Warn("config file thresholds rejected", "err", err)
		}
	}); err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		return err
	}

	sess := session.New(session.Config{
		Feeds:     cfg.Feeds,
		Presence:  cfg.Presence,
		QueueSize: cfg.QueueSize,
	}, thresholds,
		session.WithObserver(metrics.NewObserver(prometheus.DefaultRegisterer)),
		session.WithLogger(logger.With("component", "session")),
	)

	g, ctx := errgroup.WithContext(ctx)

	// 初始化路由
	router := api.SetupRouter(cfg, api.Handlers{
		Lanes:      handler.NewLaneHandler(service.NewLaneService(sess)),
		Thresholds: handler.NewThresholdHandler(thresholds),
		Limiter:    middleware.NewRateLimiter(ctx, cfg.RateLimit, cfg.RateLimitWindow),
		Logger:     logger.With("component", "http"),
	})
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		return sess.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return runTransport(ctx, cfg, sess, logger)
	})

	return g.Wait()
}

// runTransport picks the telemetry source: a replay file, a serial port or an
// MQTT broker, in that order. Transport failures are logged and leave the HTTP
// API serving; only cancellation is returned.
func runTransport(ctx context.Context, cfg *config.Config, sink transport.Sink, logger *slog.Logger) error {
	feed := cfg.Feed
	if feed == "" && len(cfg.Feeds) > 0 {
		feed = cfg.Feeds[0]
	}
	log := logger.With("component", "transport", "feed", feed)

	var err error
	switch {
	case cfg.ReplayFile != "":
		err = runReplay(ctx, cfg.ReplayFile, feed, sink, log)
	case cfg.Serial.Port != "":
		if feed == "" {
			feed = filepath.Base(cfg.Serial.Port)
		}
		err = transport.NewSerial(cfg.Serial, feed, sink, log).Run(ctx)
	case cfg.MQTT.Broker != "":
		if feed == "" {
			err = errors.New("FEED is required for the MQTT transport")
			break
		}
		err = transport.NewMQTT(cfg.MQTT, feed, sink, log).Run(ctx)
	default:
		log.Warn("no transport configured, serving HTTP only")
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		log.Error("transport stopped", "err", err)
	}
	return nil
}

func runReplay(ctx context.Context, path, feed string, sink transport.Sink, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()
	if feed == "" {
		feed = filepath.Base(path)
	}
	_, err = transport.NewLineSource(f, feed, sink, log).Run(ctx)
	return err
}
