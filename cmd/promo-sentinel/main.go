package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"promo-sentinel/internal/bot"
	"promo-sentinel/internal/config"
	"promo-sentinel/internal/invites"
	"promo-sentinel/internal/metrics"
	"promo-sentinel/internal/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabaseDriver, cfg.DatabasePath, storage.BanPeriod{
		OthersWindow:    cfg.OthersWindow(),
		SelfWindow:      cfg.SelfWindow(),
		SelfRepostGrace: cfg.SelfRepostGrace(),
	})
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	var cache invites.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := invites.NewRedisCache(context.Background(), invites.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("invite cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
	}

	m := metrics.New()

	botSvc, err := bot.New(cfg, logger, store, m, cache)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started",
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.String("pipeline_mode", cfg.PipelineMode),
		zap.Bool("invite_cache", cache != nil),
	)

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", m.Handler())
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
