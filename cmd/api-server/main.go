package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"anihub/internal/config"
	"anihub/internal/logging"
	"anihub/internal/middleware"
	"anihub/internal/server"
	"anihub/internal/settings"
	"anihub/internal/upstream"
	"anihub/pkg/database"
)

func main() {
	configPath := flag.String("config", os.Getenv("ANIHUB_CONFIG"), "path to YAML config")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log, *verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !*verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.OpenAndMigrate(database.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout,
		upstream.WithRateLimit(cfg.Upstream.RateLimit, cfg.Upstream.RateBurst),
		upstream.WithLogger(logger),
	)

	store, err := settings.Open(ctx, settings.NewRepo(db), cfg.Language, logger)
	if err != nil {
		logger.Fatal("load settings", zap.Error(err))
	}
	hub := settings.NewHub(logger)

	var limiter *middleware.IPRateLimiter
	if cfg.Server.ClientRate > 0 {
		limiter = middleware.NewIPRateLimiter(rate.Limit(cfg.Server.ClientRate), cfg.Server.ClientBurst)
		defer limiter.Close()
	}

	router, _ := server.NewRouter(server.Deps{
		Config:   cfg,
		DB:       db,
		Provider: client,
		Store:    store,
		Hub:      hub,
		Limiter:  limiter,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx, store)
	}()

	if *configPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// only a language edit in the file overrides the stored choice
			last := cfg.Language
			err := config.Watch(ctx, *configPath, logger, func(next config.Config) {
				if next.Language == last {
					return
				}
				last = next.Language
				if err := store.Set(ctx, next.Language); err != nil {
					logger.Warn("apply language from config", zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP API server listening", zap.String("addr", cfg.Server.HTTPAddr), zap.String("upstream", cfg.Upstream.BaseURL))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}
	stop()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}

	wg.Wait()
	logger.Info("server stopped")
}
