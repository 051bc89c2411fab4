package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"

	"anihub/internal/config"
	healthsvc "anihub/internal/health"
	"anihub/internal/logging"
	"anihub/internal/upstream"
)

func main() {
	configPath := flag.String("config", os.Getenv("ANIHUB_CONFIG"), "path to YAML config")
	verbose := flag.Bool("verbose", false, "debug logging")
	interval := flag.Duration("interval", healthsvc.DefaultInterval, "upstream probe interval")
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

	listener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen failed", zap.Error(err))
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout,
		upstream.WithRateLimit(cfg.Upstream.RateLimit, cfg.Upstream.RateBurst),
		upstream.WithLogger(logger),
	)

	hs := health.NewServer()
	prober := healthsvc.NewProber(client, hs, *interval, cfg.Upstream.Timeout, logger)
	grpcServer := healthsvc.NewServer(hs)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		prober.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down gRPC server")
		grpcServer.GracefulStop()
	}()

	logger.Info("gRPC health server listening", zap.String("addr", cfg.Server.GRPCAddr))
	if err := grpcServer.Serve(listener); err != nil {
		logger.Error("grpc server stopped", zap.Error(err))
	}
	stop()
	<-done
}
