// Package health reports upstream reachability over the standard gRPC
// health protocol.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"anihub/internal/upstream"
)

// ServiceUpstream is the health service name tracking the catalog API.
const ServiceUpstream = "anihub.upstream"

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// Prober periodically calls Provider.Home and flips the health status of
// ServiceUpstream and the overall server accordingly.
type Prober struct {
	provider upstream.Provider
	srv      *health.Server
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	lastErr error
	lastAt  time.Time
}

func NewProber(p upstream.Provider, srv *health.Server, interval, timeout time.Duration, logger *zap.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	srv.SetServingStatus(ServiceUpstream, healthpb.HealthCheckResponse_UNKNOWN)
	return &Prober{
		provider: p,
		srv:      srv,
		interval: interval,
		timeout:  timeout,
		logger:   logger.Named("health"),
	}
}

// Check probes once. An upstream that answers with an empty feed is still
// reachable and counts as serving.
func (p *Prober) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.provider.Home(ctx)
	if errors.Is(err, upstream.ErrEmptyResult) {
		err = nil
	}

	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	p.srv.SetServingStatus(ServiceUpstream, status)
	p.srv.SetServingStatus("", status)

	p.mu.Lock()
	changed := (p.lastErr == nil) != (err == nil) || p.lastAt.IsZero()
	p.lastErr, p.lastAt = err, time.Now()
	p.mu.Unlock()

	if changed {
		if err != nil {
			p.logger.Warn("upstream unhealthy", zap.Error(err))
		} else {
			p.logger.Info("upstream healthy")
		}
	}
	return err
}

// Last returns the outcome and time of the most recent probe.
func (p *Prober) Last() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAt, p.lastErr
}

// Run probes immediately and then every interval until ctx is done, at which
// point every service is marked NOT_SERVING.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	_ = p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			p.srv.Shutdown()
			return
		case <-ticker.C:
			_ = p.Check(ctx)
		}
	}
}
