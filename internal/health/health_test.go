package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"anihub/internal/upstream"
	"anihub/pkg/models"
)

type homeStub struct {
	upstream.Provider

	mu  sync.Mutex
	err error
}

func (h *homeStub) set(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func (h *homeStub) Home(ctx context.Context) (*models.HomeFeed, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	return &models.HomeFeed{Trending: []models.Summary{{ID: "naruto-677"}}}, nil
}

func dialHealth(t *testing.T, hs *health.Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestCheckFlipsStatus(t *testing.T) {
	stub := &homeStub{}
	hs := health.NewServer()
	p := NewProber(stub, hs, time.Hour, time.Second, nil)
	client := dialHealth(t, hs)

	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, status(t, client, ServiceUpstream))

	require.NoError(t, p.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ServiceUpstream))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))

	stub.set(fmt.Errorf("upstream: home: %w", upstream.ErrNetworkFailure))
	require.Error(t, p.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ServiceUpstream))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, ""))

	at, err := p.Last()
	assert.False(t, at.IsZero())
	assert.True(t, errors.Is(err, upstream.ErrNetworkFailure))
}

func TestEmptyFeedCountsAsServing(t *testing.T) {
	stub := &homeStub{}
	stub.set(fmt.Errorf("upstream: home: %w", upstream.ErrEmptyResult))
	hs := health.NewServer()
	p := NewProber(stub, hs, time.Hour, time.Second, nil)

	assert.NoError(t, p.Check(context.Background()))
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceUpstream})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRunProbesUntilCancelled(t *testing.T) {
	stub := &homeStub{}
	hs := health.NewServer()
	p := NewProber(stub, hs, 20*time.Millisecond, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		at, err := p.Last()
		return !at.IsZero() && err == nil
	}, time.Second, 5*time.Millisecond)

	stub.set(errors.New("connection refused"))
	require.Eventually(t, func() bool {
		_, err := p.Last()
		return err != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceUpstream})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}
