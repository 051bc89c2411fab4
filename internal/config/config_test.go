package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anihub/pkg/models"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, models.LanguageEnglish, cfg.Language)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anihub.yaml")
	writeFile(t, path, `
upstream:
  base_url: https://example.test/api
  timeout: 3s
search:
  debounce: 250ms
language: japanese
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.test/api", cfg.Upstream.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, models.LanguageJapanese, cfg.Language)
	// untouched sections keep defaults
	assert.Equal(t, "anihub", cfg.Auth.JWTIssuer)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anihub.yaml")
	writeFile(t, path, "upstream:\n  base_url: https://file.test\n")

	t.Setenv("ANIHUB_UPSTREAM_URL", "https://env.test")
	t.Setenv("ANIHUB_SEARCH_DEBOUNCE", "not-a-duration")
	t.Setenv("ANIHUB_LANGUAGE", "jp")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.test", cfg.Upstream.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.Debounce, "bad duration keeps default")
	assert.Equal(t, models.LanguageJapanese, cfg.Language)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anihub.yaml")
	writeFile(t, path, "search:\n  debounce: 0s\n")
	_, err := Load(path)
	assert.Error(t, err)

	writeFile(t, path, "language: klingon\n")
	_, err = Load(path)
	assert.Error(t, err)

	writeFile(t, path, "upstream: [not, a, map]\n")
	_, err = Load(path)
	assert.Error(t, err)

	writeFile(t, path, "server:\n  trusted_proxies: [10.0.0.0/8, not-an-ip]\n")
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-an-ip")
}

func TestTrustedProxiesAcceptIPsAndCIDRs(t *testing.T) {
	cfg := Default()
	cfg.Server.TrustedProxies = []string{"127.0.0.1", "::1", "10.0.0.0/8", "fd00::/8"}
	assert.NoError(t, cfg.Validate())

	cfg.Server.TrustedProxies = []string{"10.0.0.0/33"}
	assert.Error(t, cfg.Validate())
}

func TestApplyEnvIgnoresBlank(t *testing.T) {
	cfg := Default()
	env := map[string]string{"ANIHUB_HTTP_ADDR": "   ", "ANIHUB_GRPC_ADDR": ":7000"}
	applyEnv(&cfg, func(k string) string { return env[k] })

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":7000", cfg.Server.GRPCAddr)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anihub.yaml")
	writeFile(t, path, "language: en\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c Config) { changes <- c })
	}()

	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "language: jp\n")

	select {
	case cfg := <-changes:
		assert.Equal(t, models.LanguageJapanese, cfg.Language)
	case <-time.After(3 * time.Second):
		t.Fatal("expected reload after write")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
