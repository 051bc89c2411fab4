package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"anihub/internal/settings"
	"anihub/pkg/models"
)

// lockedBuffer is written by the watch goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSettingsSocketURL(t *testing.T) {
	u, err := settingsSocketURL("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/settings", u)

	u, err = settingsSocketURL("https://gw.example.com/anihub")
	require.NoError(t, err)
	assert.Equal(t, "wss://gw.example.com/anihub/ws/settings", u)

	_, err = settingsSocketURL("ftp://x")
	assert.Error(t, err)
}

func TestWatchPrintsLanguageEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := settings.NewStore(models.LanguageEnglish, nil, nil)
	hub := settings.NewHub(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go hub.Run(ctx, store)
	require.Eventually(t, func() bool { return store.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	r := gin.New()
	settings.NewHandler(store, hub, nil, nil).RegisterRoutes(r.Group(""))
	srv := httptest.NewServer(r)
	defer srv.Close()

	out := &lockedBuffer{}
	a := &app{out: out, logger: zap.NewNop()}

	wsURL, err := settingsSocketURL(srv.URL)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.watch(ctx, wsURL, 2) }()

	// the greeting carries the current language; change it once it is printed
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"language": "en"`)
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, store.Set(ctx, models.LanguageJapanese))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not return")
	}

	dec := json.NewDecoder(strings.NewReader(out.String()))
	var first, second models.LanguageEvent
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, models.LanguageEnglish, first.Language)
	assert.Equal(t, models.LanguageJapanese, second.Language)
}
