package settings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anihub/pkg/models"
)

func newSettingsServer(t *testing.T, guard gin.HandlerFunc) (*Store, *Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := NewStore(models.LanguageEnglish, newRepo(t), nil)
	hub := NewHub(nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx, store)
	require.Eventually(t, func() bool { return store.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	r := gin.New()
	NewHandler(store, hub, guard, nil).RegisterRoutes(r.Group(""))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return store, hub, srv
}

func put(t *testing.T, url, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestPutLanguageBroadcastsToSockets(t *testing.T) {
	store, hub, srv := newSettingsServer(t, nil)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/settings", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))

	var hello models.LanguageEvent
	require.NoError(t, ws.ReadJSON(&hello))
	assert.Equal(t, models.LanguageEnglish, hello.Language)
	assert.Equal(t, 1, hub.Stats().WSClients)

	resp := put(t, srv.URL+"/settings/language", `{"language":"jp"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ev models.LanguageEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "settings.language", ev.Type)
	assert.Equal(t, models.LanguageJapanese, ev.Language)
	assert.False(t, ev.At.IsZero())
	assert.Equal(t, models.LanguageJapanese, store.Get())
}

// Clients joining while the language changes must end on the final value.
func TestJoinDuringChangesEndsOnCurrentValue(t *testing.T) {
	store, _, srv := newSettingsServer(t, nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/settings"

	flipped := make(chan struct{})
	go func() {
		defer close(flipped)
		for i := 0; i < 200; i++ {
			_, _ = store.Toggle(context.Background())
			time.Sleep(100 * time.Microsecond)
		}
	}()

	var conns []*websocket.Conn
	for i := 0; i < 10; i++ {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer ws.Close()
		conns = append(conns, ws)
	}
	<-flipped
	final := store.Get()

	for i, ws := range conns {
		var last models.LanguageEvent
		for {
			require.NoError(t, ws.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
			var ev models.LanguageEvent
			if err := ws.ReadJSON(&ev); err != nil {
				break
			}
			last = ev
		}
		assert.Equal(t, final, last.Language, "client %d", i)
	}
}

func TestPutLanguageValidation(t *testing.T) {
	_, _, srv := newSettingsServer(t, nil)

	assert.Equal(t, http.StatusBadRequest, put(t, srv.URL+"/settings/language", `{"language":"fr"}`, "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, put(t, srv.URL+"/settings/language", `not json`, "").StatusCode)
}

func TestPutLanguageGuarded(t *testing.T) {
	guard := func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer ok" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		c.Next()
	}
	store, _, srv := newSettingsServer(t, guard)

	assert.Equal(t, http.StatusUnauthorized, put(t, srv.URL+"/settings/language", `{"language":"jp"}`, "").StatusCode)
	assert.Equal(t, models.LanguageEnglish, store.Get())

	assert.Equal(t, http.StatusOK, put(t, srv.URL+"/settings/language", `{"language":"jp"}`, "ok").StatusCode)
	assert.Equal(t, models.LanguageJapanese, store.Get())

	resp, err := http.Get(srv.URL + "/settings/language")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
