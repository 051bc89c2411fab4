package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const hubWriteTimeout = 2 * time.Second

// Hub fans language events out to every connected /ws/settings socket.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

type Stats struct {
	WSClients int `json:"ws_clients"`
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger.Named("settings-hub"),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// BroadcastJSON writes v to every client, dropping the ones that fail.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("marshal broadcast", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ws := range h.clients {
		_ = ws.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.logger.Debug("dropping settings client", zap.Error(err))
			_ = ws.Close()
			delete(h.clients, ws)
		}
	}
}

// Join writes the snapshot built by current to ws and then registers it, all
// under the hub lock. A broadcast therefore lands either before the snapshot
// is taken or after the client is registered, never in between.
func (h *Hub) Join(ws *websocket.Conn, current func() any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(hubWriteTimeout))
	if err := ws.WriteJSON(current()); err != nil {
		return err
	}
	h.clients[ws] = struct{}{}
	return nil
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{WSClients: len(h.clients)}
}

// Run broadcasts every change made to store until ctx is done.
func (h *Hub) Run(ctx context.Context, store *Store) {
	ch, unsubscribe := store.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case lang, ok := <-ch:
			if !ok {
				return
			}
			ev := store.Event()
			// a later change may already be visible; the channel will deliver it too
			ev.Language = lang
			h.BroadcastJSON(ev)
			h.logger.Debug("broadcast language", zap.String("language", string(lang)), zap.Int("clients", h.Stats().WSClients))
		}
	}
}
