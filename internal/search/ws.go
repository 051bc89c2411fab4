package search

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"anihub/pkg/models"
)

const (
	maxQueryLen  = 200
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// incomingQuery is one keystroke: the full current value of the search box.
type incomingQuery struct {
	Q string `json:"q"`
}

type SuggestionsMessage struct {
	Type    string              `json:"type"` // "suggestions"
	Seq     uint64              `json:"seq"`
	Query   string              `json:"query"`
	Results []models.Suggestion `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// Handler serves live search over a WebSocket. Each connection owns one
// Debouncer; closing the socket is the equivalent of unmounting the search box.
type Handler struct {
	Lookup   LookupFunc
	Interval time.Duration

	logger *zap.Logger
	conns  atomic.Int64
}

func NewHandler(lookup LookupFunc, interval time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Lookup: lookup, Interval: interval, logger: logger.Named("search")}
}

// Connections is the number of open search sockets.
func (h *Handler) Connections() int {
	return int(h.conns.Load())
}

func (h *Handler) WS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	log := h.logger.With(zap.String("conn", uuid.NewString()))
	h.conns.Add(1)
	log.Info("search client connected", zap.String("remote", c.ClientIP()))

	var writeMu sync.Mutex
	d := New(h.Interval, h.Lookup, func(res Result) {
		msg := SuggestionsMessage{
			Type:    "suggestions",
			Seq:     res.Seq,
			Query:   res.Query,
			Results: res.Suggestions,
		}
		if res.Err != nil {
			msg.Error = "search unavailable"
		}

		writeMu.Lock()
		defer writeMu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteJSON(msg); err != nil {
			log.Debug("write suggestions failed", zap.Error(err))
		}
	}, WithLogger(log))

	defer func() {
		// stop the debouncer first so nothing writes to a closed socket
		d.Close()
		_ = ws.Close()
		h.conns.Add(-1)
		log.Info("search client disconnected")
	}()

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var in incomingQuery
		if err := json.Unmarshal(payload, &in); err != nil {
			// plain text frames carry the query itself
			in.Q = string(payload)
		}
		d.Input(truncateQuery(in.Q, maxQueryLen))
	}
}

// truncateQuery caps q at max bytes without splitting a multibyte rune.
func truncateQuery(q string, max int) string {
	if len(q) <= max {
		return q
	}
	q = q[:max]
	for len(q) > 0 && !utf8.ValidString(q) {
		q = q[:len(q)-1]
	}
	return q
}
