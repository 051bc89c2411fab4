package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"anihub/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	Store *Store
	Hub   *Hub
	// Guard protects writes; nil leaves PUT open.
	Guard gin.HandlerFunc

	logger *zap.Logger
}

func NewHandler(store *Store, hub *Hub, guard gin.HandlerFunc, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, Hub: hub, Guard: guard, logger: logger.Named("settings")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings/language", h.getLanguage)
	if h.Guard != nil {
		rg.PUT("/settings/language", h.Guard, h.putLanguage)
	} else {
		rg.PUT("/settings/language", h.putLanguage)
	}
	rg.GET("/ws/settings", h.ws)
}

type languageReq struct {
	Language string `json:"language"`
}

func (h *Handler) getLanguage(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Event())
}

func (h *Handler) putLanguage(c *gin.Context) {
	var req languageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	lang, err := models.ParseLanguage(req.Language)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "language must be one of: en, jp"})
		return
	}

	if err := h.Store.Set(c.Request.Context(), lang); err != nil {
		h.logger.Error("save language", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	c.JSON(http.StatusOK, h.Store.Event())
}

func (h *Handler) ws(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	// current value first so the client never has to poll
	if err := h.Hub.Join(ws, func() any { return h.Store.Event() }); err != nil {
		_ = ws.Close()
		return
	}
	h.logger.Info("settings client connected", zap.String("remote", c.ClientIP()))

	// incoming frames are ignored; reading detects the disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	h.Hub.Remove(ws)
	h.logger.Info("settings client disconnected")
}
