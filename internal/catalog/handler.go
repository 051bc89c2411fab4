package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"anihub/internal/upstream"
	"anihub/pkg/models"
)

// Handler exposes the upstream catalog as gateway routes. It never renders a
// partial body: a failed fetch produces only an error JSON.
type Handler struct {
	Provider upstream.Provider

	logger *zap.Logger
}

func NewHandler(p upstream.Provider, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Provider: p, logger: logger.Named("catalog")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/home", h.home)
	rg.GET("/info", h.info) // GET /info?id=
	rg.GET("/random/id", h.randomID)
	rg.GET("/search/suggest", h.suggest)
	rg.GET("/character/list/:id", h.characters)
	rg.GET("/qtip/:id", h.qtip)
	rg.GET("/bundle/:id", h.bundle)
}

func (h *Handler) home(c *gin.Context) {
	feed, err := h.Provider.Home(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

func (h *Handler) info(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	d, err := h.Provider.Info(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) randomID(c *gin.Context) {
	id, err := h.Provider.RandomID(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handler) suggest(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		c.JSON(http.StatusOK, []models.Suggestion{})
		return
	}

	items, err := h.Provider.Suggest(c.Request.Context(), keyword)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if items == nil {
		items = []models.Suggestion{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) characters(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	page := parseInt(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}

	p, err := h.Provider.Characters(c.Request.Context(), id, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) qtip(c *gin.Context) {
	q, err := h.Provider.QTip(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// writeError maps the upstream error taxonomy onto HTTP.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("upstream request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": msg})
}

// StatusFor returns the HTTP status and client-facing message for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, upstream.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, upstream.ErrEmptyResult):
		return http.StatusNotFound, "not found"
	case errors.Is(err, upstream.ErrNetworkFailure):
		return http.StatusBadGateway, "upstream unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
