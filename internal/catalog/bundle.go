package catalog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"anihub/internal/upstream"
	"anihub/pkg/models"
)

// Bundle is everything the detail screen needs in one round trip.
type Bundle struct {
	Detail     *models.AnimeDetail   `json:"detail"`
	Characters *models.CharacterPage `json:"characters"`
	QTip       *models.QTip          `json:"qtip"`
}

// FetchBundle loads the detail, first character page and tooltip
// concurrently. A detail failure fails the whole bundle and cancels the
// other fetches; the optional parts are left nil when they fail.
func FetchBundle(ctx context.Context, p upstream.Provider, id string, logger *zap.Logger) (*Bundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var b Bundle

	wp := pool.New().WithContext(ctx).WithCancelOnError()
	wp.Go(func(ctx context.Context) error {
		d, err := p.Info(ctx, id)
		if err != nil {
			return err
		}
		b.Detail = d
		return nil
	})
	wp.Go(func(ctx context.Context) error {
		page, err := p.Characters(ctx, id, 1)
		if err != nil {
			logger.Debug("bundle characters unavailable", zap.String("id", id), zap.Error(err))
			return nil
		}
		b.Characters = page
		return nil
	})
	wp.Go(func(ctx context.Context) error {
		q, err := p.QTip(ctx, id)
		if err != nil {
			logger.Debug("bundle qtip unavailable", zap.String("id", id), zap.Error(err))
			return nil
		}
		b.QTip = q
		return nil
	})

	if err := wp.Wait(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (h *Handler) bundle(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	start := time.Now()

	b, err := FetchBundle(c.Request.Context(), h.Provider, id, h.logger)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.Debug("bundle served", zap.String("id", id), zap.Duration("took", time.Since(start)))
	c.JSON(http.StatusOK, b)
}
