package upstream

import (
	"context"

	"anihub/pkg/models"
)

// Provider is the read-only catalog the front ends render. *Client talks to
// the real API; tests substitute fakes.
type Provider interface {
	Home(ctx context.Context) (*models.HomeFeed, error)
	Info(ctx context.Context, id string) (*models.AnimeDetail, error)
	RandomID(ctx context.Context) (string, error)
	Suggest(ctx context.Context, keyword string) ([]models.Suggestion, error)
	Characters(ctx context.Context, animeID string, page int) (*models.CharacterPage, error)
	QTip(ctx context.Context, animeID string) (*models.QTip, error)
}

var _ Provider = (*Client)(nil)
