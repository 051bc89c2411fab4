package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"anihub/pkg/models"
)

const maxBodyBytes = 8 << 20

// Client is a GET-only client for the anime catalog API.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	limiter *rate.Limiter
	logger  *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTP = hc }
}

// WithRateLimit caps outbound requests. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("upstream")
		}
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Home(ctx context.Context) (*models.HomeFeed, error) {
	const op = "home"
	var raw rawHome
	if err := c.get(ctx, op, "/home", nil, &raw); err != nil {
		return nil, err
	}
	feed := raw.toModel()
	if feed.Empty() {
		return nil, emptyResult(op)
	}
	return feed, nil
}

func (c *Client) Info(ctx context.Context, id string) (*models.AnimeDetail, error) {
	const op = "info"
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("upstream: %s: id: %w", op, ErrInvalidArgument)
	}

	var raw rawDetail
	if err := c.get(ctx, op, "/info", url.Values{"id": {id}}, &raw); err != nil {
		return nil, err
	}
	d := raw.toModel()
	if d.ID == "" && d.Title == "" {
		return nil, emptyResult(op)
	}
	if d.ID == "" {
		d.ID = id
	}
	return d, nil
}

func (c *Client) RandomID(ctx context.Context) (string, error) {
	const op = "random id"
	var id string
	if err := c.get(ctx, op, "/random/id", nil, &id); err != nil {
		return "", err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", emptyResult(op)
	}
	return id, nil
}

// Suggest returns search-as-you-type matches. A blank keyword yields an empty
// slice without calling the API. No matches is not an error.
func (c *Client) Suggest(ctx context.Context, keyword string) ([]models.Suggestion, error) {
	const op = "suggest"
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []models.Suggestion{}, nil
	}

	var raw []rawSuggestion
	if err := c.get(ctx, op, "/search/suggest", url.Values{"keyword": {keyword}}, &raw); err != nil {
		if errors.Is(err, ErrEmptyResult) {
			return []models.Suggestion{}, nil
		}
		return nil, err
	}
	out := make([]models.Suggestion, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		out = append(out, r.toModel())
	}
	return out, nil
}

func (c *Client) Characters(ctx context.Context, animeID string, page int) (*models.CharacterPage, error) {
	const op = "characters"
	animeID = strings.TrimSpace(animeID)
	if animeID == "" {
		return nil, fmt.Errorf("upstream: %s: anime id: %w", op, ErrInvalidArgument)
	}
	if page < 1 {
		page = 1
	}

	var raw rawCharacterPage
	path := "/character/list/" + url.PathEscape(animeID)
	if err := c.get(ctx, op, path, url.Values{"page": {strconv.Itoa(page)}}, &raw); err != nil {
		return nil, err
	}
	items := characterEntries(raw.Data)
	if len(items) == 0 {
		return nil, emptyResult(op)
	}
	cur := raw.CurrentPage
	if cur == 0 {
		cur = page
	}
	return &models.CharacterPage{
		CurrentPage: cur,
		TotalPages:  max(raw.TotalPages, cur),
		Items:       items,
	}, nil
}

func (c *Client) QTip(ctx context.Context, animeID string) (*models.QTip, error) {
	const op = "qtip"
	animeID = strings.TrimSpace(animeID)
	if animeID == "" {
		return nil, fmt.Errorf("upstream: %s: anime id: %w", op, ErrInvalidArgument)
	}

	// served either as {"anime": {...}} or the object itself
	var wrapped struct {
		Anime *rawQTip `json:"anime"`
		rawQTip
	}
	if err := c.get(ctx, op, "/qtip/"+url.PathEscape(animeID), nil, &wrapped); err != nil {
		return nil, err
	}
	raw := wrapped.rawQTip
	if wrapped.Anime != nil {
		raw = *wrapped.Anime
	}
	q := raw.toModel(animeID)
	if q.Title == "" {
		return nil, emptyResult(op)
	}
	return q, nil
}

// get issues GET BaseURL+path?query and decodes the (possibly enveloped)
// payload into out.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return networkFailure(op, err)
		}
	}

	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return networkFailure(op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return networkFailure(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return networkFailure(op, fmt.Errorf("read body: %w", err))
	}

	c.logger.Debug("request",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream: %s: %w", op, &StatusError{
			Endpoint: path,
			Code:     resp.StatusCode,
			Body:     truncate(strings.TrimSpace(string(body)), 256),
		})
	}

	payload, ok := unwrapResults(body)
	if !ok {
		return networkFailure(op, errors.New("upstream reported failure"))
	}
	if len(payload) == 0 {
		return emptyResult(op)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return networkFailure(op, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
