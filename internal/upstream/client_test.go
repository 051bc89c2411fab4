package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anihub/internal/upstream"
	"anihub/internal/upstream/upstreamtest"
	"anihub/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newFakeClient(t *testing.T) (*upstreamtest.Fake, *upstream.Client) {
	t.Helper()
	fake := upstreamtest.New()
	url := fake.Start()
	t.Cleanup(fake.Close)
	return fake, upstream.NewClient(url, 2*time.Second)
}

func TestHome(t *testing.T) {
	_, client := newFakeClient(t)

	feed, err := client.Home(context.Background())
	require.NoError(t, err)

	require.Len(t, feed.Spotlights, 1)
	spot := feed.Spotlights[0]
	assert.Equal(t, "one-piece-100", spot.ID)
	assert.Equal(t, "100", spot.DataID)
	assert.Equal(t, "ワンピース", spot.JapaneseTitle)
	assert.Equal(t, models.Episodes{Sub: 1122, Dub: 1085}, spot.Episodes)

	// topten served in the {today,week,month} shape
	require.Len(t, feed.TopTen, 2)
	assert.Equal(t, "one-piece-100", feed.TopTen[0].ID)
	assert.Len(t, feed.Trending, 2)
}

func TestInfo(t *testing.T) {
	fake, client := newFakeClient(t)

	d, err := client.Info(context.Background(), "naruto-677")
	require.NoError(t, err)

	want := &models.AnimeDetail{
		ID:            "naruto-677",
		Title:         "Naruto",
		JapaneseTitle: "ナルト",
		Poster:        "https://img.example/naruto.jpg",
		Synopsis:      "Naruto Uzumaki wants to be the best ninja in the land.",
		Genres:        []string{"Action", "Adventure", "Martial Arts"},
		Studios:       []string{"Studio Pierrot"},
		EpisodeCount:  220,
		Characters: []models.CharacterEntry{{
			Character: models.Character{ID: "character:naruto-uzumaki-1", Name: "Uzumaki, Naruto", Role: "Main"},
			VoiceActors: []models.VoiceActor{
				{ID: "people:junko-takeuchi-1", Name: "Takeuchi, Junko", Language: "Japanese"},
			},
		}},
		Recommendations: []models.Summary{
			{ID: "naruto-shippuden-355", Title: "Naruto: Shippuden", JapaneseTitle: "ナルト 疾風伝"},
		},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("Info mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"/info?id=naruto-677"}, fake.Requests())
}

func TestInfoUpstream500IsNetworkFailure(t *testing.T) {
	fake, client := newFakeClient(t)
	fake.Fail("/info", http.StatusInternalServerError)

	d, err := client.Info(context.Background(), "123")
	assert.Nil(t, d, "no partial result on failure")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrNetworkFailure)

	var se *upstream.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "/info", se.Endpoint)
}

func TestInfoUnknownIsEmptyResult(t *testing.T) {
	_, client := newFakeClient(t)

	_, err := client.Info(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, upstream.ErrEmptyResult)
	assert.NotErrorIs(t, err, upstream.ErrNetworkFailure)
}

func TestBlankIDsNeverHitTheNetwork(t *testing.T) {
	fake, client := newFakeClient(t)
	ctx := context.Background()

	_, err := client.Info(ctx, "  ")
	assert.ErrorIs(t, err, upstream.ErrInvalidArgument)
	_, err = client.Characters(ctx, "", 1)
	assert.ErrorIs(t, err, upstream.ErrInvalidArgument)
	_, err = client.QTip(ctx, "")
	assert.ErrorIs(t, err, upstream.ErrInvalidArgument)

	got, err := client.Suggest(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Empty(t, fake.Requests())
}

func TestRandomID(t *testing.T) {
	_, client := newFakeClient(t)

	id, err := client.RandomID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "naruto-677", id)
}

func TestSuggest(t *testing.T) {
	fake, client := newFakeClient(t)

	got, err := client.Suggest(context.Background(), "nar")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "naruto-677", got[0].ID)
	assert.Equal(t, "naruto-shippuden-355", got[1].ID)
	assert.Equal(t, []string{"/search/suggest?keyword=nar"}, fake.Requests())

	none, err := client.Suggest(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCharactersPaging(t *testing.T) {
	_, client := newFakeClient(t)
	ctx := context.Background()

	p1, err := client.Characters(ctx, "naruto-677", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p1.CurrentPage)
	assert.Equal(t, 2, p1.TotalPages)
	assert.Len(t, p1.Items, upstreamtest.CharactersPerPage)
	assert.True(t, p1.HasNext())

	p2, err := client.Characters(ctx, "naruto-677", 2)
	require.NoError(t, err)
	require.Len(t, p2.Items, 1)
	assert.Equal(t, "Haruno, Sakura", p2.Items[0].Character.Name)
	assert.False(t, p2.HasNext())

	_, err = client.Characters(ctx, "naruto-677", 3)
	assert.ErrorIs(t, err, upstream.ErrEmptyResult)
}

func TestQTip(t *testing.T) {
	_, client := newFakeClient(t)

	q, err := client.QTip(context.Background(), "one-piece-100")
	require.NoError(t, err)
	assert.Equal(t, "one-piece-100", q.ID)
	assert.Equal(t, "One Piece", q.Title)
	assert.Equal(t, []string{"Action", "Adventure", "Comedy"}, q.Genres, "comma list split")
}

func TestBareResponsesAreAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/random/id":
			_, _ = w.Write([]byte(`"bleach-806"`))
		case "/search/suggest":
			_, _ = w.Write([]byte(`[{"id":"bleach-806","title":"Bleach"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := upstream.NewClient(srv.URL+"/", time.Second)

	id, err := client.RandomID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bleach-806", id)

	got, err := client.Suggest(context.Background(), "ble")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bleach", got[0].Title)
}

func TestSuccessFalseAndGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/home":
			_, _ = w.Write([]byte(`{"success":false,"message":"scrape failed"}`))
		default:
			_, _ = w.Write([]byte(`<html>oops</html>`))
		}
	}))
	defer srv.Close()
	client := upstream.NewClient(srv.URL, time.Second)

	_, err := client.Home(context.Background())
	assert.ErrorIs(t, err, upstream.ErrNetworkFailure)

	_, err = client.QTip(context.Background(), "x")
	assert.ErrorIs(t, err, upstream.ErrNetworkFailure)
}

func TestContextCancelled(t *testing.T) {
	fake, client := newFakeClient(t)
	fake.DelaySuggest("slow", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Suggest(ctx, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream.ErrNetworkFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimitHonoursContext(t *testing.T) {
	fake := upstreamtest.New()
	url := fake.Start()
	defer fake.Close()

	// one token, refilled every 10s
	client := upstream.NewClient(url, time.Second, upstream.WithRateLimit(0.1, 1))

	_, err := client.RandomID(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.RandomID(ctx)
	assert.ErrorIs(t, err, upstream.ErrNetworkFailure)
	assert.Equal(t, 1, fake.Count("/random/id"))
}
