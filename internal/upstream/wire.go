package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"anihub/pkg/models"
)

// envelope is the {"success":..,"results":..} wrapper most endpoints use.
// Some deployments return the payload bare, so unwrapResults accepts both.
type envelope struct {
	Success *bool           `json:"success"`
	Results json.RawMessage `json:"results"`
}

// unwrapResults returns the payload inside an envelope, or body itself when
// it is not enveloped. ok is false when the envelope reports failure.
func unwrapResults(body []byte) (payload []byte, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, true
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed, true
	}
	if env.Success != nil && !*env.Success {
		return nil, false
	}
	if len(env.Results) == 0 || string(env.Results) == "null" {
		if env.Success != nil {
			// {"success":true} with nothing attached
			return nil, true
		}
		return trimmed, true
	}
	return env.Results, true
}

// stringList decodes either ["a","b"] or "a, b".
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*s = cleanStrings(arr)
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = cleanStrings(strings.Split(one, ","))
	return nil
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

type rawEpisodeInfo struct {
	Sub int `json:"sub"`
	Dub int `json:"dub"`
}

type rawTVInfo struct {
	ShowType    string         `json:"showType"`
	Duration    string         `json:"duration"`
	ReleaseDate string         `json:"releaseDate"`
	Quality     string         `json:"quality"`
	EpisodeInfo rawEpisodeInfo `json:"episodeInfo"`
}

type rawSummary struct {
	ID            string    `json:"id"`
	DataID        any       `json:"data_id"` // number or string depending on endpoint
	Title         string    `json:"title"`
	JapaneseTitle string    `json:"japanese_title"`
	Poster        string    `json:"poster"`
	Description   string    `json:"description"`
	TVInfo        rawTVInfo `json:"tvInfo"`
}

func (r rawSummary) toModel() models.Summary {
	return models.Summary{
		ID:            strings.TrimSpace(r.ID),
		DataID:        anyToString(r.DataID),
		Title:         strings.TrimSpace(r.Title),
		JapaneseTitle: strings.TrimSpace(r.JapaneseTitle),
		Poster:        r.Poster,
		Description:   strings.TrimSpace(r.Description),
		ShowType:      r.TVInfo.ShowType,
		Duration:      r.TVInfo.Duration,
		ReleaseDate:   r.TVInfo.ReleaseDate,
		Quality:       r.TVInfo.Quality,
		Episodes:      models.Episodes{Sub: r.TVInfo.EpisodeInfo.Sub, Dub: r.TVInfo.EpisodeInfo.Dub},
	}
}

func summaries(in []rawSummary) []models.Summary {
	out := make([]models.Summary, 0, len(in))
	for _, r := range in {
		if strings.TrimSpace(r.ID) == "" {
			continue
		}
		out = append(out, r.toModel())
	}
	return out
}

type rawHome struct {
	Spotlights    []rawSummary    `json:"spotlights"`
	LatestEpisode []rawSummary    `json:"latest_episode"`
	TopAiring     []rawSummary    `json:"top_airing"`
	MostFavorite  []rawSummary    `json:"most_favorite"`
	Trending      []rawSummary    `json:"trending"`
	TopTen        json.RawMessage `json:"topten"`
}

// topTen accepts a plain list or the {"today","week","month"} form, in which
// case today's ranking is used.
func (r rawHome) topTen() []rawSummary {
	if len(r.TopTen) == 0 {
		return nil
	}
	var list []rawSummary
	if err := json.Unmarshal(r.TopTen, &list); err == nil {
		return list
	}
	var periods struct {
		Today []rawSummary `json:"today"`
	}
	if err := json.Unmarshal(r.TopTen, &periods); err == nil {
		return periods.Today
	}
	return nil
}

func (r rawHome) toModel() *models.HomeFeed {
	return &models.HomeFeed{
		Spotlights:    summaries(r.Spotlights),
		LatestEpisode: summaries(r.LatestEpisode),
		TopAiring:     summaries(r.TopAiring),
		MostFavorite:  summaries(r.MostFavorite),
		Trending:      summaries(r.Trending),
		TopTen:        summaries(r.topTen()),
	}
}

type rawPerson struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Poster   string `json:"poster"`
	Cast     string `json:"cast"` // role for characters, language for voice actors
	Language string `json:"language"`
}

type rawCharacterEntry struct {
	Character   rawPerson   `json:"character"`
	VoiceActors []rawPerson `json:"voiceActors"`
}

func (r rawCharacterEntry) toModel() models.CharacterEntry {
	entry := models.CharacterEntry{
		Character: models.Character{
			ID:     r.Character.ID,
			Name:   strings.TrimSpace(r.Character.Name),
			Poster: r.Character.Poster,
			Role:   r.Character.Cast,
		},
		VoiceActors: make([]models.VoiceActor, 0, len(r.VoiceActors)),
	}
	for _, va := range r.VoiceActors {
		lang := va.Language
		if lang == "" {
			lang = va.Cast
		}
		entry.VoiceActors = append(entry.VoiceActors, models.VoiceActor{
			ID:       va.ID,
			Name:     strings.TrimSpace(va.Name),
			Poster:   va.Poster,
			Language: lang,
		})
	}
	return entry
}

func characterEntries(in []rawCharacterEntry) []models.CharacterEntry {
	out := make([]models.CharacterEntry, 0, len(in))
	for _, r := range in {
		if r.Character.Name == "" && r.Character.ID == "" {
			continue
		}
		out = append(out, r.toModel())
	}
	return out
}

type rawDetail struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	JapaneseTitle string              `json:"japanese_title"`
	Poster        string              `json:"poster"`
	Description   string              `json:"description"`
	Genres        stringList          `json:"genres"`
	Studios       stringList          `json:"studios"`
	EpisodeCount  int                 `json:"episode_count"`
	TVInfo        rawTVInfo           `json:"tvInfo"`
	Characters    []rawCharacterEntry `json:"charactersVoiceActors"`
	Recommended   []rawSummary        `json:"recommended_data"`
}

func (r rawDetail) toModel() *models.AnimeDetail {
	episodes := r.EpisodeCount
	if episodes == 0 {
		episodes = max(r.TVInfo.EpisodeInfo.Sub, r.TVInfo.EpisodeInfo.Dub)
	}
	return &models.AnimeDetail{
		ID:              strings.TrimSpace(r.ID),
		Title:           strings.TrimSpace(r.Title),
		JapaneseTitle:   strings.TrimSpace(r.JapaneseTitle),
		Poster:          r.Poster,
		Synopsis:        strings.TrimSpace(r.Description),
		Genres:          nonNil(r.Genres),
		Studios:         nonNil(r.Studios),
		EpisodeCount:    episodes,
		Characters:      characterEntries(r.Characters),
		Recommendations: summaries(r.Recommended),
	}
}

type rawSuggestion struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	JapaneseTitle string `json:"japanese_title"`
	Poster        string `json:"poster"`
	ReleaseDate   string `json:"releaseDate"`
	ShowType      string `json:"showType"`
	Duration      string `json:"duration"`
}

func (r rawSuggestion) toModel() models.Suggestion {
	return models.Suggestion{
		ID:            strings.TrimSpace(r.ID),
		Title:         strings.TrimSpace(r.Title),
		JapaneseTitle: strings.TrimSpace(r.JapaneseTitle),
		Poster:        r.Poster,
		ReleaseDate:   r.ReleaseDate,
		ShowType:      r.ShowType,
		Duration:      r.Duration,
	}
}

type rawCharacterPage struct {
	CurrentPage int                 `json:"currentPage"`
	TotalPages  int                 `json:"totalPages"`
	Data        []rawCharacterEntry `json:"data"`
}

type rawQTip struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Name          string     `json:"name"`
	JapaneseTitle string     `json:"japaneseTitle"`
	Rating        string     `json:"rating"`
	Quality       string     `json:"quality"`
	SubCount      int        `json:"subCount"`
	DubCount      int        `json:"dubCount"`
	EpisodeCount  int        `json:"episodeCount"`
	Type          string     `json:"type"`
	Description   string     `json:"description"`
	AiredDate     string     `json:"airedDate"`
	Status        string     `json:"status"`
	Genres        stringList `json:"genres"`
}

func (r rawQTip) toModel(id string) *models.QTip {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = strings.TrimSpace(r.Name)
	}
	if r.ID != "" {
		id = r.ID
	}
	return &models.QTip{
		ID:            id,
		Title:         title,
		JapaneseTitle: strings.TrimSpace(r.JapaneseTitle),
		Rating:        r.Rating,
		Quality:       r.Quality,
		SubCount:      r.SubCount,
		DubCount:      r.DubCount,
		EpisodeCount:  r.EpisodeCount,
		Type:          r.Type,
		Description:   strings.TrimSpace(r.Description),
		Aired:         r.AiredDate,
		Status:        r.Status,
		Genres:        nonNil(r.Genres),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
