package models

// Episodes counts sub and dub episodes available for a title.
type Episodes struct {
	Sub int `json:"sub"`
	Dub int `json:"dub"`
}

// Summary is the card-sized projection of an anime used by every listing
// (home sections, recommendations, search results).
type Summary struct {
	ID            string   `json:"id"`
	DataID        string   `json:"data_id,omitempty"`
	Title         string   `json:"title"`
	JapaneseTitle string   `json:"japanese_title,omitempty"`
	Poster        string   `json:"poster,omitempty"`
	Description   string   `json:"description,omitempty"`
	ShowType      string   `json:"show_type,omitempty"`
	Duration      string   `json:"duration,omitempty"`
	ReleaseDate   string   `json:"release_date,omitempty"`
	Quality       string   `json:"quality,omitempty"`
	Episodes      Episodes `json:"episodes"`
}

func (s Summary) DisplayTitle(lang Language) string {
	return pickTitle(lang, s.Title, s.JapaneseTitle)
}

// HomeFeed is the landing page payload. Every section keeps upstream order.
type HomeFeed struct {
	Spotlights    []Summary `json:"spotlights"`
	LatestEpisode []Summary `json:"latest_episode"`
	TopAiring     []Summary `json:"top_airing"`
	MostFavorite  []Summary `json:"most_favorite"`
	Trending      []Summary `json:"trending"`
	TopTen        []Summary `json:"topten"`
}

// Empty reports whether no section carries any entry.
func (h *HomeFeed) Empty() bool {
	if h == nil {
		return true
	}
	return len(h.Spotlights) == 0 &&
		len(h.LatestEpisode) == 0 &&
		len(h.TopAiring) == 0 &&
		len(h.MostFavorite) == 0 &&
		len(h.Trending) == 0 &&
		len(h.TopTen) == 0
}

// Section is a named home listing, in display order.
type Section struct {
	Name  string
	Items []Summary
}

// Sections returns the feed's listings in the order the home screen shows them.
func (h *HomeFeed) Sections() []Section {
	if h == nil {
		return nil
	}
	return []Section{
		{Name: "Spotlight", Items: h.Spotlights},
		{Name: "Trending", Items: h.Trending},
		{Name: "Latest Episodes", Items: h.LatestEpisode},
		{Name: "Top Airing", Items: h.TopAiring},
		{Name: "Most Favorite", Items: h.MostFavorite},
		{Name: "Top 10", Items: h.TopTen},
	}
}

// AnimeDetail is the detail page payload, keyed by ID.
type AnimeDetail struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	JapaneseTitle   string           `json:"japanese_title,omitempty"`
	Poster          string           `json:"poster,omitempty"`
	Synopsis        string           `json:"synopsis,omitempty"`
	Genres          []string         `json:"genres"`
	Studios         []string         `json:"studios"`
	EpisodeCount    int              `json:"episode_count"`
	Characters      []CharacterEntry `json:"characters"`
	Recommendations []Summary        `json:"recommendations"`
}

func (d AnimeDetail) DisplayTitle(lang Language) string {
	return pickTitle(lang, d.Title, d.JapaneseTitle)
}

// Suggestion is one row of the search-as-you-type dropdown.
type Suggestion struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	JapaneseTitle string `json:"japanese_title,omitempty"`
	Poster        string `json:"poster,omitempty"`
	ReleaseDate   string `json:"release_date,omitempty"`
	ShowType      string `json:"show_type,omitempty"`
	Duration      string `json:"duration,omitempty"`
}

func (s Suggestion) DisplayTitle(lang Language) string {
	return pickTitle(lang, s.Title, s.JapaneseTitle)
}

// QTip is the condensed hover preview of a title.
type QTip struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	JapaneseTitle string   `json:"japanese_title,omitempty"`
	Rating        string   `json:"rating,omitempty"`
	Quality       string   `json:"quality,omitempty"`
	SubCount      int      `json:"sub_count"`
	DubCount      int      `json:"dub_count"`
	EpisodeCount  int      `json:"episode_count"`
	Type          string   `json:"type,omitempty"`
	Description   string   `json:"description,omitempty"`
	Aired         string   `json:"aired,omitempty"`
	Status        string   `json:"status,omitempty"`
	Genres        []string `json:"genres"`
}

func (q QTip) DisplayTitle(lang Language) string {
	return pickTitle(lang, q.Title, q.JapaneseTitle)
}

func pickTitle(lang Language, english, japanese string) string {
	if lang == LanguageJapanese && japanese != "" {
		return japanese
	}
	return english
}
