package tui

import (
	"anihub/internal/search"
	"anihub/pkg/models"
)

type homeLoadedMsg struct {
	feed *models.HomeFeed
	err  error
}

// detailLoadedMsg answers the detail fetch tagged seq.
type detailLoadedMsg struct {
	seq    uint64
	id     string
	detail *models.AnimeDetail
	err    error
}

type randomIDMsg struct {
	id  string
	err error
}

// suggestionsMsg carries a debouncer result for search session session.
type suggestionsMsg struct {
	session int
	result  search.Result
}

// searchClosedMsg means the results channel of session was closed.
type searchClosedMsg struct {
	session int
}

type languageMsg struct {
	lang models.Language
}

type languageErrMsg struct {
	err error
}
