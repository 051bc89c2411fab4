// Package tui is the terminal front end: home listings, live search and the
// anime detail screen.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"anihub/internal/search"
	"anihub/internal/settings"
	"anihub/internal/upstream"
	"anihub/pkg/models"
)

type screen int

const (
	screenHome screen = iota
	screenSearch
	screenDetail
)

// Model is the bubbletea model. It is used through a pointer so the search
// session and detail sequence survive Update calls.
type Model struct {
	ctx      context.Context
	provider upstream.Provider
	store    *settings.Store
	interval time.Duration
	logger   *zap.Logger
	styles   Styles

	screen        screen
	width, height int
	status        string

	lang        models.Language
	langSub     <-chan models.Language
	unsubscribe func()

	home        *models.HomeFeed
	homeErr     error
	homeLoading bool
	cursor      int

	input        textinput.Model
	debouncer    *search.Debouncer
	results      chan search.Result
	session      int
	suggestions  []models.Suggestion
	searchErr    error
	searchCursor int

	detailSeq     *search.Sequence
	detailID      string
	detail        *models.AnimeDetail
	detailErr     error
	detailLoading bool
}

// New builds the model. store supplies the display language; interval is the
// search debounce.
func New(ctx context.Context, p upstream.Provider, store *settings.Store, interval time.Duration, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	ti := textinput.New()
	ti.Placeholder = "Search anime..."
	ti.CharLimit = 200
	ti.Prompt = "/ "

	sub, unsubscribe := store.Subscribe()
	return &Model{
		ctx:         ctx,
		provider:    p,
		store:       store,
		interval:    interval,
		logger:      logger.Named("tui"),
		styles:      DefaultStyles(),
		lang:        store.Get(),
		langSub:     sub,
		unsubscribe: unsubscribe,
		input:       ti,
		homeLoading: true,
		detailSeq:   &search.Sequence{},
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadHome(), m.listenLanguage())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, msg.Width-6)
		return m, nil

	case homeLoadedMsg:
		m.homeLoading = false
		if msg.err != nil {
			m.home, m.homeErr = nil, msg.err
		} else {
			m.home, m.homeErr = msg.feed, nil
		}
		m.cursor = 0
		return m, nil

	case detailLoadedMsg:
		// a response to anything but the last issued fetch is dropped
		if !m.detailSeq.IsLatest(msg.seq) {
			return m, nil
		}
		m.detailLoading = false
		if msg.err != nil {
			m.detail, m.detailErr = nil, msg.err
		} else {
			m.detail, m.detailErr = msg.detail, nil
		}
		return m, nil

	case randomIDMsg:
		if msg.err != nil {
			m.status = "random pick failed: " + errorText(msg.err)
			return m, nil
		}
		return m, m.openDetail(msg.id)

	case suggestionsMsg:
		if msg.session != m.session || m.debouncer == nil {
			return m, nil
		}
		m.suggestions = msg.result.Suggestions
		m.searchErr = msg.result.Err
		m.searchCursor = clamp(m.searchCursor, len(m.suggestions))
		return m, m.waitSuggestions()

	case searchClosedMsg:
		return m, nil

	case languageMsg:
		m.lang = msg.lang
		m.status = "language: " + string(msg.lang)
		return m, m.listenLanguage()

	case languageErrMsg:
		m.status = "language change failed: " + msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.screen == screenSearch {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.Shutdown()
		return m, tea.Quit
	}

	switch m.screen {
	case screenHome:
		items := m.homeItems()
		switch msg.String() {
		case "q":
			m.Shutdown()
			return m, tea.Quit
		case "/", "s":
			return m, m.enterSearch()
		case "up", "k":
			m.cursor = clamp(m.cursor-1, len(items))
		case "down", "j":
			m.cursor = clamp(m.cursor+1, len(items))
		case "enter":
			if m.cursor < len(items) {
				return m, m.openDetail(items[m.cursor].ID)
			}
		case "r":
			return m, m.randomID()
		case "ctrl+r":
			m.homeLoading = true
			return m, m.loadHome()
		case "l":
			return m, m.toggleLanguage()
		}
		return m, nil

	case screenSearch:
		switch msg.String() {
		case "esc":
			m.leaveSearch()
			m.screen = screenHome
			return m, nil
		case "enter":
			if m.searchCursor < len(m.suggestions) {
				return m, m.openDetail(m.suggestions[m.searchCursor].ID)
			}
			return m, nil
		case "up":
			m.searchCursor = clamp(m.searchCursor-1, len(m.suggestions))
			return m, nil
		case "down":
			m.searchCursor = clamp(m.searchCursor+1, len(m.suggestions))
			return m, nil
		case "ctrl+l":
			return m, m.toggleLanguage()
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if v := m.input.Value(); v != before {
			m.debouncer.Input(v)
		}
		return m, cmd

	case screenDetail:
		switch msg.String() {
		case "q":
			m.Shutdown()
			return m, tea.Quit
		case "esc", "backspace", "b":
			m.detailSeq.Invalidate()
			m.detailLoading = false
			m.screen = screenHome
		case "l":
			return m, m.toggleLanguage()
		case "ctrl+r":
			if m.detailID != "" {
				return m, m.openDetail(m.detailID)
			}
		}
	}
	return m, nil
}

// Shutdown releases the search session and the language subscription.
func (m *Model) Shutdown() {
	m.leaveSearch()
	m.detailSeq.Invalidate()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) loadHome() tea.Cmd {
	ctx, p := m.ctx, m.provider
	return func() tea.Msg {
		feed, err := p.Home(ctx)
		return homeLoadedMsg{feed: feed, err: err}
	}
}

func (m *Model) randomID() tea.Cmd {
	ctx, p := m.ctx, m.provider
	return func() tea.Msg {
		id, err := p.RandomID(ctx)
		return randomIDMsg{id: id, err: err}
	}
}

// openDetail switches to the detail screen and issues a fetch tagged with
// the next sequence number.
func (m *Model) openDetail(id string) tea.Cmd {
	if m.screen == screenSearch {
		m.leaveSearch()
	}
	seq := m.detailSeq.Next()
	m.screen = screenDetail
	m.detailID = id
	m.detail, m.detailErr = nil, nil
	m.detailLoading = true

	ctx, p := m.ctx, m.provider
	return func() tea.Msg {
		d, err := p.Info(ctx, id)
		return detailLoadedMsg{seq: seq, id: id, detail: d, err: err}
	}
}

// enterSearch mounts a fresh search box with its own debouncer.
func (m *Model) enterSearch() tea.Cmd {
	m.leaveSearch()
	m.session++
	results := make(chan search.Result, 1)
	m.results = results
	m.debouncer = search.New(m.interval, m.provider.Suggest, func(res search.Result) {
		// keep only the newest result if the UI has not caught up
		select {
		case results <- res:
		default:
			select {
			case <-results:
			default:
			}
			results <- res
		}
	}, search.WithLogger(m.logger))

	m.suggestions, m.searchErr, m.searchCursor = nil, nil, 0
	m.input.Reset()
	m.screen = screenSearch
	return tea.Batch(m.input.Focus(), m.waitSuggestions())
}

// leaveSearch unmounts the search box: the debouncer is closed, so nothing is
// published afterwards and the results channel can be closed.
func (m *Model) leaveSearch() {
	if m.debouncer == nil {
		return
	}
	m.debouncer.Close()
	close(m.results)
	m.debouncer, m.results = nil, nil
	m.input.Blur()
}

func (m *Model) waitSuggestions() tea.Cmd {
	ch, session := m.results, m.session
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return searchClosedMsg{session: session}
		}
		return suggestionsMsg{session: session, result: res}
	}
}

func (m *Model) toggleLanguage() tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		if _, err := store.Toggle(ctx); err != nil {
			return languageErrMsg{err: err}
		}
		// the subscription delivers the new value
		return nil
	}
}

func (m *Model) listenLanguage() tea.Cmd {
	ch := m.langSub
	return func() tea.Msg {
		lang, ok := <-ch
		if !ok {
			return nil
		}
		return languageMsg{lang: lang}
	}
}

// homeItems flattens the home sections in display order.
func (m *Model) homeItems() []models.Summary {
	var out []models.Summary
	for _, s := range m.home.Sections() {
		out = append(out, s.Items...)
	}
	return out
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func errorText(err error) string {
	switch {
	case errors.Is(err, upstream.ErrEmptyResult):
		return "nothing found"
	case errors.Is(err, upstream.ErrNetworkFailure):
		return "upstream unavailable"
	case errors.Is(err, upstream.ErrInvalidArgument):
		return "invalid request"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
