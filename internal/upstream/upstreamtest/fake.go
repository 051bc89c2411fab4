// Package upstreamtest serves a small in-memory copy of the catalog API for
// tests and local development.
package upstreamtest

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

//go:embed testdata/catalog.json
var catalogJSON []byte

// CharactersPerPage is the page size of /character/list.
const CharactersPerPage = 2

type fixture struct {
	Home       json.RawMessage              `json:"home"`
	Anime      map[string]json.RawMessage   `json:"anime"`
	Characters map[string][]json.RawMessage `json:"characters"`
	QTip       map[string]json.RawMessage   `json:"qtip"`
	Random     []string                     `json:"random"`
}

type animeIndex struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	JapaneseTitle string `json:"japanese_title"`
	Poster        string `json:"poster"`
	TVInfo        struct {
		ShowType    string `json:"showType"`
		Duration    string `json:"duration"`
		ReleaseDate string `json:"releaseDate"`
	} `json:"tvInfo"`
}

// Fake is an upstream API double. Failures and latency can be injected per
// path so tests can drive error and race scenarios.
type Fake struct {
	mu        sync.Mutex
	data      fixture
	index     []animeIndex
	failures  map[string]int
	delays    map[string]time.Duration
	requests  []string
	randomPos int

	srv *httptest.Server
}

func New() *Fake {
	var data fixture
	if err := json.Unmarshal(catalogJSON, &data); err != nil {
		panic(fmt.Sprintf("upstreamtest: bad fixture: %v", err))
	}

	index := make([]animeIndex, 0, len(data.Anime))
	for _, raw := range data.Anime {
		var a animeIndex
		if err := json.Unmarshal(raw, &a); err == nil && a.ID != "" {
			index = append(index, a)
		}
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Title < index[j].Title })

	return &Fake{
		data:     data,
		index:    index,
		failures: make(map[string]int),
		delays:   make(map[string]time.Duration),
	}
}

// Start serves the fake on a loopback port and returns its base URL.
func (f *Fake) Start() string {
	f.srv = httptest.NewServer(f.Handler())
	return f.srv.URL
}

func (f *Fake) Close() {
	if f.srv != nil {
		f.srv.Close()
	}
}

// Fail makes every request whose path starts with prefix answer with code.
// code 0 clears the failure.
func (f *Fake) Fail(prefix string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == 0 {
		delete(f.failures, prefix)
		return
	}
	f.failures[prefix] = code
}

// DelaySuggest holds /search/suggest responses for keyword by d.
func (f *Fake) DelaySuggest(keyword string, d time.Duration) {
	f.mu.Lock()
	f.delays[strings.ToLower(keyword)] = d
	f.mu.Unlock()
}

// Requests returns "path?query" for each request served, in arrival order.
func (f *Fake) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Count returns how many requests hit a path starting with prefix.
func (f *Fake) Count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (f *Fake) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), f.record)

	r.GET("/home", func(c *gin.Context) { ok(c, f.data.Home) })
	r.GET("/info", f.info)
	r.GET("/random/id", f.random)
	r.GET("/search/suggest", f.suggest)
	r.GET("/character/list/:id", f.characters)
	r.GET("/qtip/:id", f.qtip)
	return r
}

func (f *Fake) record(c *gin.Context) {
	entry := c.Request.URL.Path
	if q := c.Request.URL.RawQuery; q != "" {
		entry += "?" + q
	}

	f.mu.Lock()
	f.requests = append(f.requests, entry)
	code := 0
	for prefix, status := range f.failures {
		if strings.HasPrefix(c.Request.URL.Path, prefix) {
			code = status
			break
		}
	}
	f.mu.Unlock()

	if code != 0 {
		c.AbortWithStatusJSON(code, gin.H{"success": false, "message": http.StatusText(code)})
		return
	}
	c.Next()
}

func (f *Fake) info(c *gin.Context) {
	raw, found := f.data.Anime[c.Query("id")]
	if !found {
		c.JSON(http.StatusOK, gin.H{"success": true, "results": nil})
		return
	}
	ok(c, raw)
}

func (f *Fake) random(c *gin.Context) {
	f.mu.Lock()
	id := f.data.Random[f.randomPos%len(f.data.Random)]
	f.randomPos++
	f.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "results": id})
}

func (f *Fake) suggest(c *gin.Context) {
	keyword := strings.ToLower(strings.TrimSpace(c.Query("keyword")))

	f.mu.Lock()
	delay := f.delays[keyword]
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			return
		}
	}

	out := make([]gin.H, 0)
	for _, a := range f.index {
		if keyword == "" {
			break
		}
		if strings.Contains(strings.ToLower(a.Title), keyword) ||
			strings.Contains(strings.ToLower(a.JapaneseTitle), keyword) {
			out = append(out, gin.H{
				"id":             a.ID,
				"title":          a.Title,
				"japanese_title": a.JapaneseTitle,
				"poster":         a.Poster,
				"showType":       a.TVInfo.ShowType,
				"duration":       a.TVInfo.Duration,
				"releaseDate":    a.TVInfo.ReleaseDate,
			})
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": out})
}

func (f *Fake) characters(c *gin.Context) {
	all := f.data.Characters[c.Param("id")]
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	total := (len(all) + CharactersPerPage - 1) / CharactersPerPage

	start := (page - 1) * CharactersPerPage
	var data []json.RawMessage
	if start < len(all) {
		data = all[start:min(start+CharactersPerPage, len(all))]
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": gin.H{
		"currentPage": page,
		"totalPages":  total,
		"data":        data,
	}})
}

func (f *Fake) qtip(c *gin.Context) {
	raw, found := f.data.QTip[c.Param("id")]
	if !found {
		c.JSON(http.StatusOK, gin.H{"success": true, "results": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": gin.H{"anime": raw}})
}

func ok(c *gin.Context, payload json.RawMessage) {
	c.JSON(http.StatusOK, gin.H{"success": true, "results": payload})
}
