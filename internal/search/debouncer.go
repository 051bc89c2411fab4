package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"anihub/pkg/models"
)

// DefaultInterval is the quiet period a query must survive before a lookup
// is issued.
const DefaultInterval = 500 * time.Millisecond

type State int

const (
	StateIdle State = iota
	StatePending
	StateInFlight
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in-flight"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// LookupFunc resolves a non-empty query to suggestions.
type LookupFunc func(ctx context.Context, query string) ([]models.Suggestion, error)

// Result is what a Debouncer publishes. An empty Suggestions slice means the
// list should be cleared; Err is set when the lookup failed.
type Result struct {
	Seq         uint64
	Query       string
	Suggestions []models.Suggestion
	Err         error
}

type Option func(*Debouncer)

func WithLogger(l *zap.Logger) Option {
	return func(d *Debouncer) {
		if l != nil {
			d.logger = l
		}
	}
}

// Debouncer turns a fast stream of keystrokes into at most one lookup per
// quiet interval and publishes only the response to the most recently issued
// lookup. Responses to superseded lookups are dropped even if they arrive
// later than newer ones.
type Debouncer struct {
	interval time.Duration
	lookup   LookupFunc
	publish  func(Result)
	logger   *zap.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64 // bumped by Input; a timer from an older gen is a no-op
	seq      Sequence
	inflight context.CancelFunc
	state    State
	closed   bool

	// held across the latest-check and publish so a stale result can never
	// land after a fresher one, and so Close can wait out a running publish
	pubMu sync.Mutex
}

// New returns a Debouncer. publish is called from timer goroutines, one call
// at a time; it must not call Close.
func New(interval time.Duration, lookup LookupFunc, publish func(Result), opts ...Option) *Debouncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, stop := context.WithCancel(context.Background())
	d := &Debouncer{
		interval: interval,
		lookup:   lookup,
		publish:  publish,
		logger:   zap.NewNop(),
		ctx:      ctx,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Input records the latest value of the query field. Any pending lookup is
// cancelled and a new one scheduled after the quiet interval.
func (d *Debouncer) Input(query string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.state = StatePending
	d.timer = time.AfterFunc(d.interval, func() { d.fire(gen, query) })
}

// State reports where the latest query is in its lifecycle.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close cancels the pending timer and any in-flight lookup. No Result is
// published after Close returns.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq.Invalidate()
	d.stop()
	d.mu.Unlock()

	// wait out a publish that passed its checks before closed was set
	d.pubMu.Lock()
	defer d.pubMu.Unlock()
}

func (d *Debouncer) fire(gen uint64, query string) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	seq := d.seq.Next()
	if d.inflight != nil {
		d.inflight()
		d.inflight = nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		d.state = StateSettled
		d.mu.Unlock()
		d.deliver(Result{Seq: seq})
		return
	}

	ctx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	d.inflight = cancel
	d.state = StateInFlight
	d.mu.Unlock()

	suggestions, err := d.lookup(ctx, query)
	res := Result{Seq: seq, Query: query, Suggestions: suggestions, Err: err}
	if err != nil {
		res.Suggestions = nil
		if ctx.Err() == nil {
			d.logger.Warn("suggest lookup failed", zap.String("query", query), zap.Error(err))
		}
	}
	if res.Suggestions == nil {
		res.Suggestions = []models.Suggestion{}
	}
	d.deliver(res)
}

func (d *Debouncer) deliver(res Result) {
	d.pubMu.Lock()
	defer d.pubMu.Unlock()

	d.mu.Lock()
	if d.closed || !d.seq.IsLatest(res.Seq) {
		d.mu.Unlock()
		d.logger.Debug("dropping superseded result", zap.Uint64("seq", res.Seq), zap.String("query", res.Query))
		return
	}
	if d.state == StateInFlight {
		d.state = StateSettled
	}
	d.inflight = nil
	d.mu.Unlock()

	if res.Suggestions == nil {
		res.Suggestions = []models.Suggestion{}
	}
	d.publish(res)
}
