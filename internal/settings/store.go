package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"anihub/pkg/models"
)

// Persister saves the language somewhere durable. *Repo is the production one.
type Persister interface {
	SaveLanguage(ctx context.Context, lang models.Language) error
}

// Store holds the process-wide display language and tells subscribers when
// it changes. Subscribers only ever see the latest value: a slow reader that
// misses intermediate changes gets the newest one on its next receive.
type Store struct {
	persist Persister
	logger  *zap.Logger

	mu      sync.RWMutex
	lang    models.Language
	at      time.Time
	subs    map[int]chan models.Language
	nextSub int
}

// NewStore returns a Store starting at initial. persist may be nil for an
// in-memory store.
func NewStore(initial models.Language, persist Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := models.ParseLanguage(string(initial)); err != nil {
		initial = models.LanguageEnglish
	}
	return &Store{
		persist: persist,
		logger:  logger.Named("settings"),
		lang:    initial,
		at:      time.Now().UTC(),
		subs:    make(map[int]chan models.Language),
	}
}

// Open builds a Store backed by repo, preferring the persisted language over
// fallback.
func Open(ctx context.Context, repo *Repo, fallback models.Language, logger *zap.Logger) (*Store, error) {
	lang, ok, err := repo.Language(ctx)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	if !ok {
		lang = fallback
	}
	return NewStore(lang, repo, logger), nil
}

func (s *Store) Get() models.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

// Event describes the current value the way it is broadcast.
func (s *Store) Event() models.LanguageEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.LanguageEvent{Type: "settings.language", Language: s.lang, At: s.at}
}

// Set validates, persists and publishes lang. Setting the current value again
// is a no-op and notifies nobody.
func (s *Store) Set(ctx context.Context, lang models.Language) error {
	lang, err := models.ParseLanguage(string(lang))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(ctx, lang)
}

// Toggle flips the language and returns the new value. The flip happens under
// the store lock so concurrent toggles each take effect.
func (s *Store) Toggle(ctx context.Context) (models.Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setLocked(ctx, s.lang.Toggle()); err != nil {
		return s.lang, err
	}
	return s.lang, nil
}

func (s *Store) setLocked(ctx context.Context, lang models.Language) error {
	if lang == s.lang {
		return nil
	}
	if s.persist != nil {
		if err := s.persist.SaveLanguage(ctx, lang); err != nil {
			return fmt.Errorf("set language: %w", err)
		}
	}
	s.lang = lang
	s.at = time.Now().UTC()
	s.logger.Info("language changed", zap.String("language", string(lang)))

	for _, ch := range s.subs {
		notify(ch, lang)
	}
	return nil
}

// Subscribe returns a channel that receives each new language and a func
// that unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan models.Language, func()) {
	ch := make(chan models.Language, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers is the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// notify replaces any unread value with v. Callers hold s.mu.
func notify(ch chan models.Language, v models.Language) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
