package models

import (
	"fmt"
	"strings"
	"time"
)

// Language selects which title variant the front ends render.
type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageJapanese Language = "jp"
)

// ParseLanguage accepts "en"/"jp" plus a few common spellings.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "en", "eng", "english":
		return LanguageEnglish, nil
	case "jp", "ja", "jpn", "japanese":
		return LanguageJapanese, nil
	default:
		return "", fmt.Errorf("unknown language %q", s)
	}
}

// Toggle flips between English and Japanese.
func (l Language) Toggle() Language {
	if l == LanguageJapanese {
		return LanguageEnglish
	}
	return LanguageJapanese
}

// LanguageEvent is broadcast to subscribers when the language changes.
type LanguageEvent struct {
	Type     string    `json:"type"` // "settings.language"
	Language Language  `json:"language"`
	At       time.Time `json:"at"`
}
