package models

type Character struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Poster string `json:"poster,omitempty"`
	Role   string `json:"role,omitempty"` // "Main", "Supporting"
}

type VoiceActor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Poster   string `json:"poster,omitempty"`
	Language string `json:"language,omitempty"`
}

// CharacterEntry pairs a character with the people voicing it.
type CharacterEntry struct {
	Character   Character    `json:"character"`
	VoiceActors []VoiceActor `json:"voice_actors"`
}

// CharacterPage is one page of an anime's cast list.
type CharacterPage struct {
	CurrentPage int              `json:"current_page"`
	TotalPages  int              `json:"total_pages"`
	Items       []CharacterEntry `json:"items"`
}

// HasNext reports whether another page follows this one.
func (p *CharacterPage) HasNext() bool {
	return p != nil && p.CurrentPage < p.TotalPages
}
