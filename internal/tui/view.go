package tui

import (
	"fmt"
	"strings"

	"anihub/internal/search"
	"anihub/pkg/models"
)

const maxCharacters = 6

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("anihub"))
	b.WriteString(" ")
	b.WriteString(m.styles.Badge.Render("[" + string(m.lang) + "]"))
	b.WriteString("\n")

	switch m.screen {
	case screenHome:
		m.viewHome(&b)
	case screenSearch:
		m.viewSearch(&b)
	case screenDetail:
		m.viewDetail(&b)
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.help()))
	return b.String()
}

func (m *Model) viewHome(b *strings.Builder) {
	switch {
	case m.homeLoading:
		b.WriteString(m.styles.Muted.Render("Loading..."))
		return
	case m.homeErr != nil:
		b.WriteString(m.styles.Error.Render("Could not load home: " + errorText(m.homeErr)))
		return
	}

	i := 0
	for _, s := range m.home.Sections() {
		if len(s.Items) == 0 {
			continue
		}
		b.WriteString(m.styles.Section.Render(s.Name))
		b.WriteString("\n")
		for _, it := range s.Items {
			b.WriteString(m.line(i == m.cursor, summaryLine(it, m.lang)))
			b.WriteString("\n")
			i++
		}
	}
}

func (m *Model) viewSearch(b *strings.Builder) {
	b.WriteString(m.input.View())
	b.WriteString("\n")

	if m.searchErr != nil {
		b.WriteString(m.styles.Error.Render("search unavailable"))
		b.WriteString("\n")
		return
	}
	if len(m.suggestions) == 0 {
		if strings.TrimSpace(m.input.Value()) != "" && m.debouncer != nil && m.debouncer.State() == search.StateSettled {
			b.WriteString(m.styles.Muted.Render("No matches"))
			b.WriteString("\n")
		}
		return
	}
	for i, s := range m.suggestions {
		line := s.DisplayTitle(m.lang)
		if meta := joinNonEmpty(" · ", s.ShowType, s.ReleaseDate, s.Duration); meta != "" {
			line += "  " + m.styles.Muted.Render(meta)
		}
		b.WriteString(m.line(i == m.searchCursor, line))
		b.WriteString("\n")
	}
}

func (m *Model) viewDetail(b *strings.Builder) {
	switch {
	case m.detailLoading:
		b.WriteString(m.styles.Muted.Render("Loading " + m.detailID + "..."))
		return
	case m.detailErr != nil:
		b.WriteString(m.styles.Error.Render("Could not load " + m.detailID + ": " + errorText(m.detailErr)))
		return
	case m.detail == nil:
		return
	}

	d := m.detail
	b.WriteString(m.styles.Section.Render(d.DisplayTitle(m.lang)))
	b.WriteString("\n")
	if alt := altTitle(d.Title, d.JapaneseTitle, m.lang); alt != "" {
		b.WriteString(m.styles.Muted.Render(alt))
		b.WriteString("\n")
	}
	if len(d.Genres) > 0 {
		b.WriteString("Genres: " + strings.Join(d.Genres, ", ") + "\n")
	}
	if len(d.Studios) > 0 {
		b.WriteString("Studios: " + strings.Join(d.Studios, ", ") + "\n")
	}
	if d.EpisodeCount > 0 {
		b.WriteString(fmt.Sprintf("Episodes: %d\n", d.EpisodeCount))
	}
	if d.Synopsis != "" {
		body := m.styles.Body
		if m.width > 8 {
			body = body.Width(m.width - 4)
		}
		b.WriteString("\n" + body.Render(d.Synopsis) + "\n")
	}

	if len(d.Characters) > 0 {
		b.WriteString(m.styles.Section.Render("Characters"))
		b.WriteString("\n")
		for i, c := range d.Characters {
			if i == maxCharacters {
				b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  and %d more", len(d.Characters)-maxCharacters)))
				b.WriteString("\n")
				break
			}
			b.WriteString(m.styles.Item.Render(characterLine(c)))
			b.WriteString("\n")
		}
	}
}

func (m *Model) line(selected bool, text string) string {
	if selected {
		return m.styles.Selected.Render("> " + text)
	}
	return m.styles.Item.Render(text)
}

func (m *Model) help() string {
	switch m.screen {
	case screenSearch:
		return "type to search · ↑/↓ select · enter open · ctrl+l language · esc back"
	case screenDetail:
		return "esc back · ctrl+r reload · l language · q quit"
	default:
		return "↑/↓ move · enter open · / search · r random · l language · q quit"
	}
}

func summaryLine(s models.Summary, lang models.Language) string {
	line := s.DisplayTitle(lang)
	var eps []string
	if s.Episodes.Sub > 0 {
		eps = append(eps, fmt.Sprintf("SUB %d", s.Episodes.Sub))
	}
	if s.Episodes.Dub > 0 {
		eps = append(eps, fmt.Sprintf("DUB %d", s.Episodes.Dub))
	}
	if meta := joinNonEmpty(" · ", s.ShowType, strings.Join(eps, " ")); meta != "" {
		line += "  (" + meta + ")"
	}
	return line
}

func characterLine(e models.CharacterEntry) string {
	line := e.Character.Name
	if e.Character.Role != "" {
		line += " (" + e.Character.Role + ")"
	}
	var vas []string
	for _, va := range e.VoiceActors {
		if va.Language != "" {
			vas = append(vas, va.Name+" ["+va.Language+"]")
		} else {
			vas = append(vas, va.Name)
		}
	}
	if len(vas) > 0 {
		line += " - " + strings.Join(vas, ", ")
	}
	return line
}

// altTitle is the title variant not currently displayed.
func altTitle(en, jp string, lang models.Language) string {
	if lang == models.LanguageJapanese && jp != "" {
		if en != jp {
			return en
		}
		return ""
	}
	if jp != en {
		return jp
	}
	return ""
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
