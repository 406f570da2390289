package detect

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/sceneguard/internal/model"
)

// Participants looks for roster members who are not authorized for the
// current scene.
type Participants struct {
	unauthorized []string
}

// Sighting is the first occurrence of an identifier in the scanned text.
type Sighting struct {
	ID       string
	Position int
}

// NewParticipants derives the unauthorized set from the project roster and
// the scene's authorized list. Identifiers shorter than minLen runes are
// skipped because they match too much ordinary prose.
func NewParticipants(roster []string, c model.SceneConstraints, minLen int) *Participants {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range roster {
		id = strings.TrimSpace(id)
		if utf8.RuneCountInString(id) < minLen || seen[id] || c.IsAuthorized(id) {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return &Participants{unauthorized: ids}
}

// Unauthorized returns the identifiers being watched.
func (p *Participants) Unauthorized() []string {
	return p.unauthorized
}

// Scan returns the first sighting of each watched identifier in text,
// earliest first.
func (p *Participants) Scan(text string) []Sighting {
	var out []Sighting
	for _, id := range p.unauthorized {
		if idx := strings.Index(text, id); idx >= 0 {
			out = append(out, Sighting{ID: id, Position: RuneOffset(text, idx)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}
