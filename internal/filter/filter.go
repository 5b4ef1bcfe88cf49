package filter

import (
	"strings"

	"github.com/amishk599/gigradar/internal/model"
)

// KeywordMatcher decides whether a recipient should receive a posting.
// A recipient with no keywords receives everything; otherwise any keyword
// must occur as a case-insensitive substring of the title and description.
type KeywordMatcher struct{}

// NewKeywordMatcher returns the substring keyword matcher.
func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{}
}

// Eligible reports whether r's keywords match p.
func (m *KeywordMatcher) Eligible(r model.Recipient, p model.Posting) bool {
	if len(r.Keywords) == 0 {
		return true
	}
	return containsAny(matchText(p), r.Keywords)
}

// Select returns the recipients eligible for p, in their original order.
func (m *KeywordMatcher) Select(recipients []model.Recipient, p model.Posting) []model.Recipient {
	text := matchText(p)
	var out []model.Recipient
	for _, r := range recipients {
		if len(r.Keywords) == 0 || containsAny(text, r.Keywords) {
			out = append(out, r)
		}
	}
	return out
}

func matchText(p model.Posting) string {
	return strings.ToLower(p.Title + " " + p.Description)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
