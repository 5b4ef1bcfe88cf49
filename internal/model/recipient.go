package model

import "strings"

// Recipient is a subscriber owned by the external recipient store.
type Recipient struct {
	ChatID   string
	Keywords []string        // lower-cased; empty matches every posting
	Sources  map[Source]bool // per-source opt-in
}

// Wants reports whether the recipient opted into source.
func (r Recipient) Wants(source Source) bool {
	return r.Sources[source]
}

// ParseKeywords splits the comma-delimited boundary format into trimmed,
// lower-cased keywords. Blank entries are dropped.
func ParseKeywords(raw string) []string {
	var keywords []string
	for _, kw := range strings.Split(raw, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// JoinKeywords is the inverse of ParseKeywords.
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, ",")
}
