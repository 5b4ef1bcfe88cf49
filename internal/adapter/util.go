package adapter

import (
	"bytes"
	"encoding/json"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// extractText converts an HTML or HTML-encoded string to plain text.
// It first unescapes HTML entities (feeds often double-encode; no-op on
// already-real HTML), strips all tags, then collapses whitespace.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := htmlTagRegex.ReplaceAllString(unescaped, " ")
	return strings.Join(strings.Fields(plain), " ")
}

// withinWindow reports whether t lies in [now-window, now+skew].
// A small future skew absorbs clock drift between us and the marketplace.
func withinWindow(t, now time.Time, window time.Duration) bool {
	const skew = 5 * time.Minute
	if t.After(now.Add(skew)) {
		return false
	}
	return now.Sub(t) <= window
}

// flexFloat decodes a JSON number, numeric string, empty string or null.
// Marketplaces are inconsistent about quoting prices.
type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		f.value = nil
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			f.value = nil
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		f.value = nil
		return nil
	}
	f.value = &v
	return nil
}

// flexString decodes a JSON string or number into its string form.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

func strPtr(s string) *string { return &s }
