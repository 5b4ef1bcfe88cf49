package notifier

import (
	"html"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/amishk599/gigradar/internal/model"
)

// MaxDescriptionRunes bounds the description preview in a rendered message.
const MaxDescriptionRunes = 200

const noBudget = "Бюджет не указан"

// Render builds the HTML message body for a posting. The posting itself is
// not modified; only the rendered copy of the description is truncated.
func Render(p model.Posting) string {
	var b strings.Builder
	badge := Badge(p.Source)
	if badge != "" {
		b.WriteString(badge)
		b.WriteString(" ")
	}
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(p.Title))
	b.WriteString("</b> (")
	b.WriteString(p.Source.Label())
	b.WriteString(")\n\n📝 ")
	b.WriteString(html.EscapeString(Truncate(p.Description, MaxDescriptionRunes)))
	b.WriteString("\n\n")
	b.WriteString(FormatBudget(p.Budget))
	return b.String()
}

// Badge returns the marker shown before the title for a source.
func Badge(s model.Source) string {
	switch s {
	case model.SourceFL:
		return "🟢"
	case model.SourceKwork:
		return "🔘"
	case model.SourceFreelancer:
		return "⚪"
	default:
		return ""
	}
}

// Truncate cuts s to at most n runes and appends "..." when it did.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " \t\n") + "..."
}

// FormatBudget renders the budget line. Zero amounts count as absent.
func FormatBudget(b model.Budget) string {
	lo, hasLo := amount(b.Minimum)
	hi, hasHi := amount(b.Maximum)
	currency := ""
	if b.Currency != nil {
		currency = *b.Currency
	}

	var value string
	switch {
	case hasLo && hasHi && lo == hi:
		value = formatAmount(lo)
	case hasLo && hasHi:
		value = formatAmount(lo) + " - " + formatAmount(hi)
	case hasLo:
		value = formatAmount(lo)
	case hasHi:
		value = formatAmount(hi)
	default:
		return noBudget
	}
	return strings.TrimSpace("Бюджет: " + value + " " + currency)
}

func amount(v *float64) (float64, bool) {
	if v == nil || *v == 0 {
		return 0, false
	}
	return *v, true
}

// formatAmount prints integral values without decimals and everything else
// rounded to two places.
func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
