package adapter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/amishk599/gigradar/internal/model"
)

const defaultCurrency = "₽"

// budgetRegex finds a number after a case-insensitive "бюджет"/"budget" marker.
// The number may group thousands with spaces (incl. NBSP) and use a decimal
// comma. An optional currency symbol may follow.
var budgetRegex = regexp.MustCompile(
	`(?i)(?:бюджет|budget)[ \t\x{00A0}]*:?[ \t\x{00A0}]*` +
		`(\d{1,3}(?:[ \x{00A0}\x{202F}]\d{3})+|\d+)([.,]\d+)?` +
		`[ \t\x{00A0}]*(₽|руб\.?|р\.|\$|€|£|₴|₸)?`,
)

// ParseBudget extracts a fixed budget from free text such as "Бюджет: 1 500 ₽".
// When a value is found, minimum and maximum are equal and currency defaults
// to ₽ if no symbol follows. When nothing is found every field is nil.
func ParseBudget(text string) model.Budget {
	m := budgetRegex.FindStringSubmatch(text)
	if m == nil {
		return model.Budget{}
	}

	num := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, m[1])
	if m[2] != "" {
		num += "." + m[2][1:]
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return model.Budget{}
	}

	currency := defaultCurrency
	if sym := m[3]; sym != "" && !strings.HasPrefix(strings.ToLower(sym), "р") {
		currency = sym
	}

	lo, hi := value, value
	return model.Budget{Minimum: &lo, Maximum: &hi, Currency: &currency}
}
