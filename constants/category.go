package constants

import (
	"strings"
)

type Category string

const (
	Groceries      Category = "groceries"
	Dining         Category = "dining"
	Transportation Category = "transportation"
	Utilities      Category = "utilities"
	Entertainment  Category = "entertainment"
	Shopping       Category = "shopping"
	Healthcare     Category = "healthcare"
	Other          Category = "other"
)

var allCategories = []Category{
	Groceries,
	Dining,
	Transportation,
	Utilities,
	Entertainment,
	Shopping,
	Healthcare,
	Other,
}

// synonyms folds labels models commonly return into the canonical set.
var synonyms = map[string]Category{
	"grocery":       Groceries,
	"supermarket":   Groceries,
	"food":          Groceries,
	"restaurant":    Dining,
	"restaurants":   Dining,
	"cafe":          Dining,
	"coffee":        Dining,
	"meals":         Dining,
	"fast food":     Dining,
	"transport":     Transportation,
	"travel":        Transportation,
	"taxi":          Transportation,
	"uber":          Transportation,
	"lyft":          Transportation,
	"fuel":          Transportation,
	"gas":           Transportation,
	"parking":       Transportation,
	"utility":       Utilities,
	"electricity":   Utilities,
	"internet":      Utilities,
	"phone":         Utilities,
	"water":         Utilities,
	"movies":        Entertainment,
	"streaming":     Entertainment,
	"retail":        Shopping,
	"clothing":      Shopping,
	"electronics":   Shopping,
	"pharmacy":      Healthcare,
	"medical":       Healthcare,
	"health":        Healthcare,
	"miscellaneous": Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-form label to a Category. The bool reports whether
// the label was recognised; unknown labels map to Other.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}
	normalized = strings.Join(strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-' || r == '/'
	}), " ")

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}
	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}
	return Other, false
}
