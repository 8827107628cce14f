package search

import "strings"

var labelAliases = map[string]string{
	"r&b":           "rnb",
	"r and b":       "rnb",
	"drum and bass": "dnb",
	"drum & bass":   "dnb",
	"lo-fi hip hop": "lofi hip hop",
	"lo-fi":         "lofi",
}

// NormalizeLabel folds a tag label so spelling variants of the same genre compare equal.
func NormalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if alias, ok := labelAliases[l]; ok {
		return alias
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, l)
}

