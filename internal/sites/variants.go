package sites

import "strings"

// locationVariants generates the name spellings tried against a site's
// location suggestions: exact, no-space, lower, upper and title case.
// Order matters: the exact form is always tried first.
func locationVariants(name string) []string {
	trimmed := strings.TrimSpace(name)
	candidates := []string{
		trimmed,
		strings.ReplaceAll(trimmed, " ", ""),
		strings.ToLower(trimmed),
		strings.ToUpper(trimmed),
		titleCase(trimmed),
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, v := range candidates {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// matchSuggestion returns the index of the first suggestion containing any
// of the variants, or -1 when nothing matches.
func matchSuggestion(suggestions, variants []string) int {
	for _, variant := range variants {
		needle := strings.ToLower(variant)
		for i, suggestion := range suggestions {
			if strings.Contains(strings.ToLower(suggestion), needle) {
				return i
			}
		}
	}
	return -1
}
