package filtering

import "strings"

// Terms is a set of lower-cased excluded terms. An empty set excludes nothing.
type Terms []string

// ParseTerms splits a comma separated list, trimming and lower-casing each term.
func ParseTerms(s string) Terms {
	var terms Terms
	for _, part := range strings.Split(s, ",") {
		term := strings.ToLower(strings.TrimSpace(part))
		if term == "" {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// Match reports the first term found in text, ignoring case.
func (t Terms) Match(text string) (string, bool) {
	if len(t) == 0 {
		return "", false
	}
	text = strings.ToLower(text)
	for _, term := range t {
		if strings.Contains(text, term) {
			return term, true
		}
	}
	return "", false
}

func (t Terms) String() string {
	return strings.Join(t, ",")
}
