// Package intent maps a question to an optional category filter used to
// narrow retrieval scope.
package intent

import "strings"

// Rule pairs a keyword with the category it selects. Rules are evaluated in
// slice order; the first keyword found in the query wins. Callers supplying
// custom rules must order them so that longer phrases come before any
// keyword that is their substring.
type Rule struct {
	Keyword  string
	Category string
}

// DefaultRules returns the built-in keyword-to-category mapping.
func DefaultRules() []Rule {
	return []Rule{
		{"where is", "map"},
		{"location", "map"},
		{"map", "map"},
		{"block", "map"},
		{"parking", "map"},
		{"scholarship", "regulation"},
		{"attendance", "regulation"},
		{"refund", "regulation"},
		{"policy", "regulation"},
		{"exam", "regulation"},
		{"rule", "regulation"},
		{"fee", "regulation"},
		{"hostel", "hostel"},
		{"laundry", "hostel"},
		{"warden", "hostel"},
		{"mess", "hostel"},
		{"room", "hostel"},
	}
}

// Classifier decides whether a query should be restricted to a document
// category. It is pure and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier with the given ordered rules.
// Nil rules means DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the category for the first rule whose keyword appears in
// the lower-cased query. First match wins; no disambiguation is attempted.
// Returns ("", false) when no keyword matches, meaning unrestricted search.
func (c *Classifier) Classify(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, r := range c.rules {
		if strings.Contains(q, r.Keyword) {
			return r.Category, true
		}
	}
	return "", false
}
