package knowledge

import "strings"

// Ref names one snippet in the base.
type Ref struct {
	Category string
	Key      string
}

// trigger fires when any of its tokens is a substring of the lower-cased
// query, contributing its refs in order.
type trigger struct {
	tokens []string
	refs   []Ref
}

// triggers is checked in order; output order follows this table.
var triggers = []trigger{
	{tokens: []string{"term"}, refs: []Ref{{"policy_types", "term_life"}}},
	{tokens: []string{"whole"}, refs: []Ref{{"policy_types", "whole_life"}}},
	{tokens: []string{"claim", "file"}, refs: []Ref{{"claims", "how_to_file"}, {"claims", "required_docs"}}},
	{tokens: []string{"eligib"}, refs: []Ref{{"eligibility", "general"}}},
	{tokens: []string{"benefit"}, refs: []Ref{{"benefits", "general"}}},
}

// Lookup maps free-text queries to concatenated snippets. It is safe for
// concurrent use.
type Lookup struct {
	base Base
}

// NewLookup returns a Lookup over the given base.
func NewLookup(base Base) *Lookup {
	return &Lookup{base: base}
}

// Base returns the knowledge base this lookup reads from.
func (l *Lookup) Base() Base {
	return l.base
}

// Match returns the snippet refs triggered by query, in trigger order.
// Refs may repeat if two triggers name the same snippet.
func (l *Lookup) Match(query string) []Ref {
	q := strings.ToLower(query)
	if q == "" {
		return nil
	}
	var refs []Ref
	for _, t := range triggers {
		for _, tok := range t.tokens {
			if strings.Contains(q, tok) {
				refs = append(refs, t.refs...)
				break
			}
		}
	}
	return refs
}

// Query returns the space-joined text of every non-empty snippet triggered by
// query. It never fails; no match yields "".
func (l *Lookup) Query(query string) string {
	var parts []string
	for _, r := range l.Match(query) {
		if s := l.base.Get(r.Category, r.Key); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
