package domain

import "strings"

// MatchKind records how a reported record was tied to a feature
type MatchKind string

const (
	MatchID        MatchKind = "id"
	MatchTitle     MatchKind = "title"
	MatchSubstring MatchKind = "substring"
	MatchNone      MatchKind = "none"
)

// Resolution is the outcome of resolving a reported (id, title) pair
type Resolution struct {
	Node       FeatureNode
	Kind       MatchKind
	Candidates []string // ids of every node that matched at the winning step
}

// Resolved reports whether a node was found
func (r Resolution) Resolved() bool {
	return r.Kind != MatchNone
}

// Ambiguous reports whether more than one node matched
func (r Resolution) Ambiguous() bool {
	return len(r.Candidates) > 1
}

// Resolve ties a reported record to a node among candidates, which must be in
// walk order. A known id wins. Otherwise an exact case-insensitive title match
// is tried, then a substring match in either direction. When several nodes
// match at the same step the first one in walk order is chosen and the result
// is flagged as ambiguous.
func Resolve(candidates []FeatureNode, objectID, title string) Resolution {
	if id := strings.TrimSpace(objectID); id != "" {
		for _, n := range candidates {
			if n.ID == id {
				return Resolution{Node: n, Kind: MatchID, Candidates: []string{n.ID}}
			}
		}
	}

	want := normalizeTitle(title)
	if want == "" {
		return Resolution{Kind: MatchNone}
	}

	if r, ok := firstMatch(candidates, MatchTitle, func(t string) bool { return t == want }); ok {
		return r
	}
	if r, ok := firstMatch(candidates, MatchSubstring, func(t string) bool {
		return t != "" && (strings.Contains(t, want) || strings.Contains(want, t))
	}); ok {
		return r
	}
	return Resolution{Kind: MatchNone}
}

func firstMatch(candidates []FeatureNode, kind MatchKind, match func(string) bool) (Resolution, bool) {
	var r Resolution
	for _, n := range candidates {
		if !match(normalizeTitle(n.Title)) {
			continue
		}
		if len(r.Candidates) == 0 {
			r.Node = n
			r.Kind = kind
		}
		r.Candidates = append(r.Candidates, n.ID)
	}
	return r, len(r.Candidates) > 0
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
