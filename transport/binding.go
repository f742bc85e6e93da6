package transport

import (
	"strings"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// Binding is the §3 "Transport binding" record.
type Binding struct {
	Name            string
	Adapter         Adapter
	EndpointPattern string
	Profile         *Profile
	AcceptedKinds   core.Kind
	Priority        int
}

// MatchEndpoint reports whether endpoint matches pattern, where '*' matches
// one-or-more of any character and '?' matches exactly one character,
// case-insensitively (§3 "Transport binding"). This is a glob variant of
// stdlib path.Match's star semantics (which permits zero-width matches),
// computed with a straightforward DP table the way the teacher favors
// explicit loops over importing a glob library for a two-operator grammar.
func MatchEndpoint(pattern, endpoint string) bool {
	p := []rune(strings.ToLower(pattern))
	s := []rune(strings.ToLower(endpoint))

	dp := make([][]bool, len(p)+1)
	for i := range dp {
		dp[i] = make([]bool, len(s)+1)
	}
	dp[0][0] = true

	for i := 1; i <= len(p); i++ {
		switch p[i-1] {
		case '*':
			for j := 1; j <= len(s); j++ {
				dp[i][j] = dp[i-1][j-1] || dp[i][j-1]
			}
		case '?':
			for j := 1; j <= len(s); j++ {
				dp[i][j] = dp[i-1][j-1]
			}
		default:
			for j := 1; j <= len(s); j++ {
				dp[i][j] = dp[i-1][j-1] && p[i-1] == s[j-1]
			}
		}
	}
	return dp[len(p)][len(s)]
}

// BindingMatcher walks a binding list in descending priority order and
// returns the first binding whose endpoint pattern matches the destination
// and whose accepted kinds intersect the message's kind (§4.8).
type BindingMatcher struct{}

// Match returns the first matching binding, or nil.
func (BindingMatcher) Match(bindings []Binding, destination string, kind core.Kind) *Binding {
	ordered := make([]Binding, len(bindings))
	copy(ordered, bindings)
	// stable descending-priority sort; bindings lists are typically small,
	// so an insertion sort keeps this allocation-light like the teacher's
	// small-N loops (core/matcher.go's matchFrom, now generalized here).
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Priority > ordered[j-1].Priority; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	for i := range ordered {
		b := &ordered[i]
		if b.AcceptedKinds&kind == 0 {
			continue
		}
		if MatchEndpoint(b.EndpointPattern, destination) {
			result := *b
			return &result
		}
	}
	return nil
}
