package interact

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// Option is one choosable entry of a select control, as read from the page.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Match is the outcome of resolving a requested value against the options.
type Match struct {
	Option Option
	// Score is 1 for exact/substring hits, the normalized similarity for
	// fuzzy hits.
	Score float64
	Mode  schemas.MatchMode
}

// defaultFuzzyThreshold applies when a fuzzy policy carries no threshold.
const defaultFuzzyThreshold = 0.5

// ResolveOption picks the option satisfying the policy, matching against
// both labels and values. Fuzzy mode scores every option and rejects when
// even the best one falls below the threshold; the error names that best
// candidate so the caller can see how close the miss was.
func ResolveOption(options []Option, want string, policy schemas.MatchPolicy) (Match, error) {
	if len(options) == 0 {
		return Match{}, fmt.Errorf("select has no options to match %q against", want)
	}
	mode := policy.Mode
	if mode == "" {
		mode = schemas.MatchExact
	}
	norm := func(s string) string {
		if policy.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}
	target := norm(strings.TrimSpace(want))

	switch mode {
	case schemas.MatchExact:
		for _, o := range options {
			if norm(o.Label) == target || norm(o.Value) == target {
				return Match{Option: o, Score: 1, Mode: mode}, nil
			}
		}
		return Match{}, fmt.Errorf("no option exactly matches %q", want)

	case schemas.MatchSubstring:
		for _, o := range options {
			if strings.Contains(norm(o.Label), target) || strings.Contains(norm(o.Value), target) {
				return Match{Option: o, Score: 1, Mode: mode}, nil
			}
		}
		return Match{}, fmt.Errorf("no option contains %q", want)

	case schemas.MatchFuzzy:
		threshold := policy.Threshold
		if threshold <= 0 {
			threshold = defaultFuzzyThreshold
		}
		best := Match{Score: -1, Mode: mode}
		for _, o := range options {
			score := similarity(target, norm(o.Label))
			if v := similarity(target, norm(o.Value)); v > score {
				score = v
			}
			if score > best.Score {
				best = Match{Option: o, Score: score, Mode: mode}
			}
		}
		if best.Score < threshold {
			return Match{}, fmt.Errorf("no acceptable match for %q: best candidate %q scored %.2f (threshold %.2f)",
				want, best.Option.Label, best.Score, threshold)
		}
		return best, nil
	}
	return Match{}, fmt.Errorf("unknown match mode %q", mode)
}

// similarity is a normalized edit-distance ratio in [0,1]; 1 means equal.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with a rolling two-row matrix.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
