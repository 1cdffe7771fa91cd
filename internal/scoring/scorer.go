// Package scoring classifies entry text against a keyword policy.
package scoring

import (
	"strings"

	"OpportunityMonitor/internal/domain"
	"OpportunityMonitor/internal/fingerprint"
)

const (
	baseScore   = 60
	phraseBonus = 5
	maxScore    = 100
)

// bonusTerms are procurement signals rewarded regardless of policy.
var bonusTerms = []string{
	"rfp",
	"tender",
	"eoi",
	"expression of interest",
	"procurement",
	"bid",
	"request for proposal",
}

// Scorer holds a policy with phrases already normalized and de-duplicated.
type Scorer struct {
	exclude []string
	must    []string
	nice    []string
}

// New prepares a scorer for policy.
func New(policy domain.KeywordPolicy) *Scorer {
	return &Scorer{
		exclude: normalizeAll(policy.ExcludeAny),
		must:    normalizeAll(policy.MustHaveAny),
		nice:    normalizeAll(policy.NiceToHaveAny),
	}
}

// Score is a one-shot helper equivalent to New(policy).Score(text).
func Score(text string, policy domain.KeywordPolicy) (bool, int) {
	return New(policy).Score(text)
}

// Score reports whether text is relevant and its score in [60, 100].
// Matching is plain substring containment on normalized text, so a phrase
// embedded in a longer word still counts.
func (s *Scorer) Score(text string) (bool, int) {
	t := fingerprint.Normalize(text)

	if containsAny(t, s.exclude) {
		return false, 0
	}
	if len(s.must) > 0 && !containsAny(t, s.must) {
		return false, 0
	}

	score := baseScore
	score += phraseBonus * countContained(t, s.nice)
	score += phraseBonus * countContained(t, bonusTerms)

	return true, min(score, maxScore)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func countContained(text string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if strings.Contains(text, p) {
			n++
		}
	}
	return n
}

func normalizeAll(phrases []string) []string {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		n := fingerprint.Normalize(p)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
