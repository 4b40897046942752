package diag

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Suggest returns the candidate closest to target, or "" when nothing is
// close enough to be worth mentioning.
func Suggest(target string, candidates []string) string {
	if target == "" || len(candidates) == 0 {
		return ""
	}

	// Subsequence matches first ("lbl" -> "label1").
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	// Then plain typos within a small edit distance.
	best, bestDist := "", len(target)/3+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(target, c); d <= bestDist && (best == "" || d < bestDist) {
			best, bestDist = c, d
		}
	}
	return best
}

// DidYouMean formats a suggestion suffix for a diagnostic message.
func DidYouMean(target string, candidates []string) string {
	if s := Suggest(target, candidates); s != "" && s != target {
		return " (did you mean '" + s + "'?)"
	}
	return ""
}
