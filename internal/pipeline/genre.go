package pipeline

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// DefaultGenreSimilarityThreshold matches §4.8.2's default 0.85 token-set
// similarity cutoff for snapping a free-text genre onto the vocabulary.
const DefaultGenreSimilarityThreshold = 0.85

// GenreNormalizer snaps free-text genre strings onto a controlled
// vocabulary using strutil's Jaccard metric over sorted token sets, the
// token-set-ratio idiom applied to the library actually available here.
type GenreNormalizer struct {
	vocabulary []string
	threshold  float64
	metric     strutil.StringMetric
}

func NewGenreNormalizer(vocabulary []string, threshold float64) *GenreNormalizer {
	if threshold <= 0 {
		threshold = DefaultGenreSimilarityThreshold
	}
	return &GenreNormalizer{
		vocabulary: vocabulary,
		threshold:  threshold,
		metric:     metrics.NewJaccard(),
	}
}

// Normalize returns the nearest vocabulary member and whether the input
// was changed to reach it. When nothing clears the threshold, raw is
// returned unchanged.
func (n *GenreNormalizer) Normalize(raw string) (normalized string, changed bool) {
	if raw == "" {
		return raw, false
	}
	target := tokenSetKey(raw)

	best := ""
	bestScore := 0.0
	for _, candidate := range n.vocabulary {
		score := strutil.Similarity(target, tokenSetKey(candidate), n.metric)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if best == "" || bestScore < n.threshold {
		return raw, false
	}
	if strings.EqualFold(best, raw) {
		return raw, false
	}
	return best, true
}

// tokenSetKey renders s as its sorted, deduplicated lowercase token set
// joined by spaces, the canonical input shape for a token-set comparison.
func tokenSetKey(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	seen := make(map[string]bool, len(fields))
	unique := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			unique = append(unique, f)
		}
	}
	sort.Strings(unique)
	return strings.Join(unique, " ")
}
