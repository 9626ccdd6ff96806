// Package scorer turns Fragments into MappedFragment-ready scores, derives
// an overall verdict from an adaptive threshold table, and computes the
// batch-wide adaptive threshold used when a caller doesn't supply one.
//
// The batch threshold (mean + 1.5*stddev of pair similarities) uses
// gonum.org/v1/gonum/stat the same way pkg/analyzer/score/stats.go reaches
// for it instead of hand-rolling mean/variance.
package scorer

import (
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/havenly/codematch/pkg/fragment"
)

// Class is a fragment's classification tier.
type Class string

const (
	Exact      Class = "EXACT"
	Similar    Class = "SIMILAR"
	Structural Class = "STRUCTURAL"
)

// ConfidenceLabel is the four-level overall-verdict label.
type ConfidenceLabel string

const (
	Low      ConfidenceLabel = "LOW"
	Medium   ConfidenceLabel = "MEDIUM"
	High     ConfidenceLabel = "HIGH"
	VeryHigh ConfidenceLabel = "VERY_HIGH"
)

// FragmentScore is the per-fragment output of the scorer.
type FragmentScore struct {
	Confidence      float64
	Class           Class
	LocalSimilarity float64
	Pattern         string
	Significant     bool
}

// ScoreFragment computes confidence, classification, local similarity,
// the display pattern and the significance flag for a single Fragment.
func ScoreFragment(f fragment.Fragment, k int) FragmentScore {
	t := float64(len(f.SharedTokens))
	p := float64(f.SharedFingerprints)
	r := float64(max(1, rangeLen(f.LeftKGramRange)))

	confidence := min(1.0,
		0.4*min(1.0, t/50)+
			0.3*min(1.0, 0.1*p)+
			0.3*min(1.0, p/r))

	localSimilarity := min(1.0, p/float64(max(1, int(t)/k)))

	return FragmentScore{
		Confidence:      confidence,
		Class:           classify(confidence),
		LocalSimilarity: localSimilarity,
		Pattern:         pattern(f.SharedTokens),
		Significant:     confidence >= 0.3 && int(t) >= k,
	}
}

func classify(confidence float64) Class {
	switch {
	case confidence >= 0.8:
		return Exact
	case confidence >= 0.6:
		return Similar
	default:
		return Structural
	}
}

func pattern(tokens []string) string {
	if len(tokens) <= 20 {
		return strings.Join(tokens, " ")
	}
	head := strings.Join(tokens[:10], " ")
	tail := strings.Join(tokens[len(tokens)-10:], " ")
	return head + " ... " + tail
}

func rangeLen(r fragment.Range) int {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

// AdaptiveThreshold picks the decision threshold for a pair from the table
// keyed on (similarity, fragmentCount), the strictest matching tier wins.
func AdaptiveThreshold(similarity float64, fragmentCount int) float64 {
	switch {
	case similarity > 0.8 && fragmentCount > 5:
		return 0.7
	case similarity > 0.6 && fragmentCount > 3:
		return 0.5
	case similarity > 0.4 && fragmentCount > 1:
		return 0.35
	default:
		return 0.3
	}
}

// Label derives the four-level confidenceLabel from an additive score.
// The similarity bucket contributes up to 4 points (>=0.8, >=0.6, >=0.4,
// >=0.2) and each of the five remaining criteria contributes one point,
// for a 0-9 range; thresholds 8/6/4 select VERY_HIGH/HIGH/MEDIUM/LOW.
func Label(overallSimilarity, syntacticSimilarity float64, longestFragment int, coverage1, coverage2 float64, significantFragments, totalSharedLines int) ConfidenceLabel {
	score := similarityBucket(overallSimilarity)
	if syntacticSimilarity >= 0.7 {
		score++
	}
	if longestFragment > 10 {
		score++
	}
	if coverage1 > 0.5 || coverage2 > 0.5 {
		score++
	}
	if significantFragments > 5 {
		score++
	}
	if totalSharedLines > 20 {
		score++
	}

	switch {
	case score >= 8:
		return VeryHigh
	case score >= 6:
		return High
	case score >= 4:
		return Medium
	default:
		return Low
	}
}

func similarityBucket(overallSimilarity float64) int {
	switch {
	case overallSimilarity >= 0.8:
		return 4
	case overallSimilarity >= 0.6:
		return 3
	case overallSimilarity >= 0.4:
		return 2
	case overallSimilarity >= 0.2:
		return 1
	default:
		return 0
	}
}

// BatchThreshold computes the batch-adaptive decision threshold from the
// overallSimilarity of every compared pair: clamp(mean + 1.5*stddev, 0.25,
// 0.8).
func BatchThreshold(similarities []float64) float64 {
	if len(similarities) == 0 {
		return 0.3
	}
	mean := stat.Mean(similarities, nil)
	var stddev float64
	if len(similarities) > 1 {
		stddev = stat.StdDev(similarities, nil)
	}
	return max(0.25, min(0.8, mean+1.5*stddev))
}
