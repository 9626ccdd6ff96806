package scorer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/havenly/codematch/pkg/fragment"
	"github.com/havenly/codematch/pkg/scorer"
)

func makeFragment(sharedTokenCount, sharedFingerprints, kgramRangeLen int) fragment.Fragment {
	tokens := make([]string, sharedTokenCount)
	for i := range tokens {
		tokens[i] = "IDENT"
	}
	return fragment.Fragment{
		LeftKGramRange:     fragment.Range{From: 0, To: kgramRangeLen - 1},
		SharedTokens:       tokens,
		SharedFingerprints: sharedFingerprints,
	}
}

func TestScoreFragmentExactClassification(t *testing.T) {
	f := makeFragment(100, 50, 10)
	score := scorer.ScoreFragment(f, 8)
	assert.Equal(t, scorer.Exact, score.Class)
	assert.GreaterOrEqual(t, score.Confidence, 0.8)
	assert.True(t, score.Significant)
}

func TestScoreFragmentStructuralClassification(t *testing.T) {
	f := makeFragment(8, 1, 10)
	score := scorer.ScoreFragment(f, 8)
	assert.Equal(t, scorer.Structural, score.Class)
}

func TestScoreFragmentSignificanceRequiresMinTokens(t *testing.T) {
	f := makeFragment(4, 4, 4)
	score := scorer.ScoreFragment(f, 8)
	assert.False(t, score.Significant, "fewer shared tokens than k should not be significant")
}

func TestScoreFragmentConfidenceCapsAtOne(t *testing.T) {
	f := makeFragment(1000, 1000, 1)
	score := scorer.ScoreFragment(f, 8)
	assert.LessOrEqual(t, score.Confidence, 1.0)
}

func TestPatternShortIsSpaceJoined(t *testing.T) {
	f := makeFragment(3, 1, 3)
	f.SharedTokens = []string{"begin", "IDENT", "end"}
	score := scorer.ScoreFragment(f, 8)
	assert.Equal(t, "begin IDENT end", score.Pattern)
}

func TestPatternLongIsTruncated(t *testing.T) {
	f := makeFragment(25, 1, 25)
	score := scorer.ScoreFragment(f, 8)
	assert.Contains(t, score.Pattern, " ... ")
}

func TestAdaptiveThresholdTable(t *testing.T) {
	assert.Equal(t, 0.7, scorer.AdaptiveThreshold(0.85, 6))
	assert.Equal(t, 0.5, scorer.AdaptiveThreshold(0.65, 4))
	assert.Equal(t, 0.35, scorer.AdaptiveThreshold(0.45, 2))
	assert.Equal(t, 0.3, scorer.AdaptiveThreshold(0.1, 0))
}

func TestLabelVeryHighForStrongMatch(t *testing.T) {
	label := scorer.Label(0.9, 0.9, 20, 0.8, 0.8, 10, 30)
	assert.Equal(t, scorer.VeryHigh, label)
}

func TestLabelLowForWeakMatch(t *testing.T) {
	label := scorer.Label(0.05, 0.0, 0, 0.0, 0.0, 0, 0)
	assert.Equal(t, scorer.Low, label)
}

func TestBatchThresholdClampedToRange(t *testing.T) {
	low := scorer.BatchThreshold([]float64{0.0, 0.0, 0.0})
	assert.Equal(t, 0.25, low)

	high := scorer.BatchThreshold([]float64{0.95, 0.97, 0.99})
	assert.LessOrEqual(t, high, 0.8)
}

func TestBatchThresholdEmptyInput(t *testing.T) {
	assert.Equal(t, 0.3, scorer.BatchThreshold(nil))
}

func TestBatchThresholdSingleValueNoStddevPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		scorer.BatchThreshold([]float64{0.5})
	})
}
