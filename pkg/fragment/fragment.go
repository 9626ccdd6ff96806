// Package fragment collapses a sparse SharedKGram list into contiguous
// Fragments — regions that co-occur, in order, on both sides of a pair —
// and lifts their k-gram ranges back to token and line ranges via the
// tokenizer's position map.
//
// The greedy-merge-then-filter shape is adapted from groupClones in
// pkg/analyzer/duplicates/duplicates.go, which clusters candidate clone
// pairs and then discards undersized groups the same way.
package fragment

import (
	"sort"

	"github.com/havenly/codematch/pkg/index"
	"github.com/havenly/codematch/pkg/token"
)

// Range is an inclusive [From, To] span.
type Range struct {
	From int
	To   int
}

// Options configures the clustering pass. Zero-value Options is invalid;
// use DefaultOptions.
type Options struct {
	K              int
	GapTolerance   int
	DriftBand      int
	MinOccurrences int
}

// DefaultOptions mirrors the defaults named in the fragment builder
// contract: adjacent k-grams may merge (gap tolerance 1), a drift of ±1
// token is tolerated between sides, and a fragment needs only one shared
// k-gram to survive (callers typically raise MinOccurrences).
func DefaultOptions(k int) Options {
	return Options{K: k, GapTolerance: 1, DriftBand: 1, MinOccurrences: 1}
}

// Fragment is a maximal cluster of SharedKGrams that track each other
// monotonically on both sides, lifted to token and line ranges.
type Fragment struct {
	LeftKGramRange  Range
	RightKGramRange Range
	LeftTokenRange  Range
	RightTokenRange Range
	LeftLineRange   Range
	RightLineRange  Range

	SharedTokens       []string
	SharedFingerprints int

	Members []index.SharedKGram
}

// Build clusters shared into Fragments and lifts them to token/line ranges
// using the position maps of leftTF and rightTF.
func Build(shared []index.SharedKGram, leftTF, rightTF *token.TokenizedFile, opts Options) []Fragment {
	if len(shared) == 0 {
		return nil
	}

	ordered := make([]index.SharedKGram, len(shared))
	copy(ordered, shared)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].LeftPos != ordered[j].LeftPos {
			return ordered[i].LeftPos < ordered[j].LeftPos
		}
		return ordered[i].RightPos < ordered[j].RightPos
	})

	clusters := clusterize(ordered, opts.GapTolerance, opts.DriftBand)

	fragments := make([]Fragment, 0, len(clusters))
	for _, c := range clusters {
		if len(c.members) < opts.MinOccurrences {
			continue
		}
		fragments = append(fragments, lift(c, leftTF, rightTF, opts.K))
	}

	return fragments
}

type cluster struct {
	leftFrom, leftTo   int
	rightFrom, rightTo int
	baseOffset         int
	members            []index.SharedKGram
}

func newCluster(s index.SharedKGram) *cluster {
	return &cluster{
		leftFrom:   s.LeftPos,
		leftTo:     s.LeftPos,
		rightFrom:  s.RightPos,
		rightTo:    s.RightPos,
		baseOffset: s.RightPos - s.LeftPos,
		members:    []index.SharedKGram{s},
	}
}

func (c *cluster) extends(s index.SharedKGram, gapTolerance, driftBand int) bool {
	if s.LeftPos-c.leftTo > gapTolerance {
		return false
	}
	if s.RightPos-c.rightTo > gapTolerance {
		return false
	}
	offset := s.RightPos - s.LeftPos
	if abs(offset-c.baseOffset) > driftBand {
		return false
	}
	return true
}

func (c *cluster) extend(s index.SharedKGram) {
	if s.LeftPos > c.leftTo {
		c.leftTo = s.LeftPos
	}
	if s.RightPos > c.rightTo {
		c.rightTo = s.RightPos
	}
	c.members = append(c.members, s)
}

func clusterize(ordered []index.SharedKGram, gapTolerance, driftBand int) []*cluster {
	cur := newCluster(ordered[0])
	clusters := []*cluster{cur}

	for _, s := range ordered[1:] {
		if cur.extends(s, gapTolerance, driftBand) {
			cur.extend(s)
			continue
		}
		cur = newCluster(s)
		clusters = append(clusters, cur)
	}

	return clusters
}

func lift(c *cluster, leftTF, rightTF *token.TokenizedFile, k int) Fragment {
	leftTokenRange := Range{From: c.leftFrom, To: c.leftTo + k - 1}
	rightTokenRange := Range{From: c.rightFrom, To: c.rightTo + k - 1}

	return Fragment{
		LeftKGramRange:     Range{From: c.leftFrom, To: c.leftTo},
		RightKGramRange:    Range{From: c.rightFrom, To: c.rightTo},
		LeftTokenRange:     leftTokenRange,
		RightTokenRange:    rightTokenRange,
		LeftLineRange:      lineRange(leftTF, leftTokenRange),
		RightLineRange:     lineRange(rightTF, rightTokenRange),
		SharedTokens:       sharedTokens(leftTF, leftTokenRange),
		SharedFingerprints: len(c.members),
		Members:            c.members,
	}
}

func lineRange(tf *token.TokenizedFile, tokenRange Range) Range {
	return Range{
		From: clampLine(tf.LineAt(clampIndex(tf, tokenRange.From)), tf.LineCount),
		To:   clampLine(tf.LineAt(clampIndex(tf, tokenRange.To)), tf.LineCount),
	}
}

func clampIndex(tf *token.TokenizedFile, idx int) int {
	if idx < 0 {
		return 0
	}
	if last := len(tf.Tokens) - 1; idx > last {
		return last
	}
	return idx
}

func clampLine(line, lineCount int) int {
	if line < 1 {
		return 1
	}
	if lineCount > 0 && line > lineCount {
		return lineCount
	}
	return line
}

func sharedTokens(tf *token.TokenizedFile, tokenRange Range) []string {
	from := clampIndex(tf, tokenRange.From)
	to := clampIndex(tf, tokenRange.To)
	if to < from {
		return nil
	}
	values := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		values = append(values, tf.Tokens[i].Value)
	}
	return values
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
