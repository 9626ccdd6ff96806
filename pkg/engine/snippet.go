package engine

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/havenly/codematch/pkg/fragment"
	"github.com/havenly/codematch/pkg/scorer"
	"github.com/havenly/codematch/pkg/token"
)

func toMappedFragment(f fragment.Fragment, score scorer.FragmentScore, tfA, tfB *token.TokenizedFile) MappedFragment {
	file1Lines := lineSpan(f.LeftLineRange)
	file2Lines := lineSpan(f.RightLineRange)

	return MappedFragment{
		FragmentID:   fragmentID(f),
		Confidence:   score.Confidence,
		FragmentType: score.Class,

		File1Lines: file1Lines,
		File2Lines: file2Lines,

		File1TokenRange: tokenSpan(f.LeftTokenRange),
		File2TokenRange: tokenSpan(f.RightTokenRange),

		SharedTokens: f.SharedTokens,
		TokenPattern: score.Pattern,

		File1CodeSnippet: snippet(tfA, file1Lines),
		File2CodeSnippet: snippet(tfB, file2Lines),

		File1CodeWithLineNumbers: snippetWithLineNumbers(tfA, file1Lines),
		File2CodeWithLineNumbers: snippetWithLineNumbers(tfB, file2Lines),

		LocalSimilarity:    score.LocalSimilarity,
		SharedFingerprints: f.SharedFingerprints,
	}
}

func lineSpan(r fragment.Range) LineSpan {
	count := r.To - r.From + 1
	if count < 0 {
		count = 0
	}
	return LineSpan{Start: r.From, End: r.To, Count: count}
}

func tokenSpan(r fragment.Range) TokenSpan {
	count := r.To - r.From + 1
	if count < 0 {
		count = 0
	}
	return TokenSpan{Start: r.From, End: r.To, Tokens: count}
}

func snippet(tf *token.TokenizedFile, span LineSpan) string {
	lines := linesInSpan(tf, span)
	return strings.Join(lines, "\n")
}

// snippetWithLineNumbers prefixes each line with its 1-based source line
// number, left-aligned and right-padded to 3 columns.
func snippetWithLineNumbers(tf *token.TokenizedFile, span LineSpan) string {
	lines := linesInSpan(tf, span)
	numbered := make([]string, len(lines))
	for i, line := range lines {
		numbered[i] = fmt.Sprintf("%-3d: %s", span.Start+i, line)
	}
	return strings.Join(numbered, "\n")
}

func linesInSpan(tf *token.TokenizedFile, span LineSpan) []string {
	if span.Start < 1 || span.End < span.Start {
		return nil
	}
	all := tf.Lines()
	start := span.Start - 1
	end := span.End - 1
	if start < 0 {
		start = 0
	}
	if end >= len(all) {
		end = len(all) - 1
	}
	if end < start {
		return nil
	}
	return all[start : end+1]
}

// fragmentID hashes the fragment's ranges and shared token content with
// blake3 to produce a stable identifier. Fragments with equal ids are not
// merged or dropped; the id only labels them.
func fragmentID(f fragment.Fragment) string {
	h := blake3.New()
	fmt.Fprintf(h, "%d:%d:%d:%d:%s",
		f.LeftKGramRange.From, f.LeftKGramRange.To,
		f.RightKGramRange.From, f.RightKGramRange.To,
		strings.Join(f.SharedTokens, " "))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
