package engine

import "github.com/havenly/codematch/pkg/scorer"

// SourceFile is the immutable input to the engine: a name (for reporting)
// and raw UTF-8 text. Line endings may be LF or CRLF; both normalise to LF
// for line counting.
type SourceFile struct {
	Name string
	Text string
}

// LineSpan is an inclusive [Start, End] line range plus its line count.
type LineSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Count int `json:"count"`
}

// TokenSpan is an inclusive [Start, End] token range plus its token count.
type TokenSpan struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Tokens int `json:"tokens"`
}

// MappedFragment is a single scored, line-mapped shared region between two
// files, ready for serialisation to the external result schema.
type MappedFragment struct {
	FragmentID   string        `json:"fragmentId"`
	Confidence   float64       `json:"confidence"`
	FragmentType scorer.Class  `json:"fragmentType"`

	File1Lines LineSpan `json:"file1Lines"`
	File2Lines LineSpan `json:"file2Lines"`

	File1TokenRange TokenSpan `json:"file1TokenRange"`
	File2TokenRange TokenSpan `json:"file2TokenRange"`

	SharedTokens []string `json:"sharedTokens"`
	TokenPattern string   `json:"tokenPattern"`

	File1CodeSnippet          string `json:"file1CodeSnippet"`
	File2CodeSnippet          string `json:"file2CodeSnippet"`
	File1CodeWithLineNumbers  string `json:"file1CodeWithLineNumbers"`
	File2CodeWithLineNumbers  string `json:"file2CodeWithLineNumbers"`

	LocalSimilarity    float64 `json:"localSimilarity"`
	SharedFingerprints int     `json:"sharedFingerprints"`
}

// Result is the exact shape returned by Detect, relied upon by the external
// HTTP layer and desktop shell per the external interface contract.
type Result struct {
	SyntacticSimilarity float64 `json:"syntacticSimilarity"`
	OverallSimilarity   float64 `json:"overallSimilarity"`

	SharedFragments int     `json:"sharedFragments"`
	LongestFragment int     `json:"longestFragment"`
	Coverage1       float64 `json:"coverage1"`
	Coverage2       float64 `json:"coverage2"`

	MappedFragments             []MappedFragment `json:"mappedFragments"`
	TotalMappedFragments        int               `json:"totalMappedFragments"`
	SignificantMappedFragments  int               `json:"significantMappedFragments"`
	TotalSharedLines            int               `json:"totalSharedLines"`
	TotalSharedTokens           int               `json:"totalSharedTokens"`

	IsPlagiarism bool                   `json:"isPlagiarism"`
	Confidence   scorer.ConfidenceLabel `json:"confidence"`

	File1          string  `json:"file1"`
	File2          string  `json:"file2"`
	ProcessingTime float64 `json:"processingTime"`
}

// BatchResult is the output of DetectBatch: every unordered pair (i<j)
// sorted by descending overallSimilarity.
type BatchResult struct {
	Results          []Result `json:"results"`
	Threshold        float64  `json:"threshold"`
	TotalComparisons int      `json:"totalComparisons"`
	SuspiciousPairs  int      `json:"suspiciousPairs"`
	ProcessingTime   float64  `json:"processingTime"`
}

// DetectOptions configures a single Detect call. A nil Threshold falls back
// to the engine's configured Threshold, or to the adaptive table when that
// is nil too; a nil MinOccurrences falls back to the engine's configured
// default.
type DetectOptions struct {
	Threshold      *float64
	MinOccurrences *int
}

// BatchOptions configures a DetectBatch call. A nil Threshold falls back to
// the engine's configured Threshold, or, when that is nil too, to the
// batch-adaptive threshold computed from the observed similarities.
type BatchOptions struct {
	Threshold      *float64
	MinOccurrences *int
}
