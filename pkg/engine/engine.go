// Package engine is the top-level orchestration of the winnowing
// pipeline: tokenizer, k-gram hasher, winnowing selector, fingerprint
// index, pair analyser, fragment builder and scorer, wired together to
// produce the external result schema.
//
// The ingest-then-query shape (parallel tokenization, then a read-only
// index queried in parallel) is adapted from
// pkg/analyzer/duplicates.Analyzer.AnalyzeProjectWithProgress in the
// teacher repository, running on github.com/sourcegraph/conc/pool worker
// pools the same way internal/fileproc.MapFiles does.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/havenly/codematch/pkg/fingerprint"
	"github.com/havenly/codematch/pkg/fragment"
	"github.com/havenly/codematch/pkg/index"
	"github.com/havenly/codematch/pkg/scorer"
	"github.com/havenly/codematch/pkg/token"
)

// ErrInvalidParameter is returned by New when a construction parameter
// violates the engine's contract. It is fatal: callers must not retry with
// the same configuration.
var ErrInvalidParameter = errors.New("engine: invalid parameter")

// ErrEmptyFile marks a file that produced no tokens after normalisation.
// Detect reports the affected pair with similarity 0 rather than failing.
var ErrEmptyFile = errors.New("engine: file has no tokens after normalization")

// EngineConfig are the construction-time inputs to New.
type EngineConfig struct {
	KGramSize       int
	WindowSize      int
	SyntacticWeight float64

	MinOccurrences int
	GapTolerance   int
	DriftBand      int

	// Threshold, if set, is used whenever a call's own Threshold option is
	// nil, ahead of the adaptive table.
	Threshold *float64
}

// DefaultEngineConfig mirrors the defaults named in the component
// contracts: K=8, W=15, syntacticWeight=1.0, gap tolerance 1, drift band 1,
// minOccurrences 1.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		KGramSize:       fingerprint.DefaultK,
		WindowSize:      fingerprint.DefaultW,
		SyntacticWeight: 1.0,
		MinOccurrences:  1,
		GapTolerance:    1,
		DriftBand:       1,
	}
}

// Validate enforces the InvalidParameter rule: kgramSize < 2 or windowSize
// < 1.
func (c EngineConfig) Validate() error {
	var errs []error
	if c.KGramSize < 2 {
		errs = append(errs, fmt.Errorf("%w: kgramSize must be >= 2, got %d", ErrInvalidParameter, c.KGramSize))
	}
	if c.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("%w: windowSize must be >= 1, got %d", ErrInvalidParameter, c.WindowSize))
	}
	return errors.Join(errs...)
}

// Engine is the compute-bound, side-effect-free similarity engine. It is
// safe for concurrent use: Detect and DetectBatch share no mutable state
// across calls.
type Engine struct {
	cfg EngineConfig
}

// New validates cfg and constructs an Engine. InvalidParameter is fatal at
// construction, per the error handling contract.
func New(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// ingested is the per-file product of the ingest phase: a tokenized file
// plus its winnowed fingerprint set. A non-nil err means the file could not
// be ingested (LexError or ErrEmptyFile); tf/selected may be partially
// populated and must not be used for pairing.
type ingested struct {
	tf       *token.TokenizedFile
	selected []fingerprint.KGramHash
	err      error
}

// ingestOne tokenizes and winnows a single file. Pure and side-effect-free:
// safe to call concurrently across files.
func (e *Engine) ingestOne(name, text string) ingested {
	tf, err := token.Tokenize(name, text)
	if err != nil {
		return ingested{err: err}
	}
	if len(tf.Tokens) == 0 {
		return ingested{tf: tf, err: fmt.Errorf("%w: %s", ErrEmptyFile, name)}
	}
	selected := fingerprint.Select(tokenValues(tf), e.cfg.KGramSize, e.cfg.WindowSize)
	return ingested{tf: tf, selected: selected}
}

// Detect computes the similarity between two files and returns the full
// result schema. Errors are recovered internally per the contract: a
// LexError or ErrEmptyFile degrades the returned Result to similarity 0
// rather than failing, and is also returned so the caller can log it.
func (e *Engine) Detect(a, b SourceFile, opts DetectOptions) (Result, error) {
	started := time.Now()

	ia := e.ingestOne(a.Name, a.Text)
	if ia.err != nil {
		return degradedResult(a.Name, b.Name, started), ia.err
	}
	// Same content: reuse the already-computed tokens and fingerprint set
	// instead of running the tokenizer, hasher and winnower a second time.
	ib := ia
	if !identicalContent(a.Text, b.Text) {
		ib = e.ingestOne(b.Name, b.Text)
		if ib.err != nil {
			return degradedResult(a.Name, b.Name, started), ib.err
		}
	}

	ix := index.New(e.cfg.KGramSize)
	ix.AddFile(1, ia.selected)
	ix.AddFile(2, ib.selected)
	pair, err := ix.GetPair(1, 2)
	if err != nil {
		panic(err) // unreachable: file ids 1 and 2 are always distinct
	}

	result := e.scorePair(pair, ia.tf, ib.tf, opts.Threshold, firstNonNil(opts.MinOccurrences, e.cfg.MinOccurrences))
	result.File1 = a.Name
	result.File2 = b.Name
	result.ProcessingTime = msSince(started)
	return result, nil
}

// scorePair runs the fragment builder and scorer over an already-computed
// Pair and assembles the result schema. Shared by Detect and DetectBatch so
// a single pair always scores identically regardless of which index
// produced it.
func (e *Engine) scorePair(pair *index.Pair, tfA, tfB *token.TokenizedFile, thresholdOverride *float64, minOccurrences int) Result {
	fragOpts := fragment.Options{
		K:              e.cfg.KGramSize,
		GapTolerance:   e.cfg.GapTolerance,
		DriftBand:      e.cfg.DriftBand,
		MinOccurrences: minOccurrences,
	}
	frags := fragment.Build(pair.Shared, tfA, tfB, fragOpts)

	mapped := make([]MappedFragment, 0, len(frags))
	significant := 0
	totalSharedLines := 0
	totalSharedTokens := 0
	for _, f := range frags {
		score := scorer.ScoreFragment(f, e.cfg.KGramSize)
		mf := toMappedFragment(f, score, tfA, tfB)
		mapped = append(mapped, mf)
		if score.Significant {
			significant++
			totalSharedLines += mf.File1Lines.Count
			totalSharedTokens += len(mf.SharedTokens)
		}
	}

	var coverage1, coverage2 float64
	if pair.LeftTotal > 0 {
		coverage1 = float64(pair.LeftCovered) / float64(pair.LeftTotal)
	}
	if pair.RightTotal > 0 {
		coverage2 = float64(pair.RightCovered) / float64(pair.RightTotal)
	}

	syntactic := pair.Similarity
	overall := e.cfg.SyntacticWeight * syntactic

	threshold := scorer.AdaptiveThreshold(overall, significant)
	if e.cfg.Threshold != nil {
		threshold = *e.cfg.Threshold
	}
	if thresholdOverride != nil {
		threshold = *thresholdOverride
	}

	label := scorer.Label(overall, syntactic, pair.Longest, coverage1, coverage2, significant, totalSharedLines)

	return Result{
		SyntacticSimilarity:        syntactic,
		OverallSimilarity:          overall,
		SharedFragments:            pair.Overlap,
		LongestFragment:            pair.Longest,
		Coverage1:                  coverage1,
		Coverage2:                  coverage2,
		MappedFragments:            mapped,
		TotalMappedFragments:       len(mapped),
		SignificantMappedFragments: significant,
		TotalSharedLines:           totalSharedLines,
		TotalSharedTokens:          totalSharedTokens,
		IsPlagiarism:               overall >= threshold,
		Confidence:                 label,
	}
}

func degradedResult(name1, name2 string, started time.Time) Result {
	return Result{
		MappedFragments: []MappedFragment{},
		Confidence:      scorer.Low,
		File1:           name1,
		File2:           name2,
		ProcessingTime:  msSince(started),
	}
}

func tokenValues(tf *token.TokenizedFile) []string {
	values := make([]string, len(tf.Tokens))
	for i, t := range tf.Tokens {
		values[i] = t.Value
	}
	return values
}

func identicalContent(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return xxhash.Sum64String(a) == xxhash.Sum64String(b) && a == b
}

func firstNonNil(override *int, fallback int) int {
	if override != nil {
		return *override
	}
	return fallback
}

func msSince(started time.Time) float64 {
	return float64(time.Since(started).Microseconds()) / 1000.0
}
