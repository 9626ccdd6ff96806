package engine

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/havenly/codematch/pkg/index"
	"github.com/havenly/codematch/pkg/scorer"
)

// workerMultiplier mirrors internal/fileproc's DefaultWorkerMultiplier: both
// the ingest and query phases run on a pool sized runtime.NumCPU() * 2.
const workerMultiplier = 2

// DetectBatch computes every unordered pair (i, j) with i<j over files and
// returns them sorted by descending overallSimilarity. File tokenisation
// (ingest) and pair evaluation (query) each fan out on their own
// conc/pool worker pool; the fingerprint index is built once during ingest
// and is read-only for the whole query phase.
func (e *Engine) DetectBatch(files []SourceFile, opts BatchOptions) (BatchResult, error) {
	started := time.Now()
	n := len(files)
	workers := runtime.NumCPU() * workerMultiplier

	ingestedFiles := make([]ingested, n)
	var dedupe sync.Map // source text -> ingested, for byte-identical inputs

	ingestPool := pool.New().WithMaxGoroutines(workers)
	for i := range files {
		i := i
		ingestPool.Go(func() {
			if cached, ok := dedupe.Load(files[i].Text); ok {
				ingestedFiles[i] = cached.(ingested)
				return
			}
			result := e.ingestOne(files[i].Name, files[i].Text)
			dedupe.Store(files[i].Text, result)
			ingestedFiles[i] = result
		})
	}
	ingestPool.Wait()

	ix := index.New(e.cfg.KGramSize)
	valid := make([]bool, n)
	for i, ing := range ingestedFiles {
		if ing.err == nil {
			ix.AddFile(i, ing.selected)
			valid[i] = true
		}
	}

	type pairKey struct{ i, j int }
	var jobs []pairKey
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			jobs = append(jobs, pairKey{i, j})
		}
	}

	minOccurrences := firstNonNil(opts.MinOccurrences, e.cfg.MinOccurrences)
	results := make([]Result, len(jobs))

	queryPool := pool.New().WithMaxGoroutines(workers)
	for idx, job := range jobs {
		idx, job := idx, job
		queryPool.Go(func() {
			results[idx] = e.batchPairResult(files, ingestedFiles, valid, ix, job.i, job.j, minOccurrences)
		})
	}
	queryPool.Wait()

	similarities := make([]float64, len(results))
	for i, r := range results {
		similarities[i] = r.OverallSimilarity
	}
	threshold := scorer.BatchThreshold(similarities)
	if e.cfg.Threshold != nil {
		threshold = *e.cfg.Threshold
	}
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	suspicious := 0
	for i := range results {
		results[i].IsPlagiarism = results[i].OverallSimilarity >= threshold
		if results[i].IsPlagiarism {
			suspicious++
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].OverallSimilarity > results[b].OverallSimilarity
	})

	return BatchResult{
		Results:          results,
		Threshold:        threshold,
		TotalComparisons: len(results),
		SuspiciousPairs:  suspicious,
		ProcessingTime:   msSince(started),
	}, nil
}

func (e *Engine) batchPairResult(files []SourceFile, ingestedFiles []ingested, valid []bool, ix *index.Index, i, j int, minOccurrences int) Result {
	if !valid[i] || !valid[j] {
		return Result{
			MappedFragments: []MappedFragment{},
			Confidence:      scorer.Low,
			File1:           files[i].Name,
			File2:           files[j].Name,
		}
	}

	pair, err := ix.GetPair(i, j)
	if err != nil {
		panic(err) // unreachable: i != j and both were added above
	}

	result := e.scorePair(pair, ingestedFiles[i].tf, ingestedFiles[j].tf, nil, minOccurrences)
	result.File1 = files[i].Name
	result.File2 = files[j].Name
	return result
}
