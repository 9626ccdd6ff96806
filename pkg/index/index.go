// Package index builds an inverted fingerprint index over many files and
// derives pairwise shared-fingerprint structure from it.
//
// Covered-position sets use github.com/RoaringBitmap/roaring/v2, the same
// "sparse positions out of a dense index space" structure
// pkg/analyzer/deadcode uses for reachable-node sets in the teacher
// repository.
package index

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/havenly/codematch/pkg/fingerprint"
)

// ErrSelfPair is returned by GetPair when asked to pair a file with itself.
var ErrSelfPair = errors.New("index: cannot pair a file with itself")

// Occurrence is a single (file, k-gram position) appearance of a hash.
type Occurrence struct {
	FileID   int
	Position int
}

// SharedKGram is a k-gram whose hash is selected in both files of a pair.
type SharedKGram struct {
	Hash     uint64
	LeftPos  int
	RightPos int
}

// Pair is the derived shared-fingerprint structure between two indexed
// files, computed on demand and never mutated afterwards.
type Pair struct {
	LeftFileID  int
	RightFileID int
	Shared      []SharedKGram

	Overlap      int
	LeftTotal    int
	RightTotal   int
	LeftCovered  int
	RightCovered int
	Similarity   float64
	// Longest is measured in tokens: the longest contiguous run of k-grams
	// on the left side whose every position participates in a shared
	// k-gram, extended by K-1.
	Longest int
}

type indexedFile struct {
	fileID   int
	selected []fingerprint.KGramHash
	byHash   map[uint64][]int
}

// Index is an inverted map from hash to the files/positions that selected
// it. Immutable once all AddFile calls complete; GetPair is read-only and
// safe to call concurrently from many goroutines after ingest.
type Index struct {
	k      int
	files  map[int]*indexedFile
	byHash map[uint64][]Occurrence
}

// New creates an empty Index for k-gram size k.
func New(k int) *Index {
	return &Index{
		k:      k,
		files:  make(map[int]*indexedFile),
		byHash: make(map[uint64][]Occurrence),
	}
}

// AddFile ingests a file's selected (winnowed) fingerprints under fileID.
func (ix *Index) AddFile(fileID int, selected []fingerprint.KGramHash) {
	entry := &indexedFile{
		fileID:   fileID,
		selected: selected,
		byHash:   make(map[uint64][]int, len(selected)),
	}
	for _, sel := range selected {
		entry.byHash[sel.Hash] = append(entry.byHash[sel.Hash], sel.Position)
		ix.byHash[sel.Hash] = append(ix.byHash[sel.Hash], Occurrence{FileID: fileID, Position: sel.Position})
	}
	ix.files[fileID] = entry
}

// GetPair computes the shared-fingerprint structure for the ordered pair
// (a, b). Enumerates the cross product of positions for every hash selected
// by both files, filtered strictly to occurrences belonging to a and b
// respectively so a repeated file id elsewhere in the index never leaks in.
func (ix *Index) GetPair(a, b int) (*Pair, error) {
	if a == b {
		return nil, ErrSelfPair
	}
	left, ok := ix.files[a]
	if !ok {
		return nil, fmt.Errorf("index: unknown file id %d", a)
	}
	right, ok := ix.files[b]
	if !ok {
		return nil, fmt.Errorf("index: unknown file id %d", b)
	}

	var shared []SharedKGram
	for hash, leftPositions := range left.byHash {
		rightPositions, ok := right.byHash[hash]
		if !ok {
			continue
		}
		for _, lp := range leftPositions {
			for _, rp := range rightPositions {
				shared = append(shared, SharedKGram{Hash: hash, LeftPos: lp, RightPos: rp})
			}
		}
	}

	sort.Slice(shared, func(i, j int) bool {
		if shared[i].LeftPos != shared[j].LeftPos {
			return shared[i].LeftPos < shared[j].LeftPos
		}
		return shared[i].RightPos < shared[j].RightPos
	})

	return analysePair(a, b, left, right, shared, ix.k), nil
}

func analysePair(a, b int, left, right *indexedFile, shared []SharedKGram, k int) *Pair {
	leftTotal := len(left.selected)
	rightTotal := len(right.selected)

	leftCoveredBM := roaring.New()
	rightCoveredBM := roaring.New()
	for _, s := range shared {
		leftCoveredBM.Add(uint32(s.LeftPos))
		rightCoveredBM.Add(uint32(s.RightPos))
	}

	// Dice over the two selected-fingerprint multisets: a hash selected m
	// times on the left and n times on the right matches min(m, n) times,
	// so repeated hashes in the cross product never push similarity above 1.
	matched := 0
	for hash, leftPositions := range left.byHash {
		if rightPositions, ok := right.byHash[hash]; ok {
			matched += min(len(leftPositions), len(rightPositions))
		}
	}

	var similarity float64
	if leftTotal+rightTotal > 0 {
		similarity = 2 * float64(matched) / float64(leftTotal+rightTotal)
	}

	return &Pair{
		LeftFileID:   a,
		RightFileID:  b,
		Shared:       shared,
		Overlap:      len(shared),
		LeftTotal:    leftTotal,
		RightTotal:   rightTotal,
		LeftCovered:  int(leftCoveredBM.GetCardinality()),
		RightCovered: int(rightCoveredBM.GetCardinality()),
		Similarity:   similarity,
		Longest:      longestRun(leftCoveredBM, k),
	}
}

// longestRun returns the longest contiguous run of k-gram positions present
// in covered, measured in tokens (run length + k - 1).
func longestRun(covered *roaring.Bitmap, k int) int {
	if covered.IsEmpty() {
		return 0
	}

	best := 0
	runLen := 0
	prev := -2 // guarantees the first position always starts a new run

	it := covered.Iterator()
	for it.HasNext() {
		pos := int(it.Next())
		if pos == prev+1 {
			runLen++
		} else {
			runLen = 1
		}
		if runLen > best {
			best = runLen
		}
		prev = pos
	}

	return best + k - 1
}
