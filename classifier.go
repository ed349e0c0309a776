// Copyright © 2018 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package shark

import (
	"sort"

	"github.com/pkg/errors"
)

// ScoreMethod selects how ReadClassifier ranks genes once coverage has been
// accumulated over a read (or read pair).
type ScoreMethod int

const (
	// ScoreByBase ranks genes by covered-base count, breaking ties by
	// covered-kmer count (the default method).
	ScoreByBase ScoreMethod = iota
	// ScoreByKmer ranks genes by covered-kmer count alone.
	ScoreByKmer
)

// geneCov accumulates one gene's coverage evidence across a read (or, for a
// pair, across both mates) as kmers are classified against it.
type geneCov struct {
	covBases int
	covKmers int
	lastPos  int
}

// ClassifyScratch holds the per-worker buffers ReadClassifier reuses across
// reads: the coverage map, the hash scratch ComputeHashes writes into, the
// leaf-id buffer ClassifyKmer writes into, and the best-gene result buffer.
// Reusing these across calls avoids per-k-mer allocation, mirroring
// KmerExtractor's own scratch-buffer convention; scoring still allocates one
// id slice per read and one coverage record per newly hit gene.
type ClassifyScratch struct {
	hash []uint64
	ids  []int
	cov  map[int]*geneCov
	best []int
}

// NewClassifyScratch allocates a scratch buffer sized for one ReadClassifier.
func NewClassifyScratch(nHash int) *ClassifyScratch {
	return &ClassifyScratch{
		hash: make([]uint64, nHash),
		cov:  make(map[int]*geneCov),
		best: make([]int, 0, 4),
	}
}

func (s *ClassifyScratch) reset() {
	for id := range s.cov {
		delete(s.cov, id)
	}
	s.best = s.best[:0]
}

func (s *ClassifyScratch) get(id int) *geneCov {
	gc := s.cov[id]
	if gc == nil {
		gc = &geneCov{}
		s.cov[id] = gc
	}
	return gc
}

// ReadClassifier assigns reads (or read pairs) to the reference genes whose
// Bloom filter subtree their k-mers hit, by accumulated coverage.
type ReadClassifier struct {
	Tree       *SBT
	K          int
	C          float64
	Method     ScoreMethod
	OnlySingle bool
}

// NewReadClassifier validates its parameters against the tree it classifies
// against.
func NewReadClassifier(tree *SBT, k int, c float64, method ScoreMethod, onlySingle bool) (*ReadClassifier, error) {
	if tree == nil {
		return nil, errors.New("shark: ReadClassifier requires a built SBT")
	}
	if k < 1 || k > MaxK {
		return nil, errors.Wrapf(ErrKOverflow, "k=%d", k)
	}
	if c < 0 {
		return nil, errors.New("shark: coverage threshold c must be non-negative")
	}
	return &ReadClassifier{Tree: tree, K: k, C: c, Method: method, OnlySingle: onlySingle}, nil
}

// accumulate rolls through seq's valid-base runs, classifying every
// canonical k-mer against the tree and folding the hit leaves into s.cov.
// The read's very first k-mer seeds each hit gene's last-seen position one
// base behind its own end, every subsequent k-mer (including one rebuilt
// after a run of non-ACGT bases) sets it to its own end exactly - this
// asymmetry is intentional, not a bug, and both legs converge to +1 covered
// base per consecutive overlapping k-mer. Positions are local to seq, so a
// gene already in s.cov from an earlier mate keeps its counts but has its
// last-seen position reset to 0. It returns the number of valid bases and
// the number of k-mers it found in seq; the callers scale the scoring
// threshold by the valid-base count and do not use the k-mer count.
func (c *ReadClassifier) accumulate(seq []byte, s *ClassifyScratch) (validBases, kmerCount int) {
	k := c.K
	n := len(seq)
	for _, b := range seq {
		if _, ok := EncodeBase(b); ok {
			validBases++
		}
	}
	if validBases < k {
		return validBases, 0
	}
	for _, gc := range s.cov {
		gc.lastPos = 0
	}

	pos := 0
	first := true
	for pos+k <= n {
		kmer, end, ok := BuildKmer(seq, pos, k)
		if !ok {
			break
		}
		rc := RevComp(kmer, k)
		for {
			canon := kmer
			if rc < canon {
				canon = rc
			}
			s.ids = c.Tree.ClassifyKmer(canon, s.ids, s.hash)
			kmerCount++
			for _, id := range s.ids {
				gc := s.get(id)
				gc.covBases += minInt(k, end-gc.lastPos)
				if first {
					gc.covKmers++
					gc.lastPos = end - 1
				} else {
					gc.covKmers++
					gc.lastPos = end
				}
			}
			first = false

			next := end + 1
			if next >= n {
				pos = n
				break
			}
			code, isBase := EncodeBase(seq[next])
			if !isBase {
				pos = next + 1
				break
			}
			kmer = AppendRight(kmer, code, k)
			rc = PrependLeft(rc, ComplementCode(code), k)
			end = next
		}
	}
	return validBases, kmerCount
}

// bestGenes scores s.cov per c.Method and appends the winning gene ids
// (sorted, ties kept) to s.best, returning whether the coverage threshold
// (scaled by totalLen across every mate folded into s.cov) was met.
func (c *ReadClassifier) bestGenes(s *ClassifyScratch, totalLen int) bool {
	ids := make([]int, 0, len(s.cov))
	for id := range s.cov {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	switch c.Method {
	case ScoreByKmer:
		maxKmers := 0
		for _, id := range ids {
			gc := s.cov[id]
			switch {
			case gc.covKmers == maxKmers:
				s.best = append(s.best, id)
			case gc.covKmers > maxKmers:
				maxKmers = gc.covKmers
				s.best = s.best[:0]
				s.best = append(s.best, id)
			}
		}
		// The threshold denominator is the valid-base-derived k-mer count
		// (totalLen-k+1), not the number of k-mers actually extracted:
		// an internal BREAK discards up to k-1 potential k-mers at the
		// restart boundary, and the threshold must not get easier to
		// clear just because a read was masked or contained an 'N' run.
		expected := totalLen - c.K + 1
		if expected < 0 {
			expected = 0
		}
		return float64(maxKmers) >= c.C*float64(expected)
	default:
		maxBases, maxKmers := 0, 0
		for _, id := range ids {
			gc := s.cov[id]
			switch {
			case gc.covBases == maxBases && gc.covKmers == maxKmers:
				s.best = append(s.best, id)
			case gc.covBases > maxBases || (gc.covBases == maxBases && gc.covKmers > maxKmers):
				maxBases, maxKmers = gc.covBases, gc.covKmers
				s.best = s.best[:0]
				s.best = append(s.best, id)
			}
		}
		return float64(maxBases) >= c.C*float64(totalLen)
	}
}

// ClassifyRead scores a single read and returns the winning gene ids (empty
// if the read missed the coverage threshold, or if OnlySingle is set and
// more than one gene tied for best).
func (c *ReadClassifier) ClassifyRead(seq []byte, s *ClassifyScratch) []int {
	s.reset()
	validLen, _ := c.accumulate(seq, s)
	return c.finish(s, validLen)
}

// ClassifyPair scores a read pair jointly: coverage from both mates
// accumulates into the same gene map before a single scoring pass, rather
// than scoring each mate independently and unioning afterward. mate2 may be
// nil for a single-end call equivalent to ClassifyRead.
func (c *ReadClassifier) ClassifyPair(mate1, mate2 []byte, s *ClassifyScratch) []int {
	s.reset()
	totalLen, _ := c.accumulate(mate1, s)
	if mate2 != nil {
		len2, _ := c.accumulate(mate2, s)
		totalLen += len2
	}
	return c.finish(s, totalLen)
}

func (c *ReadClassifier) finish(s *ClassifyScratch, totalLen int) []int {
	if len(s.cov) == 0 {
		return nil
	}
	met := c.bestGenes(s, totalLen)
	if !met {
		return nil
	}
	if c.OnlySingle && len(s.best) != 1 {
		return nil
	}
	return s.best
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
