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

import "github.com/pkg/errors"

// SBT is a Sequence Bloom Tree: a complete binary tree of Bloom filters
// with decreasing filter sizes toward the leaves, built once and then
// immutable.
type SBT struct {
	Root   *BloomFilterNode
	Leaves []*BloomFilterNode
	N      uint64 // root filter size in bits, power of two
	NHash  int
}

// prevPow2 rounds v down to the nearest power of two, v must be >= 1.
func prevPow2(v uint64) uint64 {
	p := uint64(1)
	for p<<1 <= v {
		p <<= 1
	}
	return p
}

// log2Ceil returns ceil(log2(n)) for n >= 1.
func log2Ceil(n int) uint {
	var l uint
	p := 1
	for p < n {
		p <<= 1
		l++
	}
	return l
}

// NewSBT builds the tree shape for geneCount leaves under a root bit budget
// bRoot: compute the per-leaf size, FIFO-pair leaves into inner nodes
// doubling size on the way up, then resize the whole tree down from the
// root so every node ends up an exact power of two with the root matching
// bRoot rounded down to a power of two.
func NewSBT(geneCount int, bRoot uint64, nHash int) (*SBT, error) {
	if geneCount < 1 {
		return nil, errors.New("shark: SBT requires at least one gene")
	}
	if bRoot < 1 {
		return nil, errors.New("shark: bRoot must be positive")
	}

	leafSize := prevPow2(bRoot >> log2Ceil(geneCount))
	if leafSize < 1 {
		leafSize = 1
	}

	leaves := make([]*BloomFilterNode, geneCount)
	fifo := make([]*BloomFilterNode, geneCount)
	for i := 0; i < geneCount; i++ {
		leaf := NewLeafNode(leafSize, i)
		leaves[i] = leaf
		fifo[i] = leaf
	}

	for len(fifo) > 1 {
		left, right := fifo[0], fifo[1]
		fifo = fifo[2:]
		fifo = append(fifo, NewInnerNode(left, right))
	}
	root := fifo[0]

	rootSize := prevPow2(bRoot)
	if rootSize < 1 {
		rootSize = 1
	}
	root.Resize(rootSize)

	return &SBT{Root: root, Leaves: leaves, N: root.Size, NHash: nHash}, nil
}

// Fill sets every hash position of a gene's k-mers on its leaf and on every
// ancestor. leafIndex must be the monotonically
// increasing cursor the filler stage owns; IndexBuilder is responsible for
// calling Fill in the same record order the leaves were created in.
func (t *SBT) Fill(leafIndex int, positions []uint64) {
	leaf := t.Leaves[leafIndex]
	for _, pos := range positions {
		// pos already lies in [0, N) for the root filter size (see
		// ComputeHashes); SetBitWithAncestors re-masks it to each
		// ancestor's own (smaller) power-of-two size on the way up, which
		// is what keeps the dynamic-mask suffix property in ClassifyKmer
		// valid. Masking down to the leaf's own size here first would
		// discard the high bits larger ancestors still need.
		leaf.SetBitWithAncestors(pos)
	}
}

// ClassifyKmer descends from the root with a dynamic mask, pruning any
// subtree whose node fails to have every hashed bit set, and appends every
// reachable leaf's gene id to out. out is cleared first. hashScratch must
// have length t.NHash; it is reused to avoid allocation.
//
// A successful probe at an inner node descends into BOTH children (not an
// early-return on the first leaf found): out collects the union of every
// leaf reachable through a chain of successful probes.
func (t *SBT) ClassifyKmer(kmer uint64, out []int, hashScratch []uint64) []int {
	out = out[:0]
	hashes := ComputeHashes(kmer, t.NHash, t.N, hashScratch)

	type frame struct {
		node *BloomFilterNode
		mask uint64
	}
	stack := []frame{{t.Root, t.N - 1}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ok := true
		for _, h := range hashes {
			if !f.node.TestBit(h & f.mask) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		if f.node.IsLeaf() {
			out = append(out, f.node.ID)
			continue
		}
		if f.node.Left != nil {
			shift := uint64(1)
			if f.node.Left.Support {
				shift = 2
			}
			stack = append(stack, frame{f.node.Left, f.mask >> shift})
		}
		if f.node.Right != nil {
			shift := uint64(1)
			if f.node.Right.Support {
				shift = 2
			}
			stack = append(stack, frame{f.node.Right, f.mask >> shift})
		}
	}

	return out
}
