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
	"github.com/pkg/errors"
	"github.com/shenwei356/shark/pipeline"
)

// IndexBuilder orchestrates SBT construction from a set of reference gene
// records: it sizes the tree from the gene count and root bit
// budget, then drives the per-record extraction and leaf fill through the
// bounded three-stage pipeline, with the reduce stage incrementing the
// leaf cursor in the same record order the leaves were created in.
type IndexBuilder struct {
	K      int
	NHash  int
	BRoot  uint64
	Tokens int
}

// NewIndexBuilder validates its parameters and returns a ready builder.
func NewIndexBuilder(k, nHash int, bRoot uint64, tokens int) (*IndexBuilder, error) {
	if k < 1 || k > MaxK {
		return nil, errors.Wrapf(ErrKOverflow, "k=%d", k)
	}
	if nHash < 1 || nHash > MaxHashCount {
		return nil, errors.Errorf("shark: n_hash must be in [1, %d], got %d", MaxHashCount, nHash)
	}
	if bRoot < 1 {
		return nil, errors.New("shark: bf-size must be positive")
	}
	if tokens < 1 {
		tokens = 1
	}
	return &IndexBuilder{K: k, NHash: nHash, BRoot: bRoot, Tokens: tokens}, nil
}

type extracted struct {
	leafIndex int
	positions []uint64
}

// Build constructs an SBT over records, in record order, and returns it
// filled and ready for classification.
func (b *IndexBuilder) Build(records []SeqRecord) (*SBT, error) {
	if len(records) == 0 {
		return nil, errors.New("shark: no reference records to index")
	}

	tree, err := NewSBT(len(records), b.BRoot, b.NHash)
	if err != nil {
		return nil, errors.Wrap(err, "building SBT shape")
	}

	ext, err := NewKmerExtractor(b.K, b.NHash, tree.N)
	if err != nil {
		return nil, errors.Wrap(err, "building kmer extractor")
	}

	var next int
	split := func() (interface{}, bool, error) {
		if next >= len(records) {
			return nil, true, nil
		}
		idx := next
		next++
		return idx, false, nil
	}

	mapFn := func(item interface{}) (interface{}, error) {
		idx := item.(int)
		scratch := make([]uint64, ext.NHash)
		positions := ext.ExtractSeq(records[idx].Seq, scratch, nil)
		return extracted{leafIndex: idx, positions: positions}, nil
	}

	reduce := func(result interface{}) error {
		r := result.(extracted)
		tree.Fill(r.leafIndex, r.positions)
		return nil
	}

	if err := pipeline.Run(b.Tokens, split, mapFn, reduce); err != nil {
		return nil, errors.Wrap(err, "filling SBT")
	}

	return tree, nil
}
