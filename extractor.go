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

// SeqRecord is one (sequence_id, sequence_text) input pair.
type SeqRecord struct {
	ID  string
	Seq []byte
}

// HashRecord is the (sequence_id, positions) output of extracting kmer hash
// positions from one sequence. Positions is the concatenation of n_hash
// hash positions for every valid canonical k-mer, in left-to-right order;
// duplicates are preserved.
type HashRecord struct {
	ID        string
	Positions []uint64
}

// KmerExtractor streams canonical k-mer hash positions out of nucleotide
// sequences. It holds no per-call state, so a single instance is shared
// across pipeline workers; callers provide their own scratch buffers to
// keep extraction allocation-free on the hot path.
type KmerExtractor struct {
	K          int
	NHash      int
	FilterSize uint64
}

// NewKmerExtractor validates k and n_hash and returns a ready extractor.
func NewKmerExtractor(k, nHash int, filterSize uint64) (*KmerExtractor, error) {
	if k < 1 || k > MaxK {
		return nil, errors.Wrapf(ErrKOverflow, "k=%d", k)
	}
	if nHash < 1 || nHash > MaxHashCount {
		return nil, errors.Errorf("shark: n_hash must be in [1, %d], got %d", MaxHashCount, nHash)
	}
	return &KmerExtractor{K: k, NHash: nHash, FilterSize: filterSize}, nil
}

// ExtractSeq appends the hash positions of every valid canonical k-mer in
// seq to out and returns the extended slice. hashScratch must have length
// e.NHash; it is reused across calls to avoid per-kmer allocation.
//
// Any BREAK byte (anything other than A/C/G/T) restarts the rolling k-mer
// but does not stop extraction: positions resume past the break. Sequences
// shorter than k contribute nothing.
func (e *KmerExtractor) ExtractSeq(seq []byte, hashScratch []uint64, out []uint64) []uint64 {
	k := e.K
	n := len(seq)
	pos := 0
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
			out = append(out, ComputeHashes(canon, e.NHash, e.FilterSize, hashScratch)...)

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
	return out
}

// ExtractBatch runs ExtractSeq over every record in batch, in order.
func (e *KmerExtractor) ExtractBatch(batch []SeqRecord) []HashRecord {
	out := make([]HashRecord, len(batch))
	scratch := make([]uint64, e.NHash)
	for i, rec := range batch {
		out[i] = HashRecord{
			ID:        rec.ID,
			Positions: e.ExtractSeq(rec.Seq, scratch, nil),
		}
	}
	return out
}
