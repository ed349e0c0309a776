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

import "testing"

func countKmers(seqLen, k int) int {
	if seqLen < k {
		return 0
	}
	return seqLen - k + 1
}

func TestExtractSeqCountMatchesLength(t *testing.T) {
	ext, err := NewKmerExtractor(4, 2, 1024)
	if err != nil {
		t.Fatal(err)
	}
	seq := []byte("ACGTACGTACGT")
	scratch := make([]uint64, ext.NHash)
	positions := ext.ExtractSeq(seq, scratch, nil)

	want := countKmers(len(seq), ext.K) * ext.NHash
	if len(positions) != want {
		t.Errorf("got %d positions, want %d", len(positions), want)
	}
}

func TestExtractSeqShorterThanKIsEmpty(t *testing.T) {
	ext, _ := NewKmerExtractor(10, 1, 256)
	scratch := make([]uint64, ext.NHash)
	positions := ext.ExtractSeq([]byte("ACGT"), scratch, nil)
	if len(positions) != 0 {
		t.Errorf("expected no positions for a sequence shorter than k, got %d", len(positions))
	}
}

func TestExtractSeqBreakDoesNotStopExtraction(t *testing.T) {
	ext, _ := NewKmerExtractor(4, 1, 256)
	scratch := make([]uint64, ext.NHash)

	// "ACGT" + break + "ACGTACGT": first window yields 1 kmer, second
	// (8 bases) yields 5 kmers.
	seq := []byte("ACGTNACGTACGT")
	positions := ext.ExtractSeq(seq, scratch, nil)

	want := (countKmers(4, 4) + countKmers(8, 4))
	if len(positions) != want {
		t.Errorf("got %d kmers worth of positions, want %d", len(positions), want)
	}
}

func TestExtractSeqDuplicatesPreserved(t *testing.T) {
	ext, _ := NewKmerExtractor(4, 1, 256)
	scratch := make([]uint64, ext.NHash)

	// a repeating sequence produces the same canonical kmer more than once;
	// all occurrences must appear in the output, not be deduplicated.
	seq := []byte("ACGTACGTACGTACGT")
	positions := ext.ExtractSeq(seq, scratch, nil)

	want := countKmers(len(seq), ext.K)
	if len(positions) != want {
		t.Errorf("got %d positions, want %d (one per kmer occurrence)", len(positions), want)
	}
}

func TestExtractSeqRollingMatchesRebuild(t *testing.T) {
	ext, _ := NewKmerExtractor(5, 3, 1<<16)
	scratch := make([]uint64, ext.NHash)
	seq := []byte("ACGTTGCAACGTTGCAACGTTGCA")

	rolled := ext.ExtractSeq(seq, scratch, nil)

	// rebuild independently via BuildKmer at every offset to cross-check
	// the rolling AppendRight/PrependLeft update against the non-rolling
	// primitive.
	var rebuilt []uint64
	rebuildScratch := make([]uint64, ext.NHash)
	for i := 0; i+ext.K <= len(seq); i++ {
		kmer, _, ok := BuildKmer(seq[i:], 0, ext.K)
		if !ok {
			t.Fatalf("expected a valid kmer at offset %d", i)
		}
		canon := Canonical(kmer, ext.K)
		rebuilt = append(rebuilt, ComputeHashes(canon, ext.NHash, ext.FilterSize, rebuildScratch)...)
	}

	if len(rolled) != len(rebuilt) {
		t.Fatalf("length mismatch: rolled=%d rebuilt=%d", len(rolled), len(rebuilt))
	}
	for i := range rolled {
		if rolled[i] != rebuilt[i] {
			t.Errorf("position %d mismatch: rolled=%d rebuilt=%d", i, rolled[i], rebuilt[i])
		}
	}
}

func TestExtractBatchPreservesOrderAndIDs(t *testing.T) {
	ext, _ := NewKmerExtractor(4, 1, 256)
	batch := []SeqRecord{
		{ID: "gene1", Seq: []byte("ACGTACGT")},
		{ID: "gene2", Seq: []byte("TTTT")},
		{ID: "gene3", Seq: []byte("AC")},
	}
	out := ext.ExtractBatch(batch)
	if len(out) != len(batch) {
		t.Fatalf("got %d records, want %d", len(out), len(batch))
	}
	for i, rec := range out {
		if rec.ID != batch[i].ID {
			t.Errorf("record %d: got id %s, want %s", i, rec.ID, batch[i].ID)
		}
	}
	if len(out[2].Positions) != 0 {
		t.Errorf("gene3 is shorter than k, expected no positions")
	}
}

func TestNewKmerExtractorValidatesK(t *testing.T) {
	if _, err := NewKmerExtractor(0, 1, 256); err == nil {
		t.Error("expected error for k=0")
	}
	if _, err := NewKmerExtractor(MaxK+1, 1, 256); err == nil {
		t.Error("expected error for k > MaxK")
	}
	if _, err := NewKmerExtractor(4, 0, 256); err == nil {
		t.Error("expected error for n_hash=0")
	}
}
