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

func buildClassifier(t *testing.T, genes [][]byte, k int, c float64, method ScoreMethod, onlySingle bool) *ReadClassifier {
	t.Helper()
	sbt, _ := buildSBT(t, genes, k, 3, 4096)
	rc, err := NewReadClassifier(sbt, k, c, method, onlySingle)
	if err != nil {
		t.Fatalf("NewReadClassifier: %v", err)
	}
	return rc
}

func TestClassifyReadFindsContainingGene(t *testing.T) {
	genes := [][]byte{
		[]byte("ACGTACGGTTCAGTCAACTGGTCAACTGGTCA"),
		[]byte("TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAA"),
		[]byte("GATTACAGATTACAGATTACAGATTACAGATT"),
	}
	rc := buildClassifier(t, genes, 10, 0.5, ScoreByBase, false)
	scratch := NewClassifyScratch(3)

	read := genes[1][:20]
	got := rc.ClassifyRead(read, scratch)
	if len(got) == 0 {
		t.Fatal("expected at least one classified gene")
	}
	found := false
	for _, id := range got {
		if id == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("gene 1 not among classified genes: %v", got)
	}
}

func TestClassifyReadBelowThresholdIsDropped(t *testing.T) {
	genes := [][]byte{
		[]byte("ACGTACGGTTCAGTCAACTGGTCAACTGGTCA"),
		[]byte("TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAA"),
	}
	// An unreasonably high threshold can never be met.
	rc := buildClassifier(t, genes, 10, 1.5, ScoreByBase, false)
	scratch := NewClassifyScratch(3)

	got := rc.ClassifyRead(genes[0], scratch)
	if got != nil {
		t.Errorf("expected no genes to clear an unreachable threshold, got %v", got)
	}
}

func TestClassifyReadTooShortIsDropped(t *testing.T) {
	genes := [][]byte{
		[]byte("ACGTACGGTTCAGTCAACTGGTCAACTGGTCA"),
	}
	rc := buildClassifier(t, genes, 20, 0.1, ScoreByBase, false)
	scratch := NewClassifyScratch(3)

	got := rc.ClassifyRead([]byte("ACGT"), scratch)
	if got != nil {
		t.Errorf("expected a too-short read to classify to nothing, got %v", got)
	}
}

func TestClassifyReadOnlySingleDropsTies(t *testing.T) {
	gene := []byte("ACGTACGGTTCAGTCAACTGGTCAACTGGTCA")
	// Two identical genes always tie.
	genes := [][]byte{gene, append([]byte(nil), gene...)}
	scratch := NewClassifyScratch(3)

	withTies := buildClassifier(t, genes, 10, 0.5, ScoreByBase, false)
	got := withTies.ClassifyRead(gene, scratch)
	if len(got) != 2 {
		t.Fatalf("expected both tied genes without OnlySingle, got %v", got)
	}

	onlySingle := buildClassifier(t, genes, 10, 0.5, ScoreByBase, true)
	scratch2 := NewClassifyScratch(3)
	got2 := onlySingle.ClassifyRead(gene, scratch2)
	if got2 != nil {
		t.Errorf("expected OnlySingle to drop a tied read, got %v", got2)
	}
}

func TestClassifyReadKmerMethodScoresByKmerCount(t *testing.T) {
	genes := [][]byte{
		[]byte("ACGTACGGTTCAGTCAACTGGTCAACTGGTCA"),
		[]byte("TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAA"),
	}
	rc := buildClassifier(t, genes, 10, 0.5, ScoreByKmer, false)
	scratch := NewClassifyScratch(3)

	got := rc.ClassifyRead(genes[0], scratch)
	found := false
	for _, id := range got {
		if id == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected gene 0 among kmer-method winners, got %v", got)
	}
}

func TestClassifyPairUnionsCoverageAcrossMates(t *testing.T) {
	geneA := []byte("ACGTACGGTTCAGTCAACTGGTCAACTGGTCA")
	geneB := []byte("TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAA")
	genes := [][]byte{geneA, geneB}
	rc := buildClassifier(t, genes, 10, 0.9, ScoreByBase, false)
	scratch := NewClassifyScratch(3)

	half := len(geneA) / 2
	mate1 := geneA[:half+9] // overlapping halves; the pair is scored against both mates' combined length
	mate2 := geneA[half:]

	single := rc.ClassifyRead(mate1, scratch)
	_ = single

	got := rc.ClassifyPair(mate1, mate2, scratch)
	found := false
	for _, id := range got {
		if id == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected gene 0 to clear the joint threshold across both mates, got %v", got)
	}
}

func TestClassifyScratchReusedAcrossReads(t *testing.T) {
	genes := [][]byte{
		[]byte("ACGTACGGTTCAGTCAACTGGTCAACTGGTCA"),
		[]byte("TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAA"),
	}
	rc := buildClassifier(t, genes, 10, 0.5, ScoreByBase, false)
	scratch := NewClassifyScratch(3)

	first := rc.ClassifyRead(genes[0], scratch)
	if len(first) == 0 {
		t.Fatal("expected gene 0 read to classify")
	}
	second := rc.ClassifyRead(genes[1], scratch)
	for _, id := range second {
		if id == 0 {
			t.Errorf("stale coverage from previous read leaked into this classification: %v", second)
		}
	}
}

func TestNewReadClassifierValidates(t *testing.T) {
	sbt, _ := buildSBT(t, [][]byte{[]byte("ACGTACGTACGTACGT")}, 8, 2, 256)
	if _, err := NewReadClassifier(nil, 8, 0.5, ScoreByBase, false); err == nil {
		t.Error("expected error for nil tree")
	}
	if _, err := NewReadClassifier(sbt, 0, 0.5, ScoreByBase, false); err == nil {
		t.Error("expected error for invalid k")
	}
	if _, err := NewReadClassifier(sbt, 8, -1, ScoreByBase, false); err == nil {
		t.Error("expected error for negative threshold")
	}
}
