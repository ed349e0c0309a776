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

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/shark"
	"github.com/shenwei356/shark/pipeline"
	"github.com/spf13/cobra"
)

// runOptions is the validated, typed view of RootCmd's flags for one run.
type runOptions struct {
	Reference      string
	Sample1        string
	Sample2        string
	Out1           string
	Out2           string
	K              int
	C              float64
	BFSizeKiB      int
	MinBaseQuality int
	OnlySingle     bool
	Threads        int
	MethodName     string
	Method         shark.ScoreMethod
	NHash          int
	Verbose        bool
	Paired         bool
}

func parseRunOptions(cmd *cobra.Command) *runOptions {
	o := &runOptions{
		Reference:      getFlagString(cmd, "reference"),
		Sample1:        getFlagString(cmd, "sample1"),
		Sample2:        getFlagString(cmd, "sample2"),
		Out1:           getFlagString(cmd, "out1"),
		Out2:           getFlagString(cmd, "out2"),
		K:              getFlagPositiveInt(cmd, "k"),
		C:              getFlagFloat64(cmd, "c"),
		BFSizeKiB:      getFlagPositiveInt(cmd, "bf-size"),
		MinBaseQuality: getFlagInt(cmd, "min-base-quality"),
		OnlySingle:     getFlagBool(cmd, "single"),
		Threads:        getFlagPositiveInt(cmd, "threads"),
		MethodName:     getFlagString(cmd, "method"),
		NHash:          getFlagPositiveInt(cmd, "xxhash"),
		Verbose:        getFlagBool(cmd, "verbose"),
	}

	if o.Reference == "" {
		checkError(fmt.Errorf("flag -r/--reference is required"))
	}
	if o.Sample1 == "" {
		checkError(fmt.Errorf("flag -1/--sample1 is required"))
	}
	if o.K < 1 || o.K > shark.MaxK {
		checkError(fmt.Errorf("value of -k/--k must be in [1,%d], got %d", shark.MaxK, o.K))
	}
	if o.C < 0 || o.C > 1 {
		checkError(fmt.Errorf("value of -c/--c must be in [0,1], got %f", o.C))
	}
	if o.MinBaseQuality < 0 {
		checkError(fmt.Errorf("value of -Q/--min-base-quality must be non-negative"))
	}
	switch o.MethodName {
	case "base":
		o.Method = shark.ScoreByBase
	case "kmer":
		o.Method = shark.ScoreByKmer
	default:
		checkError(fmt.Errorf(`value of -m/--method must be "base" or "kmer", got %q`, o.MethodName))
	}
	o.Paired = o.Sample2 != ""

	return o
}

func runShark(cmd *cobra.Command, args []string) {
	start := time.Now()
	opt := parseRunOptions(cmd)
	runtime.GOMAXPROCS(opt.Threads)
	seq.ValidateSeq = false

	if opt.Verbose {
		log.Infof("k=%d c=%.3f method=%s n_hash=%d bf-size=%dKiB threads=%d",
			opt.K, opt.C, opt.MethodName, opt.NHash, opt.BFSizeKiB, opt.Threads)
		log.Info("checking input files ...")
	}

	toCheck := []string{opt.Reference, opt.Sample1}
	if opt.Paired {
		toCheck = append(toCheck, opt.Sample2)
	}
	checkFiles(toCheck...)

	records := loadReference(opt)
	if opt.Verbose {
		log.Infof("loaded %d reference gene(s), elapsed %s", len(records), humanize.RelTime(start, time.Now(), "", ""))
	}

	bRoot := uint64(opt.BFSizeKiB) * 1024 * 8
	builder, err := shark.NewIndexBuilder(opt.K, opt.NHash, bRoot, opt.Threads)
	checkError(err)
	tree, err := builder.Build(records)
	checkError(err)
	if opt.Verbose {
		log.Infof("built SBT: root size %s bits over %d genes, elapsed %s",
			humanize.Comma(int64(tree.N)), len(tree.Leaves), humanize.RelTime(start, time.Now(), "", ""))
	}

	geneNames := make([]string, len(records))
	for i, r := range records {
		geneNames[i] = r.ID
	}

	classifier, err := shark.NewReadClassifier(tree, opt.K, opt.C, opt.Method, opt.OnlySingle)
	checkError(err)

	classifySample(opt, classifier, tree, geneNames, start)
}

// loadReference reads every record of the reference FASTA into memory up
// front, per indexbuilder.go's "pre-loaded records" scope decision (see
// DESIGN.md): gene panels are the smaller of this tool's two inputs.
func loadReference(opt *runOptions) []shark.SeqRecord {
	reader, err := fastx.NewDefaultReader(opt.Reference)
	checkError(errors.Wrap(err, opt.Reference))

	var records []shark.SeqRecord
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			checkError(errors.Wrap(err, opt.Reference))
		}
		records = append(records, shark.SeqRecord{
			ID:  string(record.ID),
			Seq: append([]byte(nil), record.Seq.Seq...),
		})
	}
	if len(records) == 0 {
		checkError(fmt.Errorf("no reference records found in %s", opt.Reference))
	}
	return records
}

// maskLowQuality replaces every base whose Phred+33 quality is below minQ
// with 'N', converting it to a BREAK for the k-mer codec. Returns seq
// unmodified (no copy) when minQ <= 0 or qual is empty; otherwise it
// returns a masked copy.
func maskLowQuality(seq, qual []byte, minQ int) []byte {
	if minQ <= 0 || len(qual) == 0 {
		return seq
	}
	masked := append([]byte(nil), seq...)
	for i, q := range qual {
		if i >= len(masked) {
			break
		}
		if int(q)-33 < minQ {
			masked[i] = 'N'
		}
	}
	return masked
}

func writeFastqRecord(w *bufio.Writer, id string, seq, qual []byte) {
	w.WriteByte('@')
	w.WriteString(id)
	w.WriteByte('\n')
	w.Write(seq)
	w.WriteString("\n+\n")
	w.Write(qual)
	w.WriteByte('\n')
}

// maxFPR estimates, via the standard Hoeffding-style tail bound, the
// probability that pure false-positive k-mer hits alone could push a read's
// coverage over the c threshold, given a single Bloom filter's per-k-mer
// false-positive rate p and a read contributing l k-mers. Diagnostic only
// (verbose logging); it never changes accept/reject behavior, which is
// exactly classifier.go's coverage scoring.
func maxFPR(p, c float64, l int) float64 {
	if l <= 0 || p <= 0 || p >= 1 {
		return 0
	}
	return math.Exp(-float64(l) * (c - p) * (c - p) / 2 / (1 - p))
}

// bloomFPREstimate approximates a leaf filter's false-positive rate from
// its bit count, the configured hash count, and a representative number of
// k-mers stored in it (the standard (1 - e^{-kn/m})^k formula).
func bloomFPREstimate(leafSizeBits uint64, nHash int, kmersPerLeaf float64) float64 {
	if leafSizeBits == 0 {
		return 0
	}
	exponent := -float64(nHash) * kmersPerLeaf / float64(leafSizeBits)
	return math.Pow(1-math.Exp(exponent), float64(nHash))
}

type readItem struct {
	rec1, rec2 *fastq.FastQ
}

type classifyResult struct {
	rec1, rec2 *fastq.FastQ
	genes      []int
}

// classifySample streams sample1 (and sample2, if paired) through the
// bounded pipeline, classifying each read (or read pair) and writing every
// matched record to out1 (and out2), suffixed by its matched gene's name,
// in input order.
func classifySample(opt *runOptions, classifier *shark.ReadClassifier, tree *shark.SBT, geneNames []string, start time.Time) {
	r1, err := fastq.NewReader(opt.Sample1)
	checkError(errors.Wrap(err, opt.Sample1))

	var r2 *fastq.Reader
	if opt.Paired {
		r2, err = fastq.NewReader(opt.Sample2)
		checkError(errors.Wrap(err, opt.Sample2))
	}

	out1fh, gw1, w1, err := outStream(opt.Out1, false)
	checkError(err)
	defer func() {
		out1fh.Flush()
		if gw1 != nil {
			gw1.Close()
		}
		w1.Close()
	}()

	var out2fh *bufio.Writer
	var gw2 io.WriteCloser
	var w2 *os.File
	if opt.Paired {
		out2fh, gw2, w2, err = outStream(opt.Out2, false)
		checkError(err)
		defer func() {
			out2fh.Flush()
			if gw2 != nil {
				gw2.Close()
			}
			w2.Close()
		}()
	}

	scratchPool := &sync.Pool{
		New: func() interface{} { return shark.NewClassifyScratch(opt.NHash) },
	}

	var nReads, nMatched int
	var totalLen int64

	split := func() (interface{}, bool, error) {
		rec1, err := r1.Read()
		if err != nil {
			if err == io.EOF {
				return nil, true, nil
			}
			return nil, false, errors.Wrap(err, opt.Sample1)
		}
		var rec2 *fastq.FastQ
		if opt.Paired {
			rec2, err = r2.Read()
			if err != nil {
				if err == io.EOF {
					return nil, false, errors.Errorf("sample2 ended before sample1: %s", opt.Sample2)
				}
				return nil, false, errors.Wrap(err, opt.Sample2)
			}
		}
		return readItem{rec1: rec1, rec2: rec2}, false, nil
	}

	mapFn := func(it interface{}) (interface{}, error) {
		item := it.(readItem)
		scratch := scratchPool.Get().(*shark.ClassifyScratch)
		defer scratchPool.Put(scratch)

		seq1 := maskLowQuality(item.rec1.Seq, item.rec1.Qual, opt.MinBaseQuality)
		var genes []int
		if opt.Paired {
			seq2 := maskLowQuality(item.rec2.Seq, item.rec2.Qual, opt.MinBaseQuality)
			genes = classifier.ClassifyPair(seq1, seq2, scratch)
		} else {
			genes = classifier.ClassifyRead(seq1, scratch)
		}
		// genes aliases scratch's own best-gene buffer; copy it out since
		// scratch is about to be returned to the pool for reuse.
		out := append([]int(nil), genes...)
		return classifyResult{rec1: item.rec1, rec2: item.rec2, genes: out}, nil
	}

	reduce := func(r interface{}) error {
		res := r.(classifyResult)
		nReads++
		totalLen += int64(len(res.rec1.Seq))
		if len(res.genes) == 0 {
			return nil
		}
		nMatched++
		for _, g := range res.genes {
			name := fmt.Sprintf("%s_%s", string(res.rec1.ID), geneNames[g])
			writeFastqRecord(out1fh, name, res.rec1.Seq, res.rec1.Qual)
			if opt.Paired {
				writeFastqRecord(out2fh, name, res.rec2.Seq, res.rec2.Qual)
			}
		}
		return nil
	}

	checkError(pipeline.Run(opt.Threads, split, mapFn, reduce))

	if opt.Verbose {
		var avgLen float64
		if nReads > 0 {
			avgLen = float64(totalLen) / float64(nReads)
		}
		var leafBits uint64
		if len(tree.Leaves) > 0 {
			leafBits = tree.Leaves[0].Size
		}
		fpr := bloomFPREstimate(leafBits, opt.NHash, avgLen)
		diag := maxFPR(fpr, opt.C, int(avgLen)-opt.K+1)
		log.Infof("processed %d reads, %d matched, elapsed %s", nReads, nMatched, humanize.RelTime(start, time.Now(), "", ""))
		log.Infof("diagnostic: estimated leaf FPR %.3g, false-positive-driven-acceptance probability ~%.3g (avg read length %.1f)", fpr, diag, avgLen)
	}
}
