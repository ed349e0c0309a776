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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// VERSION is the tool's release tag, printed in the root command's long help.
const VERSION = "0.1.0"

// RootCmd is shark's entire CLI surface: one operation (classify a sample
// against a reference gene panel), so unlike unikmer's multi-verb tree this
// registers its flags directly rather than delegating to subcommands.
var RootCmd = &cobra.Command{
	Use:   "shark",
	Short: "Mapping-free filtering of RNA-Seq reads against a gene panel",
	Long: fmt.Sprintf(`shark - mapping-free filtering of RNA-Seq reads

Builds a Sequence Bloom Tree from a reference FASTA of gene transcripts,
then classifies FASTQ sample reads (optionally paired) against it by
k-mer coverage, writing the reads that clear the confidence threshold to
per-gene-labelled output FASTQ stream(s).

Version: %s

Author: Wei Shen <shenwei356@gmail.com>

`, VERSION),
	Run: runShark,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to happen
// once to RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}

func init() {
	RootCmd.Flags().StringP("reference", "r", "", "reference FASTA of gene transcripts (required)")
	RootCmd.Flags().StringP("sample1", "1", "", "sample FASTQ, first (or only) mate (required)")
	RootCmd.Flags().StringP("sample2", "2", "", "sample FASTQ, second mate; setting this enables paired mode")
	RootCmd.Flags().StringP("out1", "o", "sharked_sample.1", "output FASTQ path, first (or only) mate")
	RootCmd.Flags().StringP("out2", "O", "sharked_sample.2", "output FASTQ path, second mate")
	RootCmd.Flags().IntP("k", "k", 17, "k-mer size (1-31)")
	RootCmd.Flags().Float64P("c", "c", 0.6, "coverage confidence threshold, in [0,1]")
	// bf-size is a KiB count of root filter BITS: the effective root bit
	// budget is bf-size*1024*8, rounded down to the nearest power of two
	// by NewSBT.
	RootCmd.Flags().IntP("bf-size", "b", 1024, "root Bloom filter size, in KiB of bits")
	RootCmd.Flags().IntP("min-base-quality", "Q", 0, "Phred+33 minimum base quality; bases below this are masked out before k-mer extraction")
	RootCmd.Flags().BoolP("single", "s", false, "keep only reads with exactly one best-matching gene")
	RootCmd.Flags().IntP("threads", "j", 1, "worker count for the index and classify pipelines")
	RootCmd.Flags().StringP("method", "m", "base", `scoring method: "base" (covered-base count) or "kmer" (covered-kmer count)`)
	RootCmd.Flags().IntP("xxhash", "n", 1, "number of independent hash positions per k-mer")
	RootCmd.Flags().BoolP("verbose", "v", false, "print verbose progress information")
}

func getFlagString(cmd *cobra.Command, flag string) string {
	s, err := cmd.Flags().GetString(flag)
	checkError(err)
	return s
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	i, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return i
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	f, err := cmd.Flags().GetFloat64(flag)
	checkError(err)
	return f
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	b, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return b
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	i := getFlagInt(cmd, flag)
	if i <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be positive: %d", flag, i))
	}
	return i
}
