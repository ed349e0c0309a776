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

import "errors"

// MaxK is the largest k-mer size this codec supports. 2*31 bits fit in a
// uint64 with two bits to spare.
const MaxK = 31

// ErrKOverflow means k is outside [1, MaxK].
var ErrKOverflow = errors.New("shark: k (1-31) overflow")

// ErrIllegalBase means a non-break byte did not decode to {0,1,2,3}; callers
// going through BuildKmer/EncodeBase never see this, since illegal bytes are
// reported as breaks rather than errors.
var ErrIllegalBase = errors.New("shark: illegal base")

// base2code maps ASCII bytes to their 2-bit code, -1 for anything else.
//
// Unlike unikmer.Encode, which folds IUPAC degenerate symbols (N, R, Y, ...)
// down to a single base, any byte other than A/C/G/T (either case) here is a
// BREAK: a hard restart of k-mer extraction, not a lossy approximation.
var base2code [256]int8

func init() {
	for i := range base2code {
		base2code[i] = -1
	}
	base2code['A'], base2code['a'] = 0, 0
	base2code['C'], base2code['c'] = 1, 1
	base2code['G'], base2code['g'] = 2, 2
	base2code['T'], base2code['t'] = 3, 3
}

// EncodeBase returns the 2-bit code of a base, or ok=false if b is a BREAK
// (any symbol other than A/C/G/T).
func EncodeBase(b byte) (code uint64, ok bool) {
	c := base2code[b]
	if c < 0 {
		return 0, false
	}
	return uint64(c), true
}

// Mask returns the bitmask covering the low 2*k bits.
func Mask(k int) uint64 {
	return (uint64(1) << uint(2*k)) - 1
}

// AppendRight shifts kmer left by one base and ORs in code, masked to 2k
// bits.
func AppendRight(kmer uint64, code uint64, k int) uint64 {
	return ((kmer << 2) | code) & Mask(k)
}

// PrependLeft shifts rc right by one base and ORs in complementCode at the
// top, used to roll the reverse complement in lock-step with AppendRight.
func PrependLeft(rc uint64, complementCode uint64, k int) uint64 {
	return (rc >> 2) | (complementCode << uint(2*(k-1)))
}

// ComplementCode returns the 2-bit complement of a base code (A<->T, C<->G).
func ComplementCode(code uint64) uint64 {
	return code ^ 3
}

// RevComp returns the reverse complement of a k-mer of length k.
func RevComp(kmer uint64, k int) uint64 {
	var rc uint64
	for i := 0; i < k; i++ {
		rc <<= 2
		rc |= (kmer & 3) ^ 3
		kmer >>= 2
	}
	return rc
}

// Canonical returns min(kmer, revcomp(kmer, k)).
func Canonical(kmer uint64, k int) uint64 {
	rc := RevComp(kmer, k)
	if rc < kmer {
		return rc
	}
	return kmer
}

var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// Decode renders a k-mer code back into bases, most-significant (leftmost)
// base first.
func Decode(kmer uint64, k int) []byte {
	out := make([]byte, k)
	for i := 0; i < k; i++ {
		out[k-1-i] = bit2base[kmer&3]
		kmer >>= 2
	}
	return out
}

// BuildKmer scans seq starting at pos, restarting on any BREAK byte, and
// returns the first fully-valid k-mer found together with the position of
// its rightmost base. ok is false if no further k-mer fits in seq.
//
// extractor.go's rolling update must stay exactly consistent with this.
func BuildKmer(seq []byte, pos int, k int) (kmer uint64, end int, ok bool) {
	n := len(seq)
	for pos+k <= n {
		var code uint64
		valid := true
		for i := 0; i < k; i++ {
			c, isBase := EncodeBase(seq[pos+i])
			if !isBase {
				pos = pos + i + 1
				valid = false
				break
			}
			code = AppendRight(code, c, k)
		}
		if valid {
			return code, pos + k - 1, true
		}
	}
	return 0, 0, false
}

// KmerCode pairs a k-mer's 2-bit code with the k it was encoded at.
type KmerCode struct {
	Code uint64
	K    int
}

// Canonical returns the canonical form of kcode.
func (kcode KmerCode) Canonical() KmerCode {
	return KmerCode{Canonical(kcode.Code, kcode.K), kcode.K}
}

// RevComp returns the reverse complement of kcode.
func (kcode KmerCode) RevComp() KmerCode {
	return KmerCode{RevComp(kcode.Code, kcode.K), kcode.K}
}

// Equal reports whether two KmerCodes have the same k and code.
func (kcode KmerCode) Equal(kcode2 KmerCode) bool {
	return kcode.K == kcode2.K && kcode.Code == kcode2.Code
}

// Bytes renders kcode back into bases.
func (kcode KmerCode) Bytes() []byte {
	return Decode(kcode.Code, kcode.K)
}

// String renders kcode back into bases.
func (kcode KmerCode) String() string {
	return string(kcode.Bytes())
}
