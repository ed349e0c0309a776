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

// MaxHashCount bounds n_hash; seeds beyond this index would repeat since
// hashSeeds is a fixed table.
const MaxHashCount = 16

// hashSeeds are fixed odd 64-bit constants, one per hash position, mixed
// into the k-mer before finalizing. Golden-ratio-derived odd multipliers
// keep each seed well spread across the word.
var hashSeeds = func() [MaxHashCount]uint64 {
	var seeds [MaxHashCount]uint64
	seed := uint64(0x9e3779b97f4a7c15)
	for i := range seeds {
		seed += 0x9e3779b97f4a7c15
		seeds[i] = seed | 1
	}
	return seeds
}()

// hash64 is the 64-bit avalanche finalizer, reused from unikmer's own
// hashing helper (https://gist.github.com/badboy/6267743).
func hash64(key uint64) uint64 {
	key = (^key) + (key << 21) // key = (key << 21) - key - 1
	key = key ^ (key >> 24)
	key = (key + (key << 3)) + (key << 8) // key * 265
	key = key ^ (key >> 14)
	key = (key + (key << 2)) + (key << 4) // key * 21
	key = key ^ (key >> 28)
	key = key + (key << 31)
	return key
}

// ComputeHashes fills scratch (len(scratch) must equal nHash) with nHash
// independent positions of kmer in [0, filterSize), reusing scratch to avoid
// allocation on the hot path. filterSize must be a power of two (the root
// filter size is always rounded to one, see shark/cmd/root.go), so masking
// the low bits of the finalized hash is uniform for any power-of-two suffix
// of filterSize, which is what the pruning lookup in sbt.go relies on.
func ComputeHashes(kmer uint64, nHash int, filterSize uint64, scratch []uint64) []uint64 {
	mask := filterSize - 1
	for i := 0; i < nHash; i++ {
		h := hash64(kmer ^ hashSeeds[i%MaxHashCount])
		scratch[i] = h & mask
	}
	return scratch[:nHash]
}
