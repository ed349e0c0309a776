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

// BloomFilterNode is one node of the Sequence Bloom Tree: a word-packed bit
// vector plus the tree links needed for both construction and lookup.
//
// ID is the gene index on leaves and -1 on inner nodes. Support is true iff
// this node's size differs from half its parent's size (an undersized child
// paired with a larger sibling); a dynamic-mask descent shifts the mask one
// extra bit across such an edge (sbt.go).
type BloomFilterNode struct {
	Bits    []uint64
	Size    uint64
	Left    *BloomFilterNode
	Right   *BloomFilterNode
	Parent  *BloomFilterNode
	ID      int
	Support bool
}

// NewLeafNode creates a parentless leaf of the given size (must be a power
// of two) carrying gene id.
func NewLeafNode(size uint64, id int) *BloomFilterNode {
	return &BloomFilterNode{
		Bits: make([]uint64, (size+63)/64),
		Size: size,
		ID:   id,
	}
}

// NewInnerNode creates an inner node pairing left and right, sized
// 2*max(left.Size, right.Size), and links both children to it, setting
// their Support flags.
func NewInnerNode(left, right *BloomFilterNode) *BloomFilterNode {
	size := left.Size
	if right.Size > size {
		size = right.Size
	}
	size *= 2

	node := &BloomFilterNode{
		Bits: make([]uint64, (size+63)/64),
		Size: size,
		ID:   -1,
	}
	node.linkChildren(left, right)
	return node
}

func (n *BloomFilterNode) linkChildren(left, right *BloomFilterNode) {
	n.Left, n.Right = left, right
	left.Parent, right.Parent = n, n
	left.Support = n.Size/2 != left.Size
	right.Support = n.Size/2 != right.Size
}

// IsLeaf reports whether n has no children.
func (n *BloomFilterNode) IsLeaf() bool {
	return n.Left == nil && n.Right == nil
}

// SetBit sets bit pos (already masked to n.Size) to 1.
func (n *BloomFilterNode) SetBit(pos uint64) {
	n.Bits[pos>>6] |= 1 << (pos & 63)
}

// TestBit reports whether bit pos (already masked to n.Size) is set.
func (n *BloomFilterNode) TestBit(pos uint64) bool {
	return n.Bits[pos>>6]&(1<<(pos&63)) != 0
}

// Resize reallocates n's bit vector to newSize (zeroing it) and recurses
// into both children at newSize/2, stopping early wherever a node's size
// already matches. When NewSBT calls it on the root, it returns at once
// unless the bit budget is too small to give every leaf at least one bit.
func (n *BloomFilterNode) Resize(newSize uint64) {
	if n.Size == newSize {
		return
	}
	n.Size = newSize
	n.Bits = make([]uint64, (newSize+63)/64)
	if n.Left != nil {
		n.Left.Resize(newSize / 2)
	}
	if n.Right != nil {
		n.Right.Resize(newSize / 2)
	}
}

// SetBitWithAncestors sets bit (pos masked to this node's own size) on n and
// walks up through every ancestor, masking pos to each ancestor's own size
// in turn.
func (n *BloomFilterNode) SetBitWithAncestors(pos uint64) {
	for node := n; node != nil; node = node.Parent {
		node.SetBit(pos & (node.Size - 1))
	}
}
