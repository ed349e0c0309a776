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

func TestSetTestBit(t *testing.T) {
	n := NewLeafNode(64, 0)
	if n.TestBit(5) {
		t.Fatal("expected bit 5 unset initially")
	}
	n.SetBit(5)
	if !n.TestBit(5) {
		t.Error("expected bit 5 set")
	}
	if n.TestBit(6) {
		t.Error("expected bit 6 still unset")
	}
}

func TestNewInnerNodeSizeAndSupport(t *testing.T) {
	left := NewLeafNode(16, 0)
	right := NewLeafNode(16, 1)
	node := NewInnerNode(left, right)

	if node.Size != 32 {
		t.Errorf("got inner size %d, want 32", node.Size)
	}
	if left.Support || right.Support {
		t.Error("equal-size children should not be marked support")
	}
	if left.Parent != node || right.Parent != node {
		t.Error("children parent pointers not linked")
	}
	if node.IsLeaf() {
		t.Error("node with children should not report IsLeaf")
	}
	if !left.IsLeaf() || !right.IsLeaf() {
		t.Error("childless leaves should report IsLeaf")
	}
}

func TestNewInnerNodeUnequalSizesSupport(t *testing.T) {
	left := NewLeafNode(8, 0)
	right := NewLeafNode(32, 1)
	node := NewInnerNode(left, right)

	if node.Size != 64 {
		t.Errorf("got inner size %d, want 64", node.Size)
	}
	// parent.Size/2 == 32; left (8) != 32 so support, right (32) == 32 so not.
	if !left.Support {
		t.Error("expected undersized child to be marked support")
	}
	if right.Support {
		t.Error("expected right child matching half parent size to not be support")
	}
}

func TestResizeStopsWhenSizeMatches(t *testing.T) {
	leaf := NewLeafNode(16, 0)
	leaf.SetBit(3)
	leaf.Resize(16)
	if !leaf.TestBit(3) {
		t.Error("Resize to the same size must not clear existing bits")
	}
}

func TestResizeClearsAndRecurses(t *testing.T) {
	left := NewLeafNode(16, 0)
	right := NewLeafNode(16, 1)
	root := NewInnerNode(left, right)
	left.SetBit(3)

	root.Resize(128)
	if root.Size != 128 {
		t.Errorf("got root size %d, want 128", root.Size)
	}
	if left.Size != 64 || right.Size != 64 {
		t.Errorf("children not resized to half: left=%d right=%d", left.Size, right.Size)
	}
	if left.TestBit(3) {
		t.Error("Resize must clear bits when the size actually changes")
	}
}

func TestSetBitWithAncestorsPropagates(t *testing.T) {
	left := NewLeafNode(8, 0)
	right := NewLeafNode(8, 1)
	root := NewInnerNode(left, right)

	left.SetBitWithAncestors(3)

	if !left.TestBit(3) {
		t.Error("expected bit set on leaf")
	}
	if !root.TestBit(3 & (root.Size - 1)) {
		t.Error("expected bit set on root via ancestor walk")
	}
	if right.TestBit(3) {
		t.Error("sibling must not be affected")
	}
}
