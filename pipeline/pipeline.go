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

// Package pipeline implements the bounded three-stage split -> map -> reduce
// runtime shared by index construction and read classification: a
// serial-in-order splitter, a parallel map stage, and a serial-in-order
// reducer, with backpressure keeping at most `tokens` items in flight at
// once end to end.
package pipeline

import "sync"

// Splitter produces the next item to process, one at a time and strictly
// in order. It returns done=true (with a zero item) once input is
// exhausted; a non-nil error aborts the whole pipeline.
type Splitter func() (item interface{}, done bool, err error)

// Mapper transforms one item. The runtime may invoke Mapper concurrently
// across different items; it makes no ordering guarantee among them.
type Mapper func(item interface{}) (interface{}, error)

// Reducer consumes mapped results strictly in the splitter's original
// order, one at a time, never concurrently.
type Reducer func(result interface{}) error

// job pairs an item with the sequence number the splitter assigned it, so
// the reduce stage can restore that order after out-of-order map execution.
type job struct {
	seq   uint64
	value interface{}
}

type mapped struct {
	seq   uint64
	value interface{}
	err   error
}

// Run drives split -> map -> reduce to completion and returns the first
// error encountered, from either stage. tokens bounds how many items may be
// outstanding — acquired before the splitter produces an item, released
// only once that item has been reduced — so the splitter is backpressured
// by the slowest stage, not just by the map stage's concurrency.
func Run(tokens int, split Splitter, mapFn Mapper, reduce Reducer) error {
	if tokens < 1 {
		tokens = 1
	}

	in := make(chan job, tokens)
	out := make(chan mapped, tokens)
	tokenCh := make(chan struct{}, tokens)

	var splitErr error
	go func() {
		defer close(in)
		var seq uint64
		for {
			tokenCh <- struct{}{}
			item, done, err := split()
			if err != nil {
				splitErr = err
				<-tokenCh
				return
			}
			if done {
				<-tokenCh
				return
			}
			in <- job{seq: seq, value: item}
			seq++
		}
	}()

	go func() {
		var wg sync.WaitGroup
		for j := range in {
			wg.Add(1)
			go func(j job) {
				defer wg.Done()
				v, err := mapFn(j.value)
				out <- mapped{seq: j.seq, value: v, err: err}
			}(j)
		}
		wg.Wait()
		close(out)
	}()

	pending := make(map[uint64]mapped)
	var next uint64
	var reduceErr error
	for m := range out {
		pending[m.seq] = m
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			switch {
			case reduceErr != nil:
			case r.err != nil:
				reduceErr = r.err
			default:
				if err := reduce(r.value); err != nil {
					reduceErr = err
				}
			}
			<-tokenCh
		}
	}

	if splitErr != nil {
		return splitErr
	}
	return reduceErr
}
