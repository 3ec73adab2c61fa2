// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package store

import "github.com/crimson-osd/crimson/proto"

// pageSlice is one core's shard of an object's sparse page storage
// (spec §3). Every method here must only ever run on its owning core's
// goroutine — callers reach it through corepool.SubmitWait, never
// directly — so it needs no internal locking.
type pageSlice struct {
	pages map[uint64]*page
}

func newPageSlice() *pageSlice {
	return &pageSlice{pages: make(map[uint64]*page)}
}

// pageCount reports how many pages this slice currently holds
// (used by tests that inspect per-core residency, spec scenario S3).
func (s *pageSlice) pageCount() int { return len(s.pages) }

// writeRuns applies the given page-level runs, copying from data
// (indexed by each run's dataOffset, relative to the caller's
// original write buffer) into the page cache, creating pages on
// demand and copy-on-writing shared ones (spec §4.2 write algorithm).
func (s *pageSlice) writeRuns(runs []pageRun, data []byte) {
	for _, r := range runs {
		p, ok := s.pages[r.pageIndex]
		if !ok {
			p = newPage(r.pageIndex)
			s.pages[r.pageIndex] = p
		} else if p.shared() {
			np := p.copy()
			p.refs.Add(-1)
			s.pages[r.pageIndex] = np
			p = np
		}
		copy(p.buf[r.pageOffset:r.pageOffset+r.length], data[r.dataOffset:r.dataOffset+r.length])
	}
}

// readRuns builds the Iovec segments this slice owns intersecting the
// given page-level runs, sharing each page zero-copy (spec §4.2 read
// algorithm). absoluteOffset maps each run to the absolute byte offset
// of its first byte and is called once per run, in order, holes included.
func (s *pageSlice) readRuns(runs []pageRun, absoluteOffset func(pageRun) uint64) *Iovec {
	iov := &Iovec{}
	for _, r := range runs {
		off := absoluteOffset(r)
		p, ok := s.pages[r.pageIndex]
		if !ok {
			continue // hole
		}
		ref := retain(p)
		iov.add(off, p.buf[r.pageOffset:r.pageOffset+r.length], ref)
	}
	return iov
}

// holePunchRuns erases whole pages fully covered by the runs, and
// copy-on-write zero-fills the overlapping sub-region of any partially
// covered boundary page (spec §4.2 hole-punch algorithm). Erase happens
// before zero-fill so a concurrent reader observes either the fully
// old page or the fully new (zeroed) region, never a torn mix across
// the erase point.
func (s *pageSlice) holePunchRuns(runs []pageRun) {
	for _, r := range runs {
		if r.length == proto.PageSize {
			delete(s.pages, r.pageIndex)
		}
	}
	for _, r := range runs {
		if r.length == proto.PageSize {
			continue
		}
		p, ok := s.pages[r.pageIndex]
		if !ok {
			continue // already a hole
		}
		if p.shared() {
			np := p.copy()
			p.refs.Add(-1)
			s.pages[r.pageIndex] = np
			p = np
		}
		for i := r.pageOffset; i < r.pageOffset+r.length; i++ {
			p.buf[i] = 0
		}
	}
}
