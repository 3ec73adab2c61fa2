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

import (
	"sync/atomic"

	"github.com/crimson-osd/crimson/proto"
)

// page is a single fixed-size (proto.PageSize) unit of page-cache
// storage. refs tracks how many holders are pointing at this exact
// buffer: 1 for the owning PageSlice's map entry, plus 1 for every
// outstanding PageRef a reader holds. A writer must copy-on-write
// whenever refs > 1 (spec I5) rather than mutate buf directly.
type page struct {
	index uint64
	buf   []byte
	refs  atomic.Int32
}

func newPage(index uint64) *page {
	p := &page{index: index, buf: make([]byte, proto.PageSize)}
	p.refs.Store(1) // the map's own hold
	return p
}

// shared reports whether anything beyond the map's own hold is
// pointing at this page.
func (p *page) shared() bool { return p.refs.Load() > 1 }

// copy allocates a fresh page with the same index and contents,
// carrying a single (the map's) hold.
func (p *page) copy() *page {
	np := newPage(p.index)
	copy(np.buf, p.buf)
	return np
}

// PageRef is an externally held, shared-ownership handle to one page's
// bytes (spec §3 Iovec / Invariant I3). It must be released exactly
// once; the underlying bytes remain valid to read until then, even if
// the object is concurrently written or removed.
type PageRef struct {
	page     *page
	released atomic.Bool
}

// Bytes returns the full 64 KiB page content. Do not retain the slice
// past Release.
func (r *PageRef) Bytes() []byte { return r.page.buf }

// Release drops this holder's claim on the page. Safe to call more
// than once; only the first call has effect.
func (r *PageRef) Release() {
	if r.released.CompareAndSwap(false, true) {
		r.page.refs.Add(-1)
	}
}

func retain(p *page) *PageRef {
	p.refs.Add(1)
	return &PageRef{page: p}
}
