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

import "sort"

// ioSegment is one contiguous, present run of bytes within an Iovec.
// A PageRef is non-nil when the bytes are a zero-copy share of a page;
// it is nil for data the Iovec owns directly (e.g. a caller's write
// buffer, or a materialized copy).
type ioSegment struct {
	offset uint64
	data   []byte
	ref    *PageRef
}

// Iovec is the hole-aware ordered offset->buffer mapping that is the
// canonical bulk-data carrier in and out of the store (spec §3). Gaps
// between segments, and the space before the first or after the last,
// are holes: logical zeros that were never materialized.
type Iovec struct {
	segments []ioSegment
}

// add inserts a segment; callers are expected to add in ascending,
// non-overlapping offset order (every producer in this package does).
func (v *Iovec) add(offset uint64, data []byte, ref *PageRef) {
	v.segments = append(v.segments, ioSegment{offset: offset, data: data, ref: ref})
}

// mergeIovecs combines several per-core Iovecs (each already ordered) into a
// single ordered Iovec, the way PageSet.Read joins its fan-out results.
func mergeIovecs(parts []*Iovec) *Iovec {
	out := &Iovec{}
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.segments = append(out.segments, p.segments...)
	}
	sort.Slice(out.segments, func(i, j int) bool {
		return out.segments[i].offset < out.segments[j].offset
	})
	return out
}

// Materialize copies the covered range [offset, offset+length) into a
// single contiguous buffer, filling holes with zeros (spec §4.2: "callers
// must fill them themselves"). This is what the wire dispatcher sends
// back as OsdReadRes.Data.
func (v *Iovec) Materialize(offset, length uint64) []byte {
	out := make([]byte, length)
	end := offset + length
	for _, seg := range v.segments {
		segEnd := seg.offset + uint64(len(seg.data))
		if segEnd <= offset || seg.offset >= end {
			continue
		}
		lo := seg.offset
		if lo < offset {
			lo = offset
		}
		hi := segEnd
		if hi > end {
			hi = end
		}
		copy(out[lo-offset:hi-offset], seg.data[lo-seg.offset:hi-seg.offset])
	}
	return out
}

// Release returns every page share held by this Iovec's segments to
// the page cache. Safe to call once the caller is done reading the
// materialized or zero-copy bytes.
func (v *Iovec) Release() {
	for _, seg := range v.segments {
		if seg.ref != nil {
			seg.ref.Release()
		}
	}
}
