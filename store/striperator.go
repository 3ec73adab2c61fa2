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

const stripeBytes = uint64(proto.PageSize * proto.StripeWidth)

// stripeRun is one contiguous sub-range of a byte range that falls
// entirely within a single stripe, and therefore belongs to one core.
type stripeRun struct {
	core   int
	offset uint64
	length uint64
}

// stripeCore returns the core that owns the stripe containing offset
// (spec §4.2: "byte range [k*P*W, (k+1)*P*W) belongs to core k mod C").
func stripeCore(offset uint64, cores int) int {
	stripeIndex := offset / stripeBytes
	return int(stripeIndex % uint64(cores))
}

// striperate splits [offset, offset+length) into the ordered sequence
// of stripeRuns it crosses — this package's "striperator" (spec §9). It
// builds and returns the whole slice of runs at once; it does not yield
// them lazily. Each returned run lies within exactly one stripe and is
// tagged with its owning core.
func striperate(offset, length uint64, cores int) []stripeRun {
	if length == 0 {
		return nil
	}
	var runs []stripeRun
	end := offset + length
	for pos := offset; pos < end; {
		stripeEnd := (pos/stripeBytes + 1) * stripeBytes
		runEnd := stripeEnd
		if runEnd > end {
			runEnd = end
		}
		runs = append(runs, stripeRun{
			core:   stripeCore(pos, cores),
			offset: pos,
			length: runEnd - pos,
		})
		pos = runEnd
	}
	return runs
}

// groupRunsByCore groups runs by their owning core, preserving offset
// order within each core's bucket.
func groupRunsByCore(runs []stripeRun) map[int][]stripeRun {
	out := make(map[int][]stripeRun)
	for _, r := range runs {
		out[r.core] = append(out[r.core], r)
	}
	return out
}

// pageRun is one contiguous sub-range of a stripeRun that falls within
// a single page, the unit PageSlice actually mutates.
type pageRun struct {
	pageIndex  uint64
	pageOffset uint64 // offset within the page
	length     uint64
	dataOffset uint64 // offset within the original input buffer/range
}

// pageRunsFor splits a single stripeRun into per-page runs.
func pageRunsFor(run stripeRun) []pageRun {
	var out []pageRun
	pos := run.offset
	end := run.offset + run.length
	for pos < end {
		pageIndex := pos / uint64(proto.PageSize)
		pageStart := pageIndex * uint64(proto.PageSize)
		pageEnd := pageStart + uint64(proto.PageSize)
		runEnd := pageEnd
		if runEnd > end {
			runEnd = end
		}
		out = append(out, pageRun{
			pageIndex:  pageIndex,
			pageOffset: pos - pageStart,
			length:     runEnd - pos,
			dataOffset: pos - run.offset,
		})
		pos = runEnd
	}
	return out
}
