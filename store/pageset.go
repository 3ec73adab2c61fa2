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
	"context"

	"github.com/crimson-osd/crimson/corepool"
)

// PageSet is one object's sparse page storage, sharded across every
// core's pageSlice by stripe (spec §4.2). It owns no data itself; each
// slice is reached only through the core pool, one logical owner per
// core.
type PageSet struct {
	pool   *corepool.Pool
	slices []*pageSlice // len == pool.Count()
}

// NewPageSet allocates one empty pageSlice per core in pool.
func NewPageSet(pool *corepool.Pool) *PageSet {
	slices := make([]*pageSlice, pool.Count())
	for i := range slices {
		slices[i] = newPageSlice()
	}
	return &PageSet{pool: pool, slices: slices}
}

// Write copies data into [offset, offset+len(data)), fanning out one
// local call per core that owns a stripe in range (spec §4.2 write
// algorithm). Zero-length writes are no-ops.
func (ps *PageSet) Write(ctx context.Context, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	byCore := groupRunsByCore(striperate(offset, uint64(len(data)), ps.pool.Count()))
	return corepool.FanOut(ctx, ps.pool, func(_ context.Context, core int) error {
		runs, ok := byCore[core]
		if !ok {
			return nil
		}
		var pageRuns []pageRun
		for _, run := range runs {
			for _, pr := range pageRunsFor(run) {
				pr.dataOffset += run.offset - offset
				pageRuns = append(pageRuns, pr)
			}
		}
		ps.slices[core].writeRuns(pageRuns, data)
		return nil
	})
}

// Read returns the Iovec covering [offset, offset+length) that this
// PageSet currently holds; offsets it never wrote are holes (spec §4.2
// read algorithm). Zero-length reads return an empty Iovec.
func (ps *PageSet) Read(ctx context.Context, offset, length uint64) (*Iovec, error) {
	if length == 0 {
		return &Iovec{}, nil
	}
	byCore := groupRunsByCore(striperate(offset, length, ps.pool.Count()))
	parts := make([]*Iovec, ps.pool.Count())
	err := corepool.FanOut(ctx, ps.pool, func(_ context.Context, core int) error {
		runs, ok := byCore[core]
		if !ok {
			return nil
		}
		var pageRuns []pageRun
		var bases []uint64
		for _, run := range runs {
			for _, pr := range pageRunsFor(run) {
				pageRuns = append(pageRuns, pr)
				bases = append(bases, run.offset)
			}
		}
		i := 0
		parts[core] = ps.slices[core].readRuns(pageRuns, func(r pageRun) uint64 {
			base := bases[i]
			i++
			return base + r.dataOffset
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mergeIovecs(parts), nil
}

// HolePunch erases or zero-fills [offset, offset+length) across every
// owning core, in parallel (spec §4.2 hole-punch algorithm).
func (ps *PageSet) HolePunch(ctx context.Context, offset, length uint64) error {
	if length == 0 {
		return nil
	}
	byCore := groupRunsByCore(striperate(offset, length, ps.pool.Count()))
	return corepool.FanOut(ctx, ps.pool, func(_ context.Context, core int) error {
		runs, ok := byCore[core]
		if !ok {
			return nil
		}
		var pageRuns []pageRun
		for _, run := range runs {
			pageRuns = append(pageRuns, pageRunsFor(run)...)
		}
		ps.slices[core].holePunchRuns(pageRuns)
		return nil
	})
}

// PageCountOnCore returns the number of resident pages on the given
// core's slice — used by tests inspecting striping (spec scenario S3).
func (ps *PageSet) PageCountOnCore(core int) int {
	return ps.slices[core].pageCount()
}
