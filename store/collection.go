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
	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/metrics"
	"github.com/crimson-osd/crimson/proto"
)

// oidSalt distinguishes the oid-routing hash from the cid-routing hash
// (spec §4.1: "Routing is by independent hash functions for cid and oid").
const oidSalt = byte(1)

// Collection is an unordered named grouping of objects (spec §3), pinned
// to one home core. Its oid->Object tables are sharded per core the same
// way a Store shards its collections; only the home-core table actually
// ever holds entries for oids that route there, but every core keeps a
// table so fan-out emptiness checks are uniform.
type Collection struct {
	Cid proto.Cid

	pool    *corepool.Pool
	objects []map[proto.Oid]*Object // one map per core
}

func newCollection(cid proto.Cid, pool *corepool.Pool) *Collection {
	objects := make([]map[proto.Oid]*Object, pool.Count())
	for i := range objects {
		objects[i] = make(map[proto.Oid]*Object)
	}
	return &Collection{Cid: cid, pool: pool, objects: objects}
}

func (c *Collection) homeCore(oid proto.Oid) int {
	return corepool.HomeCore(string(oid), oidSalt, c.pool.Count())
}

// Create routes oid to its home core and inserts an Object if absent.
// With exclusive set, a pre-existing object yields object_exists
// (spec §4.1).
func (c *Collection) Create(ctx context.Context, oid proto.Oid, exclusive bool) (*Object, error) {
	core := c.homeCore(oid)
	return corepool.SubmitWait(ctx, c.pool, core, func() (*Object, error) {
		if existing, ok := c.objects[core][oid]; ok {
			if exclusive {
				return nil, crimsonerrors.ErrObjectExists
			}
			return existing, nil
		}
		obj := newObject(oid, c.pool)
		c.objects[core][oid] = obj
		return obj, nil
	})
}

// Lookup routes oid to its home core and returns its Object, or
// no_such_object.
func (c *Collection) Lookup(ctx context.Context, oid proto.Oid) (*Object, error) {
	core := c.homeCore(oid)
	return corepool.SubmitWait(ctx, c.pool, core, func() (*Object, error) {
		obj, ok := c.objects[core][oid]
		if !ok {
			return nil, crimsonerrors.ErrNoSuchObject
		}
		return obj, nil
	})
}

// Remove deletes oid's Object on its home core. Missing is not an error:
// callers that need exclusivity should Lookup first. It also clears the
// object's resident_pages series so that gauge's cardinality tracks
// live objects instead of growing without bound.
func (c *Collection) Remove(ctx context.Context, oid proto.Oid) error {
	core := c.homeCore(oid)
	_, err := corepool.SubmitWait(ctx, c.pool, core, func() (struct{}, error) {
		delete(c.objects[core], oid)
		return struct{}{}, nil
	})
	if err == nil {
		metrics.DeleteResidentPages(string(oid), c.pool.Count())
	}
	return err
}

// Empty reports whether every per-core object table is empty, via a
// fan-out AND-reduce (spec §4.1: "remove() requires emptiness across
// all cores, checked by a fan-out reduce that AND's 'empty?' answers").
func (c *Collection) Empty(ctx context.Context) (bool, error) {
	empty := make([]bool, c.pool.Count())
	err := corepool.FanOut(ctx, c.pool, func(_ context.Context, core int) error {
		empty[core] = len(c.objects[core]) == 0
		return nil
	})
	if err != nil {
		return false, err
	}
	for _, e := range empty {
		if !e {
			return false, nil
		}
	}
	return true, nil
}
