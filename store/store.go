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

// Package store implements Crimson's in-memory object storage tree:
// Store, Collection, Object, and the sharded page cache underneath them.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/crimson-osd/crimson/corepool"
	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/proto"
)

// cidSalt distinguishes the cid-routing hash from the oid-routing hash.
const cidSalt = byte(0)

// Store is the process-singleton root of the object tree (spec §3): a
// cid->Collection mapping sharded per core, keyed for identification by
// a process UUID minted at creation.
type Store struct {
	UUID uuid.UUID

	pool        *corepool.Pool
	collections []map[proto.Cid]*Collection // one map per core
}

// New creates an empty Store backed by pool, which it does not own —
// callers create the Pool independently and may share one Pool between
// several Stores.
func New(pool *corepool.Pool) *Store {
	collections := make([]map[proto.Cid]*Collection, pool.Count())
	for i := range collections {
		collections[i] = make(map[proto.Cid]*Collection)
	}
	return &Store{
		UUID:        uuid.New(),
		pool:        pool,
		collections: collections,
	}
}

func (s *Store) homeCore(cid proto.Cid) int {
	return corepool.HomeCore(string(cid), cidSalt, s.pool.Count())
}

// CreateCollection routes cid to its home core and inserts it, failing
// with collection_exists if already present (spec §4.1).
func (s *Store) CreateCollection(ctx context.Context, cid proto.Cid) (*Collection, error) {
	core := s.homeCore(cid)
	return corepool.SubmitWait(ctx, s.pool, core, func() (*Collection, error) {
		if _, ok := s.collections[core][cid]; ok {
			return nil, crimsonerrors.ErrCollectionExists
		}
		coll := newCollection(cid, s.pool)
		s.collections[core][cid] = coll
		return coll, nil
	})
}

// LookupCollection routes cid to its home core and returns its
// Collection, or no_such_collection.
func (s *Store) LookupCollection(ctx context.Context, cid proto.Cid) (*Collection, error) {
	core := s.homeCore(cid)
	return corepool.SubmitWait(ctx, s.pool, core, func() (*Collection, error) {
		coll, ok := s.collections[core][cid]
		if !ok {
			return nil, crimsonerrors.ErrNoSuchCollection
		}
		return coll, nil
	})
}

// RemoveCollection removes cid only if every per-core object table of
// its Collection is empty, else collection_not_empty (spec §4.1).
func (s *Store) RemoveCollection(ctx context.Context, cid proto.Cid) error {
	coll, err := s.LookupCollection(ctx, cid)
	if err != nil {
		return err
	}
	empty, err := coll.Empty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return crimsonerrors.ErrCollectionNotEmpty
	}

	// The emptiness fan-out above already suspended back onto the
	// caller's core, so this final removal is a plain submit, not a
	// nested one — Collection methods never run work back through
	// Store.homeCore(cid)'s own worker while that worker is mid-task.
	core := s.homeCore(cid)
	_, err = corepool.SubmitWait(ctx, s.pool, core, func() (struct{}, error) {
		if c, ok := s.collections[core][cid]; ok && c == coll {
			delete(s.collections[core], cid)
		}
		return struct{}{}, nil
	})
	return err
}
