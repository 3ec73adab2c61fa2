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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crimson-osd/crimson/corepool"
	crimsonerrors "github.com/crimson-osd/crimson/errors"
)

func TestCollectionCreateExclusive(t *testing.T) {
	ctx := context.Background()
	pool := corepool.New(4)
	coll := newCollection("coll-1", pool)

	obj1, err := coll.Create(ctx, "oid-1", true)
	require.NoError(t, err)
	require.NotNil(t, obj1)

	_, err = coll.Create(ctx, "oid-1", true)
	require.ErrorIs(t, err, crimsonerrors.ErrObjectExists)

	obj2, err := coll.Create(ctx, "oid-1", false)
	require.NoError(t, err)
	require.Same(t, obj1, obj2, "non-exclusive create of an existing oid returns the same Object")
}

func TestCollectionLookupMissing(t *testing.T) {
	ctx := context.Background()
	pool := corepool.New(4)
	coll := newCollection("coll-1", pool)

	_, err := coll.Lookup(ctx, "nope")
	require.ErrorIs(t, err, crimsonerrors.ErrNoSuchObject)
}

func TestCollectionEmptyAfterRemove(t *testing.T) {
	ctx := context.Background()
	pool := corepool.New(4)
	coll := newCollection("coll-1", pool)

	empty, err := coll.Empty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	_, err = coll.Create(ctx, "oid-1", true)
	require.NoError(t, err)

	empty, err = coll.Empty(ctx)
	require.NoError(t, err)
	require.False(t, empty)

	require.NoError(t, coll.Remove(ctx, "oid-1"))

	empty, err = coll.Empty(ctx)
	require.NoError(t, err)
	require.True(t, empty)
}
