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
	"strconv"
	"sync/atomic"
	"time"

	"github.com/crimson-osd/crimson/corepool"
	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/metrics"
	"github.com/crimson-osd/crimson/proto"
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Object is one (collection, oid) pair's state (spec §3). queue, attrs,
// and header are touched only on home, the Object's own home core,
// reached via corepool.SubmitWait exactly like Collection and Store
// route their tables (spec I1); Object itself performs no locking. pages
// is sharded per core internally and fans out across the whole pool, so
// its calls run on the caller's ambient goroutine, never nested inside
// a SubmitWait callback already running on one of pages' own cores.
type Object struct {
	Oid proto.Oid

	pool *corepool.Pool
	home int

	dataLen atomic.Uint64
	pages   *PageSet
	attrs   *attrStore
	header  []byte
	queue   *mutationQueue
}

// newObject builds an empty Object whose PageSet is sharded across pool
// and whose own state is pinned to the same home core a Collection
// would route oid to (spec §4.1).
func newObject(oid proto.Oid, pool *corepool.Pool) *Object {
	return &Object{
		Oid:   oid,
		pool:  pool,
		home:  corepool.HomeCore(string(oid), oidSalt, pool.Count()),
		pages: NewPageSet(pool),
		attrs: newAttrStore(),
		queue: newMutationQueue(),
	}
}

// enqueueMutation routes a plain mutation-token enqueue onto home.
func (o *Object) enqueueMutation(ctx context.Context) (*mutationToken, error) {
	return corepool.SubmitWait(ctx, o.pool, o.home, func() (*mutationToken, error) {
		return o.queue.enqueueMutation(), nil
	})
}

// completeMutation releases tok on home, fire-and-forget: a canceled
// ctx must never leave a token stranded in the queue, since that would
// wedge every future Commit barrier on this Object.
func (o *Object) completeMutation(tok *mutationToken) {
	o.pool.Submit(o.home, func() { o.queue.complete(tok) })
}

// DataLen returns the object's current logical length.
func (o *Object) DataLen() uint64 { return o.dataLen.Load() }

// Write stores data at offset, enqueuing a mutation token for the
// duration of the underlying PageSet work (spec §4.3) and extending
// data_len if the write runs past the current length (spec I4).
func (o *Object) Write(ctx context.Context, offset uint64, data []byte) (err error) {
	defer func() { metrics.Writes.WithLabelValues(resultLabel(err)).Inc() }()

	tok, err := o.enqueueMutation(ctx)
	if err != nil {
		return err
	}
	defer o.completeMutation(tok)

	if err = o.pages.Write(ctx, offset, data); err != nil {
		return err
	}
	o.extendTo(offset + uint64(len(data)))
	o.reportResidency()
	return nil
}

// Read returns the materialized bytes at [offset, offset+length), after
// checking the range against data_len snapshotted at entry (spec §4.2,
// §4.3 "concurrency contract for reads"). It does not enqueue a
// mutation token, so it may freely interleave with concurrent writes.
func (o *Object) Read(ctx context.Context, offset, length uint64) (out []byte, err error) {
	defer func() { metrics.Reads.WithLabelValues(resultLabel(err)).Inc() }()

	dataLen := o.dataLen.Load()
	if length == 0 {
		return nil, nil
	}
	if offset+length > dataLen {
		return nil, crimsonerrors.ErrOutOfRange
	}
	iov, err := o.pages.Read(ctx, offset, length)
	if err != nil {
		return nil, err
	}
	defer iov.Release()
	return iov.Materialize(offset, length), nil
}

// HolePunch erases [offset, offset+length), failing out_of_range if the
// range runs past data_len (spec §4.2 edge cases).
func (o *Object) HolePunch(ctx context.Context, offset, length uint64) (err error) {
	defer func() { metrics.HolePunches.WithLabelValues(resultLabel(err)).Inc() }()

	dataLen := o.dataLen.Load()
	if offset+length > dataLen {
		return crimsonerrors.ErrOutOfRange
	}
	tok, err := o.enqueueMutation(ctx)
	if err != nil {
		return err
	}
	defer o.completeMutation(tok)
	if err = o.pages.HolePunch(ctx, offset, length); err != nil {
		return err
	}
	o.reportResidency()
	return nil
}

// Zero is hole_punch without the out_of_range check; it silently
// extends data_len (spec §4.2 edge cases).
func (o *Object) Zero(ctx context.Context, offset, length uint64) (err error) {
	defer func() { metrics.HolePunches.WithLabelValues(resultLabel(err)).Inc() }()

	tok, err := o.enqueueMutation(ctx)
	if err != nil {
		return err
	}
	defer o.completeMutation(tok)
	if err = o.pages.HolePunch(ctx, offset, length); err != nil {
		return err
	}
	o.extendTo(offset + length)
	o.reportResidency()
	return nil
}

// Truncate sets data_len to length, hole-punching anything shrunk away.
func (o *Object) Truncate(ctx context.Context, length uint64) error {
	tok, err := o.enqueueMutation(ctx)
	if err != nil {
		return err
	}
	defer o.completeMutation(tok)

	old := o.dataLen.Load()
	if length < old {
		if err := o.pages.HolePunch(ctx, length, old-length); err != nil {
			return err
		}
	}
	o.dataLen.Store(length)
	return nil
}

// Commit enqueues a barrier token on home and suspends until every
// mutation already enqueued ahead of it has completed (spec §4.3).
func (o *Object) Commit(ctx context.Context) error {
	start := time.Now()
	done, err := corepool.SubmitWait(ctx, o.pool, o.home, func() (<-chan struct{}, error) {
		return o.queue.enqueueBarrier(), nil
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		metrics.CommitBarrierWaitSeconds.Observe(time.Since(start).Seconds())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reportResidency publishes each core's resident page count for this
// object's PageSet to the resident_pages gauge.
func (o *Object) reportResidency() {
	for core := 0; core < len(o.pages.slices); core++ {
		metrics.ResidentPages.WithLabelValues(string(o.Oid), strconv.Itoa(core)).Set(float64(o.pages.PageCountOnCore(core)))
	}
}

func (o *Object) extendTo(end uint64) {
	for {
		cur := o.dataLen.Load()
		if end <= cur {
			return
		}
		if o.dataLen.CompareAndSwap(cur, end) {
			return
		}
	}
}

// GetAttr, GetAttrs, SetAttr, SetAttrs, RmAttr, RmAttrs, and the cursor
// enumerators delegate to the per-Object attribute store (spec §4.4),
// each routed through SubmitWait onto home so attrStore's maps and
// cursor set are only ever touched on the Object's own core (spec I1).

func (o *Object) GetAttr(ctx context.Context, ns proto.Namespace, key string) ([]byte, error) {
	return corepool.SubmitWait(ctx, o.pool, o.home, func() ([]byte, error) {
		return o.attrs.GetAttr(ns, key)
	})
}

func (o *Object) GetAttrs(ctx context.Context, ns proto.Namespace, keys []string) ([][]byte, error) {
	return corepool.SubmitWait(ctx, o.pool, o.home, func() ([][]byte, error) {
		return o.attrs.GetAttrs(ns, keys)
	})
}

func (o *Object) SetAttr(ctx context.Context, ns proto.Namespace, key string, value []byte) error {
	_, err := corepool.SubmitWait(ctx, o.pool, o.home, func() (struct{}, error) {
		return struct{}{}, o.attrs.SetAttr(ns, key, value)
	})
	return err
}

func (o *Object) SetAttrs(ctx context.Context, ns proto.Namespace, pairs map[string][]byte) error {
	_, err := corepool.SubmitWait(ctx, o.pool, o.home, func() (struct{}, error) {
		return struct{}{}, o.attrs.SetAttrs(ns, pairs)
	})
	return err
}

func (o *Object) RmAttr(ctx context.Context, ns proto.Namespace, key string) error {
	_, err := corepool.SubmitWait(ctx, o.pool, o.home, func() (struct{}, error) {
		return struct{}{}, o.attrs.RmAttr(ns, key)
	})
	return err
}

func (o *Object) RmAttrs(ctx context.Context, ns proto.Namespace, keys []string) error {
	_, err := corepool.SubmitWait(ctx, o.pool, o.home, func() (struct{}, error) {
		return struct{}{}, o.attrs.RmAttrs(ns, keys)
	})
	return err
}

// attrKeysResult and attrKVsResult let the two-value-plus-error
// enumerator results ride through SubmitWait's single-value signature.
type attrKeysResult struct {
	keys []string
	cur  *AttrCursor
}

type attrKVsResult struct {
	kvs map[string][]byte
	cur *AttrCursor
}

func (o *Object) EnumerateAttrKeys(ctx context.Context, ns proto.Namespace, cur *AttrCursor, toReturn int) ([]string, *AttrCursor, error) {
	res, err := corepool.SubmitWait(ctx, o.pool, o.home, func() (attrKeysResult, error) {
		keys, next, err := o.attrs.EnumerateKeys(ns, cur, toReturn)
		return attrKeysResult{keys, next}, err
	})
	return res.keys, res.cur, err
}

func (o *Object) EnumerateAttrKVs(ctx context.Context, ns proto.Namespace, cur *AttrCursor, toReturn int) (map[string][]byte, *AttrCursor, error) {
	res, err := corepool.SubmitWait(ctx, o.pool, o.home, func() (attrKVsResult, error) {
		kvs, next, err := o.attrs.EnumerateKVs(ns, cur, toReturn)
		return attrKVsResult{kvs, next}, err
	})
	return res.kvs, res.cur, err
}

// RmAttrRange, AttrCursorAt, and extent queries are not implemented by
// this store (spec §4.4); they touch no state, so they need no routing.
func (o *Object) RmAttrRange(context.Context, proto.Namespace, string, string) error {
	return crimsonerrors.ErrOperationNotSupported
}

func (o *Object) AttrCursorAt(context.Context, proto.Namespace, string) (*AttrCursor, error) {
	return nil, crimsonerrors.ErrOperationNotSupported
}

// Header returns the opaque omap header blob, or nil if unset.
func (o *Object) Header(ctx context.Context) ([]byte, error) {
	return corepool.SubmitWait(ctx, o.pool, o.home, func() ([]byte, error) {
		return o.header, nil
	})
}

// SetHeader replaces the opaque omap header blob.
func (o *Object) SetHeader(ctx context.Context, h []byte) error {
	_, err := corepool.SubmitWait(ctx, o.pool, o.home, func() (struct{}, error) {
		buf := make([]byte, len(h))
		copy(buf, h)
		o.header = buf
		return struct{}{}, nil
	})
	return err
}
