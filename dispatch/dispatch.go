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

// Package dispatch wires decoded wire messages to Store/Collection/
// Object operations and builds the matching replies (spec §4.6).
package dispatch

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/proto"
	"github.com/crimson-osd/crimson/store"
)

// defaultCid is the single implicit collection every OsdReadArgs/
// OsdWriteArgs routes into. The wire protocol's object field (spec §6)
// carries only an oid, not a (cid, oid) pair, so this prototype's
// dispatcher fronts exactly one collection, created lazily on first use.
const defaultCid = proto.Cid("default")

// Dispatcher routes decoded Messages to a Store and builds replies.
type Dispatcher struct {
	store *store.Store
}

// New builds a Dispatcher fronting s.
func New(s *store.Store) *Dispatcher {
	return &Dispatcher{store: s}
}

// Handle processes one decoded request Message and returns the reply to
// send back, echoing its sequence number (spec §4.6). It never returns
// an error itself; failures are carried in the reply's error code.
func (d *Dispatcher) Handle(ctx context.Context, req *proto.Message) *proto.Message {
	span, ctx := trace.StartSpanFromContext(ctx, "")
	span.Infof("dispatch seq=%d type=%d", req.Header.Sequence, req.Type)

	switch req.Type {
	case proto.MessageTypeOsdReadArgs:
		return d.handleRead(ctx, req)
	case proto.MessageTypeOsdWriteArgs:
		return d.handleWrite(ctx, req)
	default:
		log.Error("dispatch: unrecognized message type", req.Type)
		return &proto.Message{
			Header:  req.Header,
			Type:    proto.MessageTypeOsdReadRes,
			ReadRes: &proto.OsdReadRes{ErrorCode: crimsonerrors.KindInvalidArgument.Errno()},
		}
	}
}

func (d *Dispatcher) handleRead(ctx context.Context, req *proto.Message) *proto.Message {
	args := req.Read
	data, err := d.readObject(ctx, args.Object, args.Offset, args.Length)
	if err != nil {
		return &proto.Message{
			Header:  req.Header,
			Type:    proto.MessageTypeOsdReadRes,
			ReadRes: &proto.OsdReadRes{ErrorCode: crimsonerrors.KindOf(err).Errno()},
		}
	}
	return &proto.Message{
		Header:  req.Header,
		Type:    proto.MessageTypeOsdReadRes,
		ReadRes: &proto.OsdReadRes{Data: data},
	}
}

func (d *Dispatcher) readObject(ctx context.Context, oid proto.Oid, offset, length uint64) ([]byte, error) {
	coll, err := d.store.LookupCollection(ctx, defaultCid)
	if err != nil {
		return nil, err
	}
	obj, err := coll.Lookup(ctx, oid)
	if err != nil {
		return nil, err
	}
	return obj.Read(ctx, offset, length)
}

func (d *Dispatcher) handleWrite(ctx context.Context, req *proto.Message) *proto.Message {
	args := req.Write
	err := d.writeObject(ctx, args.Object, args.Offset, args.Data)
	if err != nil {
		return &proto.Message{
			Header:   req.Header,
			Type:     proto.MessageTypeOsdWriteRes,
			WriteRes: &proto.OsdWriteRes{ErrorCode: crimsonerrors.KindOf(err).Errno()},
		}
	}

	reply := &proto.Message{
		Header:   req.Header,
		Type:     proto.MessageTypeOsdWriteRes,
		WriteRes: &proto.OsdWriteRes{},
	}
	if args.Flags&proto.OnApply != 0 {
		reply.WriteRes.Flags |= proto.OnApply
	}
	if args.Flags&proto.OnCommit != 0 {
		obj, lookupErr := d.lookupObject(ctx, args.Object)
		if lookupErr == nil {
			if commitErr := obj.Commit(ctx); commitErr == nil {
				reply.WriteRes.Flags |= proto.OnCommit
			}
		}
	}
	return reply
}

func (d *Dispatcher) writeObject(ctx context.Context, oid proto.Oid, offset uint64, data []byte) error {
	coll, err := d.store.CreateCollection(ctx, defaultCid)
	if err != nil && crimsonerrors.KindOf(err) != crimsonerrors.KindCollectionExists {
		return err
	}
	if coll == nil {
		coll, err = d.store.LookupCollection(ctx, defaultCid)
		if err != nil {
			return err
		}
	}
	obj, err := coll.Create(ctx, oid, false)
	if err != nil {
		return err
	}
	return obj.Write(ctx, offset, data)
}

func (d *Dispatcher) lookupObject(ctx context.Context, oid proto.Oid) (*store.Object, error) {
	coll, err := d.store.LookupCollection(ctx, defaultCid)
	if err != nil {
		return nil, err
	}
	return coll.Lookup(ctx, oid)
}
