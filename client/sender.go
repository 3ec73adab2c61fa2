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

// Package client implements the wire-protocol client side: a Sender
// that throttles outstanding writes and completes per-sequence promises
// as acknowledgement flags arrive (spec §4.6).
package client

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/cubefs/cubefs/blobstore/util/log"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/proto"
	"github.com/crimson-osd/crimson/wire"
)

// pending tracks one in-flight write: the flags the caller asked to be
// acknowledged on, which of those have arrived so far, and the channel
// that completes once they all have.
type pending struct {
	want   uint32
	got    uint32
	done   chan error
	closed bool
}

// Sender is the client-side half of the wire protocol. It throttles the
// number of outstanding writes with a counting semaphore, releasing a
// slot as soon as ON_APPLY is acknowledged for that write (spec §4.6:
// "throttles outstanding writes using a semaphore released on ON_APPLY
// receipt"), and completes a write's promise once every flag the caller
// asked for has been acknowledged.
type Sender struct {
	conn      wire.Connection
	sem       *semaphore.Weighted
	mu        sync.Mutex
	seq       uint32
	inFlt     map[uint32]*pending
	readTable map[uint32]chan *proto.Message
}

// NewSender wraps conn, allowing at most maxOutstandingWrites writes to
// be unacknowledged (by ON_APPLY) at once.
func NewSender(conn wire.Connection, maxOutstandingWrites int64) *Sender {
	s := &Sender{
		conn:  conn,
		sem:   semaphore.NewWeighted(maxOutstandingWrites),
		inFlt: make(map[uint32]*pending),
	}
	go s.readLoop()
	return s
}

// Close tears down the underlying connection, which unblocks the read
// loop and fails any still-outstanding requests.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Read issues a blocking read request and returns its materialized
// bytes, or the wire error it was reported with.
func (s *Sender) Read(ctx context.Context, object proto.Oid, offset, length uint64) ([]byte, error) {
	seq := s.nextSeq()
	req := &proto.Message{
		Header: proto.Header{Sequence: seq},
		Type:   proto.MessageTypeOsdReadArgs,
		Read:   &proto.OsdReadArgs{Object: object, Offset: offset, Length: length},
	}
	done := make(chan *proto.Message, 1)
	s.mu.Lock()
	s.readWaiters()[seq] = done
	s.mu.Unlock()

	if err := s.conn.WriteMessage(req); err != nil {
		s.mu.Lock()
		delete(s.readTable, seq)
		s.mu.Unlock()
		return nil, err
	}

	select {
	case reply, ok := <-done:
		if !ok {
			return nil, fmt.Errorf("connection closed before read %d completed", seq)
		}
		if reply.ReadRes.ErrorCode != 0 {
			return nil, errnoError(reply.ReadRes.ErrorCode)
		}
		return reply.ReadRes.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write issues a write, acquiring a semaphore slot before sending and
// releasing it as soon as ON_APPLY is acknowledged. It returns once
// every flag bit set has been acknowledged (spec §4.6).
func (s *Sender) Write(ctx context.Context, object proto.Oid, offset uint64, data []byte, flags uint32) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	seq := s.nextSeq()
	p := &pending{want: flags, done: make(chan error, 1)}
	s.mu.Lock()
	s.inFlt[seq] = p
	s.mu.Unlock()

	req := &proto.Message{
		Header: proto.Header{Sequence: seq},
		Type:   proto.MessageTypeOsdWriteArgs,
		Write:  &proto.OsdWriteArgs{Object: object, Offset: offset, Length: uint64(len(data)), Data: data, Flags: flags},
	}
	if err := s.conn.WriteMessage(req); err != nil {
		s.sem.Release(1)
		s.mu.Lock()
		delete(s.inFlt, seq)
		s.mu.Unlock()
		return err
	}

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readWaiters and read-reply dispatch share inFlt's lock but not its
// map; reads key by sequence in a separate table kept simple for a
// prototype sender with modest concurrency.
func (s *Sender) readWaiters() map[uint32]chan *proto.Message {
	// Lazily attach a side table the first time it's needed; inFlt only
	// ever holds writes, so there is no key collision between the two.
	if s.readTable == nil {
		s.readTable = make(map[uint32]chan *proto.Message)
	}
	return s.readTable
}

func (s *Sender) nextSeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Sender) readLoop() {
	for {
		reply, err := s.conn.ReadMessage()
		if err != nil {
			log.Info("client sender: connection closed:", err)
			s.failAllPending(err)
			return
		}
		switch reply.Type {
		case proto.MessageTypeOsdReadRes:
			s.deliverRead(reply)
		case proto.MessageTypeOsdWriteRes:
			s.deliverWrite(reply)
		}
	}
}

func (s *Sender) deliverRead(reply *proto.Message) {
	s.mu.Lock()
	waiter, ok := s.readTable[reply.Header.Sequence]
	if ok {
		delete(s.readTable, reply.Header.Sequence)
	}
	s.mu.Unlock()
	if ok {
		waiter <- reply
	}
}

func (s *Sender) deliverWrite(reply *proto.Message) {
	s.mu.Lock()
	p, ok := s.inFlt[reply.Header.Sequence]
	s.mu.Unlock()
	if !ok {
		return
	}

	if reply.WriteRes.ErrorCode != 0 {
		s.sem.Release(1)
		s.mu.Lock()
		delete(s.inFlt, reply.Header.Sequence)
		s.mu.Unlock()
		if !p.closed {
			p.closed = true
			p.done <- errnoError(reply.WriteRes.ErrorCode)
		}
		return
	}

	wasApplied := p.got&proto.OnApply != 0
	p.got |= reply.WriteRes.Flags
	if !wasApplied && p.got&proto.OnApply != 0 {
		s.sem.Release(1)
	}

	if p.got&p.want == p.want {
		s.mu.Lock()
		delete(s.inFlt, reply.Header.Sequence)
		s.mu.Unlock()
		if !p.closed {
			p.closed = true
			p.done <- nil
		}
	}
}

func (s *Sender) failAllPending(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for seq, p := range s.inFlt {
		if !p.closed {
			p.closed = true
			p.done <- fmt.Errorf("connection closed: %w", cause)
		}
		delete(s.inFlt, seq)
	}
	for seq, ch := range s.readTable {
		close(ch)
		delete(s.readTable, seq)
	}
}

func errnoError(code uint32) error {
	switch code {
	case crimsonerrors.ENOENT:
		return crimsonerrors.ErrNoSuchObject
	case crimsonerrors.EINVAL:
		return crimsonerrors.ErrInvalidArgument
	case crimsonerrors.EEXIST:
		return crimsonerrors.ErrObjectExists
	case crimsonerrors.ENOTEMPTY:
		return crimsonerrors.ErrCollectionNotEmpty
	case crimsonerrors.ENOTSUP:
		return crimsonerrors.ErrOperationNotSupported
	case crimsonerrors.EPROTO:
		return crimsonerrors.ProtocolError("remote", nil)
	default:
		return fmt.Errorf("osd error code %d", code)
	}
}
