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

package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/proto"
	"github.com/crimson-osd/crimson/wire"
)

// fakeServer echoes back a write/read reply for every request it reads
// off its end of the pipe, so Sender can be exercised without a Server.
func fakeServer(t *testing.T, conn wire.Connection, reply func(*proto.Message) *proto.Message) {
	t.Helper()
	go func() {
		for {
			req, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(reply(req)); err != nil {
				return
			}
		}
	}()
}

func TestSenderWriteCompletesOnRequestedFlags(t *testing.T) {
	clientConn, serverConn := wire.NewPipePair()
	fakeServer(t, serverConn, func(req *proto.Message) *proto.Message {
		return &proto.Message{
			Header:   req.Header,
			Type:     proto.MessageTypeOsdWriteRes,
			WriteRes: &proto.OsdWriteRes{Flags: req.Write.Flags},
		}
	})

	s := NewSender(clientConn, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := s.Write(ctx, "obj-1", 0, []byte("hi"), proto.OnApply|proto.OnCommit)
	require.NoError(t, err)
}

func TestSenderWritePropagatesErrorCode(t *testing.T) {
	clientConn, serverConn := wire.NewPipePair()
	fakeServer(t, serverConn, func(req *proto.Message) *proto.Message {
		return &proto.Message{
			Header:   req.Header,
			Type:     proto.MessageTypeOsdWriteRes,
			WriteRes: &proto.OsdWriteRes{ErrorCode: crimsonerrors.KindNoSuchObject.Errno()},
		}
	})

	s := NewSender(clientConn, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := s.Write(ctx, "missing", 0, []byte("hi"), proto.OnApply)
	require.ErrorIs(t, err, crimsonerrors.ErrNoSuchObject)
}

func TestSenderReadRoundTrip(t *testing.T) {
	clientConn, serverConn := wire.NewPipePair()
	fakeServer(t, serverConn, func(req *proto.Message) *proto.Message {
		return &proto.Message{
			Header:  req.Header,
			Type:    proto.MessageTypeOsdReadRes,
			ReadRes: &proto.OsdReadRes{Data: []byte("hello")},
		}
	})

	s := NewSender(clientConn, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	data, err := s.Read(ctx, "obj-1", 0, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

// TestSenderThrottlesOutstandingWrites confirms the semaphore blocks a
// write past the outstanding limit until an earlier write's ON_APPLY
// flag is acknowledged, per spec §4.6.
func TestSenderThrottlesOutstandingWrites(t *testing.T) {
	clientConn, serverConn := wire.NewPipePair()

	release := make(chan struct{})
	fakeServer(t, serverConn, func(req *proto.Message) *proto.Message {
		if req.Write.Object == "hold" {
			<-release
		}
		return &proto.Message{
			Header:   req.Header,
			Type:     proto.MessageTypeOsdWriteRes,
			WriteRes: &proto.OsdWriteRes{Flags: req.Write.Flags},
		}
	})

	s := NewSender(clientConn, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Write(ctx, "hold", 0, []byte("x"), proto.OnApply)
	}()

	// give the first write time to acquire the single semaphore slot.
	time.Sleep(50 * time.Millisecond)

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- s.Write(ctx, "second", 0, []byte("y"), proto.OnApply)
	}()

	select {
	case <-secondDone:
		t.Fatal("second write completed before the first released its semaphore slot")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
}

func TestSenderFailsPendingOnConnectionClose(t *testing.T) {
	clientConn, _ := wire.NewPipePair()
	s := NewSender(clientConn, 4)

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		errCh <- s.Write(ctx, "obj-1", 0, []byte("x"), proto.OnApply)
	}()

	// give Write a chance to send its request and block on p.done before
	// the local end is torn down.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, clientConn.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("write never completed after connection closed")
	}
}
