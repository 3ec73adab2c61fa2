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

package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crimson-osd/crimson/corepool"
	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/proto"
	"github.com/crimson-osd/crimson/store"
)

func TestDispatchWriteThenRead(t *testing.T) {
	ctx := context.Background()
	pool := corepool.New(2)
	d := New(store.New(pool))

	writeReply := d.Handle(ctx, &proto.Message{
		Header: proto.Header{Sequence: 1},
		Type:   proto.MessageTypeOsdWriteArgs,
		Write: &proto.OsdWriteArgs{
			Object: "obj-1",
			Offset: 0,
			Data:   []byte("hello"),
			Flags:  proto.OnApply | proto.OnCommit,
		},
	})
	require.Equal(t, proto.MessageTypeOsdWriteRes, writeReply.Type)
	require.EqualValues(t, 1, writeReply.Header.Sequence)
	require.Zero(t, writeReply.WriteRes.ErrorCode)
	require.Equal(t, proto.OnApply|proto.OnCommit, writeReply.WriteRes.Flags)

	readReply := d.Handle(ctx, &proto.Message{
		Header: proto.Header{Sequence: 2},
		Type:   proto.MessageTypeOsdReadArgs,
		Read:   &proto.OsdReadArgs{Object: "obj-1", Offset: 0, Length: 5},
	})
	require.Equal(t, proto.MessageTypeOsdReadRes, readReply.Type)
	require.EqualValues(t, 2, readReply.Header.Sequence)
	require.Zero(t, readReply.ReadRes.ErrorCode)
	require.Equal(t, []byte("hello"), readReply.ReadRes.Data)
}

func TestDispatchReadMissingObjectIsENOENT(t *testing.T) {
	// spec scenario S6.
	ctx := context.Background()
	pool := corepool.New(2)
	d := New(store.New(pool))

	reply := d.Handle(ctx, &proto.Message{
		Header: proto.Header{Sequence: 9},
		Type:   proto.MessageTypeOsdReadArgs,
		Read:   &proto.OsdReadArgs{Object: "missing", Offset: 0, Length: 1024},
	})
	require.Equal(t, proto.MessageTypeOsdReadRes, reply.Type)
	require.EqualValues(t, 9, reply.Header.Sequence)
	require.Equal(t, crimsonerrors.KindNoSuchObject.Errno(), reply.ReadRes.ErrorCode)
}
