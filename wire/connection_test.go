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

package wire

import (
	"net"
	"testing"

	"github.com/crimson-osd/crimson/proto"
	"github.com/stretchr/testify/require"
)

func TestPipeConnectionRoundTrip(t *testing.T) {
	a, b := NewPipePair()
	defer a.Close()
	defer b.Close()

	msg := &proto.Message{
		Header: proto.Header{Sequence: 42},
		Type:   proto.MessageTypeOsdReadArgs,
		Read:   &proto.OsdReadArgs{Object: "obj-1", Offset: 10, Length: 20},
	}
	require.NoError(t, a.WriteMessage(msg))

	got, err := b.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, msg.Header.Sequence, got.Header.Sequence)
	require.Equal(t, msg.Read.Object, got.Read.Object)
	require.Equal(t, msg.Read.Offset, got.Read.Offset)
	require.Equal(t, msg.Read.Length, got.Read.Length)
}

func TestStreamConnectionRoundTrip(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	server := NewStreamConnection(serverConn, 0)
	client := NewStreamConnection(clientConn, 0)
	defer server.Close()
	defer client.Close()

	msg := &proto.Message{
		Header: proto.Header{Sequence: 7},
		Type:   proto.MessageTypeOsdWriteArgs,
		Write: &proto.OsdWriteArgs{
			Object: "obj-2",
			Offset: 0,
			Length: 4,
			Data:   []byte{0xAA, 0xBB, 0xCC, 0xDD},
			Flags:  proto.OnApply | proto.OnCommit,
		},
	}

	done := make(chan error, 1)
	go func() { done <- client.WriteMessage(msg) }()

	got, err := server.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, <-done)

	require.Equal(t, msg.Header.Sequence, got.Header.Sequence)
	require.Equal(t, msg.Write.Object, got.Write.Object)
	require.Equal(t, msg.Write.Data, got.Write.Data)
	require.Equal(t, msg.Write.Flags, got.Write.Flags)
}

func TestPipeListenerAcceptsDialedConnections(t *testing.T) {
	ln, dial := NewPipeListener()
	defer ln.Close()

	client := dial()
	defer client.Close()

	server, err := ln.Accept()
	require.NoError(t, err)
	defer server.Close()

	msg := &proto.Message{
		Header:   proto.Header{Sequence: 1},
		Type:     proto.MessageTypeOsdWriteRes,
		WriteRes: &proto.OsdWriteRes{ErrorCode: 0, Flags: proto.OnApply},
	}
	require.NoError(t, client.WriteMessage(msg))

	got, err := server.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, msg.WriteRes.Flags, got.WriteRes.Flags)
}
