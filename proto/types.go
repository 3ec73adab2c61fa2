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

package proto

// Write flags (spec §4.6, §6). The client sets the acknowledgement
// levels it wants; the server may return both in one reply or stream
// two replies for the same sequence.
const (
	OnApply  = uint32(0x1)
	OnCommit = uint32(0x2)
)

// MessageType tags the body union of a Message (spec §6).
type MessageType uint8

const (
	MessageTypeInvalid MessageType = iota
	MessageTypeOsdReadArgs
	MessageTypeOsdReadRes
	MessageTypeOsdWriteArgs
	MessageTypeOsdWriteRes
)

// Header carries the fields common to every message.
type Header struct {
	Sequence uint32
}

// OsdReadArgs is the request body for a read.
type OsdReadArgs struct {
	Object Oid
	Offset uint64
	Length uint64
}

// OsdReadRes is the reply body for a read: either a wire errno or the
// returned bytes, never both.
type OsdReadRes struct {
	ErrorCode uint32
	Data      []byte
}

// OsdWriteArgs is the request body for a write.
type OsdWriteArgs struct {
	Object Oid
	Offset uint64
	Length uint64
	Data   []byte
	Flags  uint32
}

// OsdWriteRes is the reply body for a write: either a wire errno or the
// set of acknowledgement flags this reply satisfies.
type OsdWriteRes struct {
	ErrorCode uint32
	Flags     uint32
}

// Message is the top-level decoded wire message (spec §6).
type Message struct {
	Header Header
	Type   MessageType
	Read   *OsdReadArgs
	ReadRes  *OsdReadRes
	Write    *OsdWriteArgs
	WriteRes *OsdWriteRes
}
