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

import (
	"encoding/binary"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
)

// EncodeMessage lays a Message out as one or two segments: segment 0
// carries the header and fixed-size/string fields, segment 1 (when
// present) carries the bulk byte payload untouched, so a connection
// layer can hand it back to the caller without an extra copy.
func EncodeMessage(msg *Message) ([][]byte, error) {
	w := newByteWriter()
	w.u32(msg.Header.Sequence)
	w.u8(uint8(msg.Type))

	var bulk []byte
	switch msg.Type {
	case MessageTypeOsdReadArgs:
		a := msg.Read
		w.str(a.Object)
		w.u64(a.Offset)
		w.u64(a.Length)
	case MessageTypeOsdReadRes:
		r := msg.ReadRes
		w.u32(r.ErrorCode)
		w.u64(uint64(len(r.Data)))
		if r.ErrorCode == 0 {
			bulk = r.Data
		}
	case MessageTypeOsdWriteArgs:
		a := msg.Write
		w.str(a.Object)
		w.u64(a.Offset)
		w.u64(a.Length)
		w.u32(a.Flags)
		w.u64(uint64(len(a.Data)))
		bulk = a.Data
	case MessageTypeOsdWriteRes:
		r := msg.WriteRes
		w.u32(r.ErrorCode)
		w.u32(r.Flags)
	default:
		return nil, crimsonerrors.ProtocolError("message type", nil)
	}

	if bulk != nil {
		return [][]byte{w.bytes(), bulk}, nil
	}
	return [][]byte{w.bytes()}, nil
}

// DecodeMessage reverses EncodeMessage given the raw segments a frame
// reader produced. Segment byte slices may be padded to a word boundary
// past their logical contents; DecodeMessage only consumes the bytes it
// needs and never reads past an explicit length field.
func DecodeMessage(segments [][]byte) (*Message, error) {
	if len(segments) == 0 {
		return nil, crimsonerrors.ProtocolError("message segments", nil)
	}
	r := newByteReader(segments[0])

	msg := &Message{}
	seq, err := r.u32()
	if err != nil {
		return nil, crimsonerrors.ProtocolError("message header", err)
	}
	msg.Header.Sequence = seq

	typ, err := r.u8()
	if err != nil {
		return nil, crimsonerrors.ProtocolError("message type", err)
	}
	msg.Type = MessageType(typ)

	switch msg.Type {
	case MessageTypeOsdReadArgs:
		a := &OsdReadArgs{}
		if a.Object, err = r.str(); err != nil {
			return nil, crimsonerrors.ProtocolError("read args object", err)
		}
		if a.Offset, err = r.u64(); err != nil {
			return nil, crimsonerrors.ProtocolError("read args offset", err)
		}
		if a.Length, err = r.u64(); err != nil {
			return nil, crimsonerrors.ProtocolError("read args length", err)
		}
		msg.Read = a
	case MessageTypeOsdReadRes:
		res := &OsdReadRes{}
		if res.ErrorCode, err = r.u32(); err != nil {
			return nil, crimsonerrors.ProtocolError("read res error code", err)
		}
		dataLen, err := r.u64()
		if err != nil {
			return nil, crimsonerrors.ProtocolError("read res data length", err)
		}
		if res.ErrorCode == 0 {
			if len(segments) < 2 || uint64(len(segments[1])) < dataLen {
				return nil, crimsonerrors.ProtocolError("read res data segment", nil)
			}
			res.Data = segments[1][:dataLen]
		}
		msg.ReadRes = res
	case MessageTypeOsdWriteArgs:
		a := &OsdWriteArgs{}
		if a.Object, err = r.str(); err != nil {
			return nil, crimsonerrors.ProtocolError("write args object", err)
		}
		if a.Offset, err = r.u64(); err != nil {
			return nil, crimsonerrors.ProtocolError("write args offset", err)
		}
		if a.Length, err = r.u64(); err != nil {
			return nil, crimsonerrors.ProtocolError("write args length", err)
		}
		if a.Flags, err = r.u32(); err != nil {
			return nil, crimsonerrors.ProtocolError("write args flags", err)
		}
		dataLen, err := r.u64()
		if err != nil {
			return nil, crimsonerrors.ProtocolError("write args data length", err)
		}
		if len(segments) < 2 || uint64(len(segments[1])) < dataLen {
			return nil, crimsonerrors.ProtocolError("write args data segment", nil)
		}
		a.Data = segments[1][:dataLen]
		msg.Write = a
	case MessageTypeOsdWriteRes:
		res := &OsdWriteRes{}
		if res.ErrorCode, err = r.u32(); err != nil {
			return nil, crimsonerrors.ProtocolError("write res error code", err)
		}
		if res.Flags, err = r.u32(); err != nil {
			return nil, crimsonerrors.ProtocolError("write res flags", err)
		}
		msg.WriteRes = res
	default:
		return nil, crimsonerrors.ProtocolError("message type", nil)
	}

	return msg, nil
}

// byteWriter/byteReader are tiny little-endian cursors used only by the
// message codec above; the framing codec in the wire package operates
// one level up, on whole segments.

type byteWriter struct {
	buf []byte
}

func newByteWriter() *byteWriter { return &byteWriter{} }

func (w *byteWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *byteWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *byteWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *byteWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}
func (w *byteWriter) bytes() []byte { return w.buf }

type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{buf: b} }

func (r *byteReader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, errShortRead
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, errShortRead
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, errShortRead
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.buf) {
		return "", errShortRead
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

var errShortRead = crimsonerrors.ProtocolError("message field", nil)
