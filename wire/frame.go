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

// Package wire implements Crimson's length-prefixed segmented message
// framing (spec §4.5) and the Connection abstraction built on top of it
// (spec §4.6): one frame per message, transported over either a real
// socket or an in-process pipe pair.
package wire

import (
	"encoding/binary"
	"io"
	"strconv"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
)

const (
	wordSize = 8

	// DefaultMaxSegmentWords bounds a single segment to ~16 MiB, the
	// sanity ceiling spec §4.5 calls for; a segment size above this is
	// treated the same as a short read: protocol_error.
	DefaultMaxSegmentWords = (16 << 20) / wordSize
)

// ReadFrame decodes one length-prefixed segmented message from r
// (spec §4.5):
//
//  1. read u32: one less than the number of segments
//  2. read N*u32: each segment's size, in words
//  3. if N is even, read 4 bytes of padding
//  4. for each segment, read its words
//
// maxSegmentWords caps a single segment's size; pass 0 for DefaultMaxSegmentWords.
func ReadFrame(r io.Reader, maxSegmentWords uint32) ([][]byte, error) {
	if maxSegmentWords == 0 {
		maxSegmentWords = DefaultMaxSegmentWords
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, crimsonerrors.ProtocolError("segment count", err)
	}
	count := binary.LittleEndian.Uint32(countBuf[:]) + 1

	sizes := make([]uint32, count)
	sizeBuf := make([]byte, count*4)
	if _, err := io.ReadFull(r, sizeBuf); err != nil {
		return nil, crimsonerrors.ProtocolError("sizes", err)
	}
	for i := uint32(0); i < count; i++ {
		sizes[i] = binary.LittleEndian.Uint32(sizeBuf[i*4 : i*4+4])
	}

	if count%2 == 0 {
		var pad [4]byte
		if _, err := io.ReadFull(r, pad[:]); err != nil {
			return nil, crimsonerrors.ProtocolError("sizes", err)
		}
	}

	segments := make([][]byte, count)
	for i, words := range sizes {
		if words == 0 {
			return nil, crimsonerrors.ProtocolError(segmentPhase(i), nil)
		}
		if words > maxSegmentWords {
			return nil, crimsonerrors.ProtocolError(segmentPhase(i), nil)
		}
		buf := make([]byte, uint64(words)*wordSize)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, crimsonerrors.ProtocolError(segmentPhase(i), err)
		}
		segments[i] = buf
	}

	return segments, nil
}

// WriteFrame encodes segments using the same layout ReadFrame decodes.
// Each segment is padded with zero bytes up to a whole word.
func WriteFrame(w io.Writer, segments [][]byte) error {
	count := uint32(len(segments))
	if count == 0 {
		return crimsonerrors.ProtocolError("segment count", nil)
	}

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], count-1)
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}

	wordCounts := make([]uint32, count)
	sizeBuf := make([]byte, count*4)
	for i, seg := range segments {
		words := (uint32(len(seg)) + wordSize - 1) / wordSize
		wordCounts[i] = words
		binary.LittleEndian.PutUint32(sizeBuf[i*4:i*4+4], words)
	}
	if _, err := w.Write(sizeBuf); err != nil {
		return err
	}

	if count%2 == 0 {
		var pad [4]byte
		if _, err := w.Write(pad[:]); err != nil {
			return err
		}
	}

	for i, seg := range segments {
		if _, err := w.Write(seg); err != nil {
			return err
		}
		padBytes := int(wordCounts[i])*wordSize - len(seg)
		if padBytes > 0 {
			if _, err := w.Write(make([]byte, padBytes)); err != nil {
				return err
			}
		}
	}

	return nil
}

func segmentPhase(i int) string {
	return "segment " + strconv.Itoa(i)
}
