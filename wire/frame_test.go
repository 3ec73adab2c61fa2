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
	"bytes"
	"testing"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := [][][]byte{
		{{1, 2, 3, 4, 5, 6, 7, 8}},
		{{1}, {2, 3}},
		{{1, 2, 3}, {4, 5, 6, 7, 8, 9, 10}, {11}},
		{bytes.Repeat([]byte{0xAB}, 123)},
	}

	for _, segments := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, segments))

		got, err := ReadFrame(&buf, 0)
		require.NoError(t, err)
		require.Equal(t, len(segments), len(got))
		for i, seg := range segments {
			require.True(t, bytes.Equal(seg, got[i][:len(seg)]), "segment %d mismatch", i)
		}
	}
}

func TestFrameShortReadIsProtocolError(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 2}), 0)
	require.Error(t, err)
	require.ErrorIs(t, err, crimsonerrors.ErrProtocolError)
}

func TestFrameZeroSegmentSizeIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0}) // count-1 = 0 -> 1 segment (odd count, no padding)
	buf.Write([]byte{0, 0, 0, 0}) // size 0 words

	_, err := ReadFrame(&buf, 0)
	require.Error(t, err)
	require.ErrorIs(t, err, crimsonerrors.ErrProtocolError)
}

func TestFrameOversizeSegmentIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, [][]byte{make([]byte, 64)}))

	_, err := ReadFrame(&buf, 1) // cap at 1 word, but segment needs 8
	require.Error(t, err)
	require.ErrorIs(t, err, crimsonerrors.ErrProtocolError)
}
