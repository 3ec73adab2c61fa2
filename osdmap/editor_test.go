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

package osdmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/proto"
)

func TestCreateLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osdmap")

	m, err := Create(path)
	require.NoError(t, err)
	require.EqualValues(t, 0, m.Epoch)
	require.Empty(t, m.Entries)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, m, loaded)
}

func TestAddOSDKeepsEntriesSortedAndBumpsEpoch(t *testing.T) {
	m := &proto.OsdMap{}

	require.NoError(t, AddOSD(m, 5, []proto.Address{{Type: proto.AddressTypeIP, Name: "10.0.0.5"}}))
	require.NoError(t, AddOSD(m, 1, []proto.Address{{Type: proto.AddressTypeIP, Name: "10.0.0.1"}}))
	require.NoError(t, AddOSD(m, 3, []proto.Address{{Type: proto.AddressTypeRDMA, Name: "rdma3"}}))

	require.EqualValues(t, 3, m.Epoch)
	ids := make([]uint32, len(m.Entries))
	for i, e := range m.Entries {
		ids[i] = e.ID
	}
	require.Equal(t, []uint32{1, 3, 5}, ids)
}

func TestAddOSDExistingIDFails(t *testing.T) {
	m := &proto.OsdMap{}
	require.NoError(t, AddOSD(m, 1, nil))
	err := AddOSD(m, 1, nil)
	require.ErrorIs(t, err, crimsonerrors.ErrObjectExists)
}

func TestRemoveOSDMissingFails(t *testing.T) {
	m := &proto.OsdMap{}
	err := RemoveOSD(m, 1)
	require.ErrorIs(t, err, crimsonerrors.ErrNoSuchObject)
}

func TestRemoveOSD(t *testing.T) {
	m := &proto.OsdMap{}
	require.NoError(t, AddOSD(m, 1, nil))
	require.NoError(t, AddOSD(m, 2, nil))

	require.NoError(t, RemoveOSD(m, 1))
	require.Len(t, m.Entries, 1)
	require.EqualValues(t, 2, m.Entries[0].ID)
	require.EqualValues(t, 3, m.Epoch)
}

func TestAddAndRemoveAddrs(t *testing.T) {
	m := &proto.OsdMap{}
	require.NoError(t, AddOSD(m, 1, []proto.Address{{Type: proto.AddressTypeIP, Name: "a"}}))

	require.NoError(t, AddAddrs(m, 1, []proto.Address{{Type: proto.AddressTypeIP, Name: "b"}}))
	require.Len(t, m.Entries[0].Addresses, 2)

	require.NoError(t, RemoveAddrs(m, 1, []proto.Address{{Type: proto.AddressTypeIP, Name: "a"}}))
	require.Equal(t, []proto.Address{{Type: proto.AddressTypeIP, Name: "b"}}, m.Entries[0].Addresses)
}

func TestAddAddrsRejectsEmptyList(t *testing.T) {
	m := &proto.OsdMap{}
	require.NoError(t, AddOSD(m, 1, nil))
	err := AddAddrs(m, 1, nil)
	require.ErrorIs(t, err, crimsonerrors.ErrInvalidArgument)
}

func TestAddAddrsRejectsExistingAddress(t *testing.T) {
	m := &proto.OsdMap{}
	addr := proto.Address{Type: proto.AddressTypeIP, Name: "a"}
	require.NoError(t, AddOSD(m, 1, []proto.Address{addr}))

	err := AddAddrs(m, 1, []proto.Address{addr})
	require.ErrorIs(t, err, crimsonerrors.ErrObjectExists)
	require.Len(t, m.Entries[0].Addresses, 1)
}

func TestRemoveAddrsRejectsEmptyList(t *testing.T) {
	m := &proto.OsdMap{}
	require.NoError(t, AddOSD(m, 1, []proto.Address{{Type: proto.AddressTypeIP, Name: "a"}}))
	err := RemoveAddrs(m, 1, nil)
	require.ErrorIs(t, err, crimsonerrors.ErrInvalidArgument)
}

func TestRemoveAddrsRejectsAbsentAddress(t *testing.T) {
	m := &proto.OsdMap{}
	require.NoError(t, AddOSD(m, 1, []proto.Address{{Type: proto.AddressTypeIP, Name: "a"}}))

	err := RemoveAddrs(m, 1, []proto.Address{{Type: proto.AddressTypeIP, Name: "missing"}})
	require.ErrorIs(t, err, crimsonerrors.ErrNoSuchObject)
	require.Len(t, m.Entries[0].Addresses, 1)
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	m := &proto.OsdMap{
		Epoch: 7,
		Entries: []proto.Entry{
			{ID: 1, Addresses: []proto.Address{{Type: proto.AddressTypeRDMA, Name: "r1"}}},
			{ID: 2, Addresses: []proto.Address{{Type: proto.AddressTypeIP, Name: "10.0.0.2"}, {Type: proto.AddressTypeIP, Name: "10.0.0.3"}}},
		},
	}

	var decoded proto.OsdMap
	require.NoError(t, decoded.Unmarshal(m.Marshal()))
	require.Equal(t, m, &decoded)
}
