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

// Package osdmap implements the offline cluster-membership map editor
// (spec §4.7): a packed {epoch, entries} file rewritten whole at offset
// zero on every mutation.
package osdmap

import (
	"os"
	"sort"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/proto"
)

// Load reads and decodes the OsdMap stored at path.
func Load(path string) (*proto.OsdMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &proto.OsdMap{}
	if err := m.Unmarshal(data); err != nil {
		return nil, err
	}
	return m, nil
}

// Save rewrites the file at path from offset zero with m's packed form
// (spec §4.7: "every mutation... rewrites the file from offset zero").
func Save(path string, m *proto.OsdMap) error {
	return os.WriteFile(path, m.Marshal(), 0o644)
}

// Create writes a brand-new, empty OsdMap (epoch 0, no entries) to path.
func Create(path string) (*proto.OsdMap, error) {
	m := &proto.OsdMap{}
	if err := Save(path, m); err != nil {
		return nil, err
	}
	return m, nil
}

func findEntry(m *proto.OsdMap, id uint32) int {
	return sort.Search(len(m.Entries), func(i int) bool { return m.Entries[i].ID >= id })
}

// AddOSD inserts a new entry with the given id and addresses at its
// sorted position, bumping epoch. It fails if id already exists.
func AddOSD(m *proto.OsdMap, id uint32, addrs []proto.Address) error {
	i := findEntry(m, id)
	if i < len(m.Entries) && m.Entries[i].ID == id {
		return crimsonerrors.ErrObjectExists
	}
	entries := make([]proto.Entry, 0, len(m.Entries)+1)
	entries = append(entries, m.Entries[:i]...)
	entries = append(entries, proto.Entry{ID: id, Addresses: addrs})
	entries = append(entries, m.Entries[i:]...)
	m.Entries = entries
	m.Epoch++
	return nil
}

// RemoveOSD deletes the entry with the given id, bumping epoch. It
// fails with no_such_object if id is not present.
func RemoveOSD(m *proto.OsdMap, id uint32) error {
	i := findEntry(m, id)
	if i >= len(m.Entries) || m.Entries[i].ID != id {
		return crimsonerrors.ErrNoSuchObject
	}
	m.Entries = append(m.Entries[:i], m.Entries[i+1:]...)
	m.Epoch++
	return nil
}

// AddAddrs appends addrs to the existing entry with the given id,
// bumping epoch. It fails with invalid_argument if addrs is empty, and
// with object_exists if any of addrs is already present on the entry —
// matching osdmaptool's "add-addrs command found existing address".
func AddAddrs(m *proto.OsdMap, id uint32, addrs []proto.Address) error {
	if len(addrs) == 0 {
		return crimsonerrors.ErrInvalidArgument
	}
	i := findEntry(m, id)
	if i >= len(m.Entries) || m.Entries[i].ID != id {
		return crimsonerrors.ErrNoSuchObject
	}
	existing := make(map[proto.Address]bool, len(m.Entries[i].Addresses))
	for _, a := range m.Entries[i].Addresses {
		existing[a] = true
	}
	for _, a := range addrs {
		if existing[a] {
			return crimsonerrors.ErrObjectExists
		}
	}
	m.Entries[i].Addresses = append(m.Entries[i].Addresses, addrs...)
	m.Epoch++
	return nil
}

// RemoveAddrs removes every address of addrs from the entry with the
// given id, bumping epoch. It fails with invalid_argument if addrs is
// empty, and with no_such_object if any of addrs is not present on the
// entry — matching osdmaptool's "remove-addrs found no rdma/ip address".
func RemoveAddrs(m *proto.OsdMap, id uint32, addrs []proto.Address) error {
	if len(addrs) == 0 {
		return crimsonerrors.ErrInvalidArgument
	}
	i := findEntry(m, id)
	if i >= len(m.Entries) || m.Entries[i].ID != id {
		return crimsonerrors.ErrNoSuchObject
	}
	present := make(map[proto.Address]bool, len(m.Entries[i].Addresses))
	for _, a := range m.Entries[i].Addresses {
		present[a] = true
	}
	for _, a := range addrs {
		if !present[a] {
			return crimsonerrors.ErrNoSuchObject
		}
	}
	remove := make(map[proto.Address]bool, len(addrs))
	for _, a := range addrs {
		remove[a] = true
	}
	kept := m.Entries[i].Addresses[:0]
	for _, a := range m.Entries[i].Addresses {
		if !remove[a] {
			kept = append(kept, a)
		}
	}
	m.Entries[i].Addresses = kept
	m.Epoch++
	return nil
}
