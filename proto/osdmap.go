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

// AddressType distinguishes the two transport families an OSD can be
// reached on (spec §6).
type AddressType uint8

const (
	AddressTypeRDMA AddressType = iota
	AddressTypeIP
)

// Address is one reachable endpoint for an OSD entry.
type Address struct {
	Type AddressType
	Name string
}

// Entry is one OSD's membership record, sorted into OsdMap.Entries by ID.
type Entry struct {
	ID        uint32
	Addresses []Address
}

// OsdMap is the packed, whole-file-rewritten cluster membership map
// edited offline by the map utility (spec §4.7, §6).
type OsdMap struct {
	Epoch   uint32
	Entries []Entry
}
