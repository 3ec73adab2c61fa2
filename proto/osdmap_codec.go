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
	crimsonerrors "github.com/crimson-osd/crimson/errors"
)

// Marshal packs the OsdMap exactly as the offline map utility rewrites
// it: epoch, then entries (already expected sorted by ID by the caller).
func (m *OsdMap) Marshal() []byte {
	w := newByteWriter()
	w.u32(m.Epoch)
	w.u32(uint32(len(m.Entries)))
	for _, e := range m.Entries {
		w.u32(e.ID)
		w.u32(uint32(len(e.Addresses)))
		for _, a := range e.Addresses {
			w.u8(uint8(a.Type))
			w.str(a.Name)
		}
	}
	return w.bytes()
}

// Unmarshal decodes a packed OsdMap file image produced by Marshal.
func (m *OsdMap) Unmarshal(data []byte) error {
	r := newByteReader(data)
	epoch, err := r.u32()
	if err != nil {
		return crimsonerrors.ProtocolError("osdmap epoch", err)
	}
	entryCount, err := r.u32()
	if err != nil {
		return crimsonerrors.ProtocolError("osdmap entry count", err)
	}
	var entries []Entry
	for i := uint32(0); i < entryCount; i++ {
		var e Entry
		if e.ID, err = r.u32(); err != nil {
			return crimsonerrors.ProtocolError("osdmap entry id", err)
		}
		addrCount, err := r.u32()
		if err != nil {
			return crimsonerrors.ProtocolError("osdmap address count", err)
		}
		e.Addresses = make([]Address, 0, addrCount)
		for j := uint32(0); j < addrCount; j++ {
			var a Address
			typ, err := r.u8()
			if err != nil {
				return crimsonerrors.ProtocolError("osdmap address type", err)
			}
			a.Type = AddressType(typ)
			if a.Name, err = r.str(); err != nil {
				return crimsonerrors.ProtocolError("osdmap address name", err)
			}
			e.Addresses = append(e.Addresses, a)
		}
		entries = append(entries, e)
	}

	m.Epoch = epoch
	m.Entries = entries
	return nil
}
