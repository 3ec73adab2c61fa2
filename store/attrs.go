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

package store

import (
	"sort"

	crimsonerrors "github.com/crimson-osd/crimson/errors"
	"github.com/crimson-osd/crimson/proto"
)

// attrStore holds one namespace's worth of key/value attributes plus the
// cursors currently iterating it. It has no locking of its own; Object
// routes every call onto its own home core via corepool.SubmitWait before
// it reaches here, the same way it guards mutationQueue (spec I1).
type attrStore struct {
	namespaces [proto.NamespaceCount]map[string][]byte
	cursors    map[*AttrCursor]struct{}
}

func newAttrStore() *attrStore {
	s := &attrStore{cursors: make(map[*AttrCursor]struct{})}
	for i := range s.namespaces {
		s.namespaces[i] = make(map[string][]byte)
	}
	return s
}

func (s *attrStore) checkNamespace(ns proto.Namespace) error {
	if ns < 0 || int(ns) >= len(s.namespaces) {
		return crimsonerrors.ErrInvalidArgument
	}
	return nil
}

// GetAttr returns the value bound to key in namespace ns.
func (s *attrStore) GetAttr(ns proto.Namespace, key string) ([]byte, error) {
	if err := s.checkNamespace(ns); err != nil {
		return nil, err
	}
	v, ok := s.namespaces[ns][key]
	if !ok {
		return nil, crimsonerrors.ErrNoSuchAttributeKey
	}
	return v, nil
}

// GetAttrs returns the values bound to keys, in order; the first missing
// key fails the whole call (spec §4.4).
func (s *attrStore) GetAttrs(ns proto.Namespace, keys []string) ([][]byte, error) {
	if err := s.checkNamespace(ns); err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		v, ok := s.namespaces[ns][k]
		if !ok {
			return nil, crimsonerrors.ErrNoSuchAttributeKey
		}
		out = append(out, v)
	}
	return out, nil
}

// SetAttr inserts or replaces key's value in namespace ns.
func (s *attrStore) SetAttr(ns proto.Namespace, key string, value []byte) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	s.namespaces[ns][key] = buf
	return nil
}

// SetAttrs inserts or replaces every pair; since pairs is a map, they
// are applied in no particular order.
func (s *attrStore) SetAttrs(ns proto.Namespace, pairs map[string][]byte) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}
	for k, v := range pairs {
		buf := make([]byte, len(v))
		copy(buf, v)
		s.namespaces[ns][k] = buf
	}
	return nil
}

// RmAttr removes key from namespace ns, invalidating any cursor pointing
// at it (spec I6).
func (s *attrStore) RmAttr(ns proto.Namespace, key string) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}
	if _, ok := s.namespaces[ns][key]; !ok {
		return crimsonerrors.ErrNoSuchAttributeKey
	}
	delete(s.namespaces[ns], key)
	s.invalidateCursorsOn(ns, key)
	return nil
}

// RmAttrs removes every key in keys. Per spec §9/open-question
// resolution, removal is atomic: if any key is missing the whole batch
// fails with no_such_attribute_key and nothing is removed.
func (s *attrStore) RmAttrs(ns proto.Namespace, keys []string) error {
	if err := s.checkNamespace(ns); err != nil {
		return err
	}
	for _, k := range keys {
		if _, ok := s.namespaces[ns][k]; !ok {
			return crimsonerrors.ErrNoSuchAttributeKey
		}
	}
	for _, k := range keys {
		delete(s.namespaces[ns], k)
		s.invalidateCursorsOn(ns, k)
	}
	return nil
}

func (s *attrStore) invalidateCursorsOn(ns proto.Namespace, key string) {
	for c := range s.cursors {
		if c.ns == ns && c.lastKey == key {
			c.invalid = true
		}
	}
}

// AttrCursor is an iteration handle into one namespace, sorted by key
// (spec §4.4). It pins no attribute data; it only becomes permanently
// invalid if the key it last returned is removed. The attrStore keeps a
// strong reference to every cursor it hands out, in its cursors set, for
// the store's whole lifetime; cursors are never dropped from that set.
type AttrCursor struct {
	ns      proto.Namespace
	lastKey string
	invalid bool
}

// EnumerateKeys returns up to toReturn keys at or after the cursor's
// position (or from the start, for a nil cursor), plus a fresh cursor if
// more remain.
func (s *attrStore) EnumerateKeys(ns proto.Namespace, cur *AttrCursor, toReturn int) ([]string, *AttrCursor, error) {
	if err := s.checkNamespace(ns); err != nil {
		return nil, nil, err
	}
	if cur != nil {
		if cur.invalid {
			return nil, nil, crimsonerrors.ErrInvalidCursor
		}
		if cur.ns != ns {
			return nil, nil, crimsonerrors.ErrInvalidArgument
		}
	}
	keys := make([]string, 0, len(s.namespaces[ns]))
	for k := range s.namespaces[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if cur != nil {
		start = sort.SearchStrings(keys, cur.lastKey)
		if start < len(keys) && keys[start] == cur.lastKey {
			start++
		}
	}
	end := start + toReturn
	if end > len(keys) {
		end = len(keys)
	}
	page := keys[start:end]

	var next *AttrCursor
	if end < len(keys) {
		next = &AttrCursor{ns: ns, lastKey: page[len(page)-1]}
		s.cursors[next] = struct{}{}
	}
	return page, next, nil
}

// EnumerateKVs is EnumerateKeys plus the bound value for each key.
func (s *attrStore) EnumerateKVs(ns proto.Namespace, cur *AttrCursor, toReturn int) (map[string][]byte, *AttrCursor, error) {
	keys, next, err := s.EnumerateKeys(ns, cur, toReturn)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		out[k] = s.namespaces[ns][k]
	}
	return out, next, nil
}
