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

// Package proto holds the shapes shared by every Crimson component: the
// identifiers routed across cores, the attribute namespaces, and the
// wire and on-disk message formats (spec §3, §6).
package proto

const (
	// PageSize is the fixed unit of page-cache storage (spec §3).
	PageSize = 64 * 1024

	// StripeWidth is the number of consecutive pages (W) owned by one
	// core before ownership round-robins to the next (spec §4.2).
	StripeWidth = 16
)

// Namespace selects one of an Object's two disjoint attribute scopes.
type Namespace int

const (
	NamespaceXattr Namespace = iota
	NamespaceOmap
	// NamespaceCount is the number of valid namespaces; ns >= NamespaceCount
	// is invalid_argument (spec §4.4).
	NamespaceCount
)

// Cid identifies a Collection; Oid identifies an Object within one.
type Cid = string
type Oid = string
