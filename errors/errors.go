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

// Package errors holds the Crimson error taxonomy (spec §7) and its
// mapping onto POSIX errno-style wire codes.
package errors

import "errors"

// Kind identifies one of the error taxonomy entries in spec §7.
type Kind int

const (
	KindNone Kind = iota
	KindNoSuchCollection
	KindNoSuchObject
	KindNoSuchAttributeKey
	KindCollectionExists
	KindObjectExists
	KindOperationNotSupported
	KindOutOfRange
	KindInvalidArgument
	KindInvalidCursor
	KindInvalidHandle
	KindCollectionNotEmpty
	KindProtocolError
)

var (
	ErrNoSuchCollection     = &osdError{kind: KindNoSuchCollection, msg: "no such collection"}
	ErrNoSuchObject         = &osdError{kind: KindNoSuchObject, msg: "no such object"}
	ErrNoSuchAttributeKey   = &osdError{kind: KindNoSuchAttributeKey, msg: "no such attribute key"}
	ErrCollectionExists     = &osdError{kind: KindCollectionExists, msg: "collection already exists"}
	ErrObjectExists         = &osdError{kind: KindObjectExists, msg: "object already exists"}
	ErrOperationNotSupported = &osdError{kind: KindOperationNotSupported, msg: "operation not supported"}
	ErrOutOfRange           = &osdError{kind: KindOutOfRange, msg: "out of range"}
	ErrInvalidArgument      = &osdError{kind: KindInvalidArgument, msg: "invalid argument"}
	ErrInvalidCursor        = &osdError{kind: KindInvalidCursor, msg: "invalid cursor"}
	ErrInvalidHandle        = &osdError{kind: KindInvalidHandle, msg: "invalid handle"}
	ErrCollectionNotEmpty   = &osdError{kind: KindCollectionNotEmpty, msg: "collection not empty"}
	ErrProtocolError        = &osdError{kind: KindProtocolError, msg: "protocol error"}
)

type osdError struct {
	kind Kind
	msg  string
}

func (e *osdError) Error() string { return e.msg }
func (e *osdError) Kind() Kind    { return e.kind }

// kinder is implemented by every error shape that carries a Kind —
// osdError directly, phaseError by reporting KindProtocolError — so
// KindOf can recognize both without knowing their concrete types.
type kinder interface{ Kind() Kind }

// KindOf returns the taxonomy Kind carried by err, walking wrapped
// errors the way errors.Info/errors.Detail do in the teacher's errors
// package. Returns KindNone if err doesn't carry one of ours.
func KindOf(err error) Kind {
	var ke kinder
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return KindNone
}

// Errno maps a Kind onto the POSIX errno this backend's wire protocol
// reports it as (spec §6, §7). Kinds with no natural POSIX analogue
// (invalid_cursor) get a project-local placeholder in the EIO family.
func (k Kind) Errno() uint32 {
	switch k {
	case KindNoSuchCollection, KindNoSuchObject, KindNoSuchAttributeKey:
		return ENOENT
	case KindCollectionExists, KindObjectExists:
		return EEXIST
	case KindOperationNotSupported:
		return ENOTSUP
	case KindOutOfRange, KindInvalidArgument:
		return EINVAL
	case KindCollectionNotEmpty:
		return ENOTEMPTY
	case KindInvalidCursor, KindInvalidHandle:
		return EIO
	case KindProtocolError:
		return EPROTO
	default:
		return 0
	}
}

// A minimal, portable errno table — Crimson never builds against a libc
// directly, so the wire protocol defines its own stable numeric values
// instead of depending on syscall.Errno across platforms.
const (
	ENOENT    = 2
	EIO       = 5
	EEXIST    = 17
	EINVAL    = 22
	ENOTEMPTY = 39
	ENOTSUP   = 95
	EPROTO    = 71
)

// ProtocolError builds a protocol_error carrying the phase label used
// in framing failures (spec §4.5: "segment count", "sizes", "segment N").
func ProtocolError(phase string, cause error) error {
	if cause == nil {
		return &phaseError{phase: phase}
	}
	return &phaseError{phase: phase, cause: cause}
}

type phaseError struct {
	phase string
	cause error
}

func (e *phaseError) Error() string {
	if e.cause == nil {
		return "protocol error at " + e.phase
	}
	return "protocol error at " + e.phase + ": " + e.cause.Error()
}

func (e *phaseError) Unwrap() error { return e.cause }

func (e *phaseError) Is(target error) bool { return target == ErrProtocolError }

func (e *phaseError) Kind() Kind { return KindProtocolError }
