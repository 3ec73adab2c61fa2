/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# Crimson: a per-core sharded object-storage daemon

## Why build this?

1, explore how far a single-process, per-core-sharded object store can
go before needing a replicated, multi-node design — inspired by Ceph's
OSD layer but stripped to a single host.

2, cooperative, message-passing concurrency instead of shared-memory
locking: one worker goroutine per logical core, cross-core calls submit
a closure and wait rather than take a lock.

3, copy-on-write page sharing so a reader holding bytes from before a
concurrent overwrite keeps seeing them, without GC-defeating manual
memory management.

## Data Model

* Store, the process-wide root: one core pool, one set of Collections.

* Collection, identified by a cid, pinned to a single home core chosen
by hashing the cid. Holds a set of Objects.

* Object, identified by an oid within a Collection, itself pinned to a
single home core (independently of its Collection's). Holds a sparse
byte range, a namespaced attribute store, and an ordered mutation
queue.

* PageSet / PageSlice, the per-core page storage backing one Object: a
hole-sparse, fixed-size page layout striped across every core so large
sequential I/O fans out instead of serializing on one worker.

## Architecture

A Crimson process runs exactly one role: OSD. It listens for the wire
protocol on a TCP socket and exposes admin stats and Prometheus metrics
over HTTP.

### Concurrency

a fixed core pool, no locks in the hot path

### Consistency

copy-on-write pages, an AsyncMutation queue per object enforcing commit
barriers

### Durability

none — Crimson is an in-memory prototype; nothing survives a restart

## Building Blocks

* golang.org/x/sync (errgroup, semaphore)
* Prometheus
* cobra (offline tooling)
* uuid

*/

package crimson
