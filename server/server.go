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

package server

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/crimson-osd/crimson/corepool"
	"github.com/crimson-osd/crimson/dispatch"
	"github.com/crimson-osd/crimson/store"
	"github.com/crimson-osd/crimson/wire"
)

// Config configures one OSD process.
type Config struct {
	Cores      int    `json:"cores"`
	ListenAddr string `json:"listen_addr"`
}

// Server owns the core pool, the object store, and the wire listener
// that feeds requests into the dispatcher (spec §4.6, §5).
type Server struct {
	cfg        *Config
	pool       *corepool.Pool
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	listener   wire.Listener
}

// NewServer builds a Server with its own core pool and Store. It does
// not start listening until Serve is called.
func NewServer(cfg *Config) *Server {
	cores := cfg.Cores
	if cores < 1 {
		cores = 1
	}
	pool := corepool.New(cores)
	s := store.New(pool)
	return &Server{
		cfg:        cfg,
		pool:       pool,
		store:      s,
		dispatcher: dispatch.New(s),
	}
}

// Serve starts accepting connections on cfg.ListenAddr until the
// listener closes, serving each connection in its own goroutine that
// dispatches that connection's messages one after another.
func (s *Server) Serve() error {
	l, err := wire.NewSocketListener(s.cfg.ListenAddr, wire.DefaultMaxSegmentWords)
	if err != nil {
		return err
	}
	s.listener = l
	log.Info("osd wire server listening at:", s.cfg.ListenAddr)

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				log.Info("osd wire server stopped accepting:", err)
				return
			}
			go s.serveConn(conn)
		}
	}()
	return nil
}

func (s *Server) serveConn(conn wire.Connection) {
	defer conn.Close()
	ctx := context.Background()
	for {
		req, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := s.dispatcher.Handle(ctx, req)
		if err := conn.WriteMessage(reply); err != nil {
			return
		}
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// UUID returns the process Store's identifier.
func (s *Server) UUID() string { return s.store.UUID.String() }

// Cores returns the number of worker cores the Store is sharded across.
func (s *Server) Cores() int { return s.pool.Count() }
