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
	"io"
	"net"
	"sync"

	"github.com/crimson-osd/crimson/proto"
)

// Connection exposes the message-level read/write pair spec §4.6
// describes, over either a real duplex stream or an in-process pair.
type Connection interface {
	// ReadMessage blocks for the next decoded message.
	ReadMessage() (*proto.Message, error)
	// WriteMessage encodes and sends msg, acknowledging once the bytes
	// are handed to the transport (not once the peer applies them —
	// that acknowledgement is carried in the reply message itself).
	WriteMessage(msg *proto.Message) error
	Close() error
}

// Listener accepts incoming Connections (spec §4.6: "listener variants
// symmetrically expose accept()").
type Listener interface {
	Accept() (Connection, error)
	Close() error
}

// streamConnection is the real-socket implementation, built on any
// io.ReadWriteCloser (a *net.TCPConn in production).
type streamConnection struct {
	rwc             io.ReadWriteCloser
	maxSegmentWords uint32

	writeMu sync.Mutex
}

// NewStreamConnection wraps rwc (typically a net.Conn) in the frame
// codec. maxSegmentWords of 0 uses DefaultMaxSegmentWords.
func NewStreamConnection(rwc io.ReadWriteCloser, maxSegmentWords uint32) Connection {
	return &streamConnection{rwc: rwc, maxSegmentWords: maxSegmentWords}
}

func (c *streamConnection) ReadMessage() (*proto.Message, error) {
	segments, err := ReadFrame(c.rwc, c.maxSegmentWords)
	if err != nil {
		return nil, err
	}
	return proto.DecodeMessage(segments)
}

func (c *streamConnection) WriteMessage(msg *proto.Message) error {
	segments, err := proto.EncodeMessage(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return WriteFrame(c.rwc, segments)
}

func (c *streamConnection) Close() error { return c.rwc.Close() }

// socketListener adapts a net.Listener to Listener.
type socketListener struct {
	ln              net.Listener
	maxSegmentWords uint32
}

// NewSocketListener binds addr and returns a Listener whose accepted
// Connections frame messages over TCP.
func NewSocketListener(addr string, maxSegmentWords uint32) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &socketListener{ln: ln, maxSegmentWords: maxSegmentWords}, nil
}

func (l *socketListener) Accept() (Connection, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewStreamConnection(conn, l.maxSegmentWords), nil
}

func (l *socketListener) Close() error { return l.ln.Close() }

// pipeConnection is the in-process implementation used by tests: two
// pipeConnections share a pair of channels, one per direction, so no
// actual byte framing occurs — messages are handed across directly.
// Close affects only the end it is called on: it fails that end's
// pending and later ReadMessage/WriteMessage calls, but the peer is not
// notified, so the peer's ReadMessage keeps waiting instead of seeing
// the EOF a closed socket would give it.
type pipeConnection struct {
	out    chan<- *proto.Message
	in     <-chan *proto.Message
	closed chan struct{}
	once   sync.Once
}

// NewPipePair returns two directly-connected Connections for testing
// the dispatcher and client logic without a real socket.
func NewPipePair() (Connection, Connection) {
	ab := make(chan *proto.Message, 16)
	ba := make(chan *proto.Message, 16)
	a := &pipeConnection{out: ab, in: ba, closed: make(chan struct{})}
	b := &pipeConnection{out: ba, in: ab, closed: make(chan struct{})}
	return a, b
}

func (p *pipeConnection) ReadMessage() (*proto.Message, error) {
	select {
	case msg, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-p.closed:
		return nil, io.ErrClosedPipe
	}
}

func (p *pipeConnection) WriteMessage(msg *proto.Message) error {
	select {
	case p.out <- msg:
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipeConnection) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// pipeListener hands out pre-connected pipeConnections; it exists so
// tests can exercise the Listener interface symmetrically with the
// socket implementation.
type pipeListener struct {
	conns chan Connection
	done  chan struct{}
}

// NewPipeListener returns a Listener together with a Dial function that
// creates a new connected pair and hands one end to the listener.
func NewPipeListener() (Listener, func() Connection) {
	l := &pipeListener{conns: make(chan Connection, 16), done: make(chan struct{})}
	dial := func() Connection {
		client, server := NewPipePair()
		l.conns <- server
		return client
	}
	return l, dial
}

func (l *pipeListener) Accept() (Connection, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, io.ErrClosedPipe
	}
}

func (l *pipeListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}
