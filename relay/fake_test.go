/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package relay

import (
	"fmt"
	"testing"
	"time"

	"go.osspkg.com/casecheck"
	"go.osspkg.com/ioutils/data"

	"go.osspkg.com/chatrelay/event"
	"go.osspkg.com/chatrelay/poller"
	"go.osspkg.com/chatrelay/sock"
)

const (
	listenFD  = 3
	consoleFD = sock.Console
)

type fakeConn struct {
	reads   [][]byte
	eof     bool
	recvErr error
	sent    []string
	sendErr error
	// sendLimit caps bytes accepted per Send; -1 means would-block
	sendLimit int
	closed    int
}

type fakeSocket struct {
	conns     map[int]*fakeConn
	pending   []int
	acceptErr error
	listened  string
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{conns: map[int]*fakeConn{
		listenFD:  {},
		consoleFD: {},
	}}
}

func (s *fakeSocket) conn(fd int) *fakeConn {
	c, ok := s.conns[fd]
	if !ok {
		c = &fakeConn{}
		s.conns[fd] = c
	}
	return c
}

func (s *fakeSocket) Listen(address string) (int, error) {
	s.listened = address
	return listenFD, nil
}

func (s *fakeSocket) Accept(int) (int, string, error) {
	if len(s.pending) == 0 {
		if s.acceptErr != nil {
			return -1, "", s.acceptErr
		}
		return -1, "", sock.ErrWouldBlock
	}
	fd := s.pending[0]
	s.pending = s.pending[1:]
	s.conns[fd] = &fakeConn{}
	return fd, fmt.Sprintf("10.0.0.%d:4000%d", fd, fd), nil
}

func (s *fakeSocket) Recv(fd int, b []byte) (int, error) {
	c := s.conn(fd)
	if len(c.reads) > 0 {
		n := copy(b, c.reads[0])
		if n < len(c.reads[0]) {
			c.reads[0] = c.reads[0][n:]
		} else {
			c.reads = c.reads[1:]
		}
		return n, nil
	}
	if c.recvErr != nil {
		return 0, c.recvErr
	}
	if c.eof {
		return 0, nil
	}
	return 0, sock.ErrWouldBlock
}

func (s *fakeSocket) Send(fd int, b []byte) (int, error) {
	c := s.conn(fd)
	if c.sendErr != nil {
		return 0, c.sendErr
	}
	if c.sendLimit < 0 {
		return 0, sock.ErrWouldBlock
	}
	n := len(b)
	if c.sendLimit > 0 && n > c.sendLimit {
		n = c.sendLimit
	}
	c.sent = append(c.sent, string(b[:n]))
	return n, nil
}

func (s *fakeSocket) Close(fd int) error {
	s.conn(fd).closed++
	return nil
}

// fakePoller reports scripted readiness, one map per Wait call.
type fakePoller struct {
	watched  map[int]poller.Readiness
	script   []map[int]poller.Readiness
	timeouts []time.Duration
	closed   bool
}

func newFakePoller() *fakePoller {
	return &fakePoller{watched: map[int]poller.Readiness{}}
}

func (p *fakePoller) Add(fd int, interest poller.Readiness) error {
	if _, ok := p.watched[fd]; ok {
		return fmt.Errorf("fd %d already watched", fd)
	}
	p.watched[fd] = interest
	return nil
}

func (p *fakePoller) Modify(fd int, interest poller.Readiness) error {
	if _, ok := p.watched[fd]; !ok {
		return fmt.Errorf("fd %d not watched", fd)
	}
	p.watched[fd] = interest
	return nil
}

func (p *fakePoller) Del(fd int) error {
	if _, ok := p.watched[fd]; !ok {
		return fmt.Errorf("fd %d not watched", fd)
	}
	delete(p.watched, fd)
	return nil
}

func (p *fakePoller) Wait(timeout time.Duration, fn func(fd int, r poller.Readiness)) (int, error) {
	p.timeouts = append(p.timeouts, timeout)
	if len(p.script) == 0 {
		return 0, nil
	}
	ready := p.script[0]
	p.script = p.script[1:]
	n := 0
	for _, fd := range []int{consoleFD, listenFD} {
		if r, ok := ready[fd]; ok {
			fn(fd, r)
			n++
		}
	}
	for fd := 0; fd < 1024; fd++ {
		if fd == consoleFD || fd == listenFD {
			continue
		}
		if r, ok := ready[fd]; ok {
			fn(fd, r)
			n++
		}
	}
	return n, nil
}

func (p *fakePoller) Close() error {
	p.closed = true
	return nil
}

func (p *fakePoller) ready(m map[int]poller.Readiness) {
	p.script = append(p.script, m)
}

type harness struct {
	t          *testing.T
	relay      *Relay
	sock       *fakeSocket
	poll       *fakePoller
	transcript *data.Buffer
}

func newHarness(t *testing.T, conf Config) *harness {
	h := &harness{
		t:          t,
		sock:       newFakeSocket(),
		poll:       newFakePoller(),
		transcript: data.NewBuffer(0),
	}
	r, err := New(conf, WithSocket(h.sock), WithPoller(h.poll), WithTranscript(h.transcript))
	casecheck.NoError(t, err)
	r.setNonblock = func(int) error { return nil }
	casecheck.NoError(t, r.Open())
	h.relay = r
	return h
}

func (h *harness) step(ready map[int]poller.Readiness) error {
	if ready != nil {
		h.poll.ready(ready)
	}
	return h.relay.iterate()
}

// connect accepts the given descriptors and flushes the join notices.
func (h *harness) connect(fds ...int) {
	h.sock.pending = append(h.sock.pending, fds...)
	casecheck.NoError(h.t, h.step(map[int]poller.Readiness{listenFD: poller.In}))
	casecheck.NoError(h.t, h.step(nil))
	for _, fd := range fds {
		h.sock.conn(fd).sent = nil
	}
}

// queued pops every event left in the queue.
func (h *harness) queued() []*event.Event {
	var out []*event.Event
	for {
		ev, ok := h.relay.queue.Pop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func (h *harness) session(fd int) string {
	e, ok := h.relay.registry.Get(fd)
	casecheck.True(h.t, ok, fd)
	return e.Session
}
