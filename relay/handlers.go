/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package relay

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"go.osspkg.com/errors"
	"go.osspkg.com/logx"

	"go.osspkg.com/chatrelay/event"
	"go.osspkg.com/chatrelay/internal"
	"go.osspkg.com/chatrelay/poller"
	"go.osspkg.com/chatrelay/sock"
)

// peer resolves a peer event to its live registry entry. Events left over
// from a closed connection, or aimed at a reused descriptor, do not match.
func (v *Relay) peer(ev *event.Event) (Entry, bool) {
	e, ok := v.registry.Get(ev.FD)
	if !ok || e.Role != RolePeer || e.Session != ev.Session {
		return Entry{}, false
	}
	return e, true
}

// fanout queues one independent copy of b for every peer except source.
func (v *Relay) fanout(source int, b []byte) {
	v.registry.Recipients(source, func(e Entry) {
		v.queue.Push(event.NewMessage(e.FD, e.Session, b))
	})
}

func (v *Relay) print(format string, args ...any) {
	fmt.Fprintf(v.transcript, format, args...) //nolint: errcheck
}

// handleAccept takes every pending connection until accept would block.
func (v *Relay) handleAccept(ev *event.Event) error {
	for {
		fd, addr, err := v.sock.Accept(ev.FD)
		if err != nil {
			if errors.Is(err, sock.ErrWouldBlock) {
				return nil
			}
			return errors.Wrapf(event.ErrEndServer, "accept: %s", err.Error())
		}

		peer := Entry{FD: fd, Role: RolePeer, Session: uuid.NewString(), Addr: addr}
		if !v.registry.Add(peer) {
			logx.Warn("Connection rejected, registry full", "fd", fd, "addr", addr, "max", v.registry.Cap())
			internal.WriteErrLog("Close rejected connection", v.sock.Close(fd), addr)
			continue
		}
		if err = v.poll.Add(fd, poller.In); err != nil {
			v.registry.Remove(fd)
			logx.Warn("Connection rejected, poller", "err", err, "fd", fd, "addr", addr)
			internal.WriteErrLog("Close rejected connection", v.sock.Close(fd), addr)
			continue
		}

		logx.Info("Peer joined", "fd", fd, "addr", addr, "session", peer.Session)
		msg := fmt.Sprintf("FD %d has entered the chat room.\n", fd)
		v.print("%s", msg)
		v.fanout(fd, []byte(msg))
	}
}

// handleReceive reads until the socket would block, the peer closes, or a
// hard error occurs. Each chunk is fanned out verbatim.
func (v *Relay) handleReceive(ev *event.Event) error {
	peer, ok := v.peer(ev)
	if !ok {
		return nil
	}
	for {
		n, err := v.sock.Recv(ev.FD, v.buff.Slice)
		if err != nil {
			if errors.Is(err, sock.ErrWouldBlock) {
				return nil
			}
			internal.WriteErrLog("Peer recv", err, peer.Addr)
			v.queue.Push(event.New(event.Disconnect, ev.FD, ev.Session))
			return nil
		}
		if n == 0 {
			logx.Info("Peer closed connection", "fd", ev.FD, "addr", peer.Addr)
			v.queue.Push(event.New(event.Disconnect, ev.FD, ev.Session))
			return nil
		}

		chunk := v.buff.Slice[:n]
		v.print("%s:%d - %s\n", peer.Addr, peer.FD, bytes.TrimRight(chunk, "\r\n"))
		v.fanout(ev.FD, chunk)
	}
}

// handleSend makes one write attempt. A would-block or partial write defers
// the unsent tail to the next generation and blocks the session: until the
// tail is fully written or dropped, every other send to that peer is deferred
// behind it so messages never interleave on the wire.
func (v *Relay) handleSend(ev *event.Event) error {
	peer, ok := v.peer(ev)
	if !ok {
		return nil
	}
	b := ev.Bytes()
	if len(b) == 0 {
		return nil
	}

	// only a tail carries a non-zero attempt
	if _, blocked := v.blocked[ev.Session]; blocked && ev.Attempt == 0 {
		v.postpone(ev, 0, 0)
		return nil
	}

	n, err := v.sock.Send(ev.FD, b)
	switch {
	case err == nil && n >= len(b):
		delete(v.blocked, ev.Session)
		return nil

	case err == nil || errors.Is(err, sock.ErrWouldBlock):
		if ev.Attempt >= v.conf.retries() {
			delete(v.blocked, ev.Session)
			logx.Warn("Peer send dropped", "fd", ev.FD, "addr", peer.Addr, "bytes", len(b)-n)
			return nil
		}
		v.blocked[ev.Session] = struct{}{}
		if !v.postpone(ev, n, ev.Attempt+1) {
			delete(v.blocked, ev.Session)
		}
		return nil

	default:
		delete(v.blocked, ev.Session)
		internal.WriteErrLog("Peer send", err, peer.Addr)
		ev.Release()
		v.queue.Push(event.New(event.Disconnect, ev.FD, ev.Session))
		return nil
	}
}

func (v *Relay) postpone(ev *event.Event, written, attempt int) bool {
	p := ev.Detach()
	p.Advance(written)
	next := event.New(event.MessageToSend, ev.FD, ev.Session).Attach(p)
	next.Attempt = attempt
	return v.queue.Push(next)
}

// handleDisconnect closes a peer, compacts the registry and tells the others.
func (v *Relay) handleDisconnect(ev *event.Event) error {
	peer, ok := v.peer(ev)
	if !ok {
		return nil
	}
	if err := errors.Wrap(v.poll.Del(ev.FD), v.sock.Close(ev.FD)); err != nil {
		logx.Warn("Peer close", "err", err, "fd", ev.FD, "addr", peer.Addr)
	}
	v.registry.Remove(ev.FD)
	delete(v.blocked, ev.Session)

	logx.Info("Peer left", "fd", ev.FD, "addr", peer.Addr, "session", peer.Session)
	msg := fmt.Sprintf("FD %d has left the chat room.\n", ev.FD)
	v.print("%s", msg)
	v.fanout(ev.FD, []byte(msg))
	return nil
}

// handleKeypress broadcasts one chunk of console input as an operator message.
func (v *Relay) handleKeypress(ev *event.Event) error {
	n, err := v.sock.Recv(ev.FD, v.buff.Slice)
	if err != nil {
		if errors.Is(err, sock.ErrWouldBlock) {
			return nil
		}
		logx.Warn("Console read, operator input disabled", "err", err)
		v.muteConsole(ev.FD)
		return nil
	}
	if n == 0 {
		logx.Info("Console closed, operator input disabled")
		v.muteConsole(ev.FD)
		return nil
	}

	msg := make([]byte, 0, len(OperatorPrefix)+n)
	msg = append(msg, OperatorPrefix...)
	msg = append(msg, v.buff.Slice[:n]...)
	v.fanout(ev.FD, msg)
	return nil
}

func (v *Relay) muteConsole(fd int) {
	v.registry.SetInterest(fd, 0)
	if err := v.poll.Modify(fd, 0); err != nil {
		logx.Warn("Console mute", "err", err)
	}
}
