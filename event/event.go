/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package event

import (
	"bytes"
	"fmt"

	"go.osspkg.com/chatrelay/internal"
)

type Kind uint8

const (
	NewConnection Kind = iota
	MessageReceived
	MessageToSend
	Disconnect
	Keypress

	kindCount
)

func (k Kind) String() string {
	switch k {
	case NewConnection:
		return "NewConnection"
	case MessageReceived:
		return "MessageReceived"
	case MessageToSend:
		return "MessageToSend"
	case Disconnect:
		return "Disconnect"
	case Keypress:
		return "Keypress"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) Valid() bool {
	return k < kindCount
}

type (
	// Event is owned by the Queue until it is dequeued and released
	// right after dispatch.
	Event struct {
		Kind Kind
		FD   int
		// Session ties a peer event to one registry entry, so an event
		// outliving its connection is recognised after fd reuse.
		Session string
		// Attempt counts how many times a send was deferred.
		Attempt int

		payload *Payload
	}

	// Payload is a pooled byte buffer with single release semantics.
	Payload struct {
		buf *bytes.Buffer
	}
)

func New(kind Kind, fd int, session string) *Event {
	return &Event{Kind: kind, FD: fd, Session: session}
}

// NewMessage creates a MessageToSend event holding its own copy of b.
func NewMessage(fd int, session string, b []byte) *Event {
	ev := New(MessageToSend, fd, session)
	ev.payload = NewPayload(b)
	return ev
}

func (e *Event) Payload() *Payload {
	return e.payload
}

// Bytes returns the payload content, nil when there is none or it was released.
func (e *Event) Bytes() []byte {
	if e.payload == nil {
		return nil
	}
	return e.payload.Bytes()
}

// Detach hands the payload over to the caller, typically to move it into a
// follow-up event. The event no longer releases it.
func (e *Event) Detach() *Payload {
	p := e.payload
	e.payload = nil
	return p
}

func (e *Event) Attach(p *Payload) *Event {
	e.payload = p
	return e
}

// Release frees the payload; repeated calls are no-ops.
func (e *Event) Release() {
	if e.payload != nil {
		e.payload.Release()
	}
}

func (e *Event) String() string {
	return fmt.Sprintf("%s{fd=%d, len=%d}", e.Kind, e.FD, len(e.Bytes()))
}

func NewPayload(chunks ...[]byte) *Payload {
	p := &Payload{buf: internal.PayloadPool.Get()}
	for _, b := range chunks {
		p.buf.Write(b)
	}
	return p
}

func (p *Payload) Bytes() []byte {
	if p.buf == nil {
		return nil
	}
	return p.buf.Bytes()
}

func (p *Payload) Len() int {
	if p.buf == nil {
		return 0
	}
	return p.buf.Len()
}

// Advance drops the first n bytes, used after a partial write.
func (p *Payload) Advance(n int) {
	if p.buf != nil {
		p.buf.Next(n)
	}
}

// Release returns the buffer to the pool and reports whether this call did it.
func (p *Payload) Release() bool {
	if p.buf == nil {
		return false
	}
	internal.PayloadPool.Put(p.buf)
	p.buf = nil
	return true
}

func (p *Payload) Released() bool {
	return p.buf == nil
}
