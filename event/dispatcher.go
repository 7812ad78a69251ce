/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package event

import (
	"fmt"

	"go.osspkg.com/errors"
	"go.osspkg.com/logx"
)

// ErrEndServer is the only handler result that stops the readiness loop.
var ErrEndServer = errors.New("end of server")

type (
	Handler interface {
		Handle(ev *Event) error
	}

	HandlerFunc func(ev *Event) error

	// Dispatcher keeps the subscription table. Handlers for one kind run in
	// registration order.
	Dispatcher struct {
		subs [kindCount][]Handler
	}
)

func (f HandlerFunc) Handle(ev *Event) error {
	return f(ev)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func (d *Dispatcher) Subscribe(kind Kind, h Handler) error {
	if !kind.Valid() {
		return fmt.Errorf("subscribe: unknown event kind %s", kind)
	}
	if h == nil {
		return fmt.Errorf("subscribe %s: handler is empty", kind)
	}
	d.subs[kind] = append(d.subs[kind], h)
	return nil
}

func (d *Dispatcher) Subscribed(kind Kind) int {
	if !kind.Valid() {
		return 0
	}
	return len(d.subs[kind])
}

// Dispatch runs every handler subscribed to the event kind. A failing or
// panicking handler is logged and does not stop the rest. ErrEndServer is
// returned when any handler raised it.
func (d *Dispatcher) Dispatch(ev *Event) error {
	if ev == nil || !ev.Kind.Valid() {
		return nil
	}
	var end error
	for _, h := range d.subs[ev.Kind] {
		err := call(h, ev)
		switch {
		case err == nil:
		case errors.Is(err, ErrEndServer):
			end = ErrEndServer
		default:
			logx.Error("Dispatch event", "err", err, "kind", ev.Kind.String(), "fd", ev.FD)
		}
	}
	return end
}

func call(h Handler, ev *Event) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("handler panic: %+v", e)
		}
	}()
	return h.Handle(ev)
}
