/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package relay

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.osspkg.com/errors"
	"go.osspkg.com/logx"
	"go.osspkg.com/syncing"

	"go.osspkg.com/chatrelay/event"
	"go.osspkg.com/chatrelay/internal"
	"go.osspkg.com/chatrelay/poller"
	"go.osspkg.com/chatrelay/sock"
)

var (
	ErrAlreadyRunning = errors.New("relay already running")
	ErrPollFault      = errors.New("unexpected readiness")
)

type (
	// Relay owns the registry, the event queue and the subscription table.
	// Everything runs on the goroutine calling Serve.
	Relay struct {
		conf       Config
		sock       sock.Socket
		poll       poller.Poller
		// builds the poller again after closeAll released it
		newPoller  func() (poller.Poller, error)
		registry   *Registry
		queue      *event.Queue
		dispatch   *event.Dispatcher
		transcript io.Writer
		buff       *internal.Bytes
		listener   int
		console    int
		opened     bool
		// sessions whose unsent tail is still queued
		blocked     map[string]struct{}
		setNonblock func(fd int) error
		sync        syncing.Switch
	}

	Option func(v *Relay)
)

func WithSocket(s sock.Socket) Option {
	return func(v *Relay) { v.sock = s }
}

// WithPoller sets the poller. It is handed back on every Open, so a
// poller that cannot be reused after Close is good for one Serve only.
func WithPoller(p poller.Poller) Option {
	return func(v *Relay) {
		v.newPoller = func() (poller.Poller, error) { return p, nil }
	}
}

// WithTranscript sets where the chat transcript is written, stdout by default.
func WithTranscript(w io.Writer) Option {
	return func(v *Relay) { v.transcript = w }
}

func New(conf Config, opts ...Option) (*Relay, error) {
	conf.Default()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	v := &Relay{
		conf:        conf,
		registry:    NewRegistry(conf.MaxConnections),
		queue:       event.NewQueue(conf.QueueCapacity),
		dispatch:    event.NewDispatcher(),
		transcript:  os.Stdout,
		listener:    -1,
		console:     sock.Console,
		blocked:     make(map[string]struct{}),
		setNonblock: sock.SetNonblock,
		sync:        syncing.NewSwitch(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.sock == nil {
		v.sock = sock.New()
	}
	if v.newPoller == nil {
		v.newPoller = func() (poller.Poller, error) {
			return poller.New(poller.Option{Name: conf.Poller, CountEvents: conf.CountEvents})
		}
	}
	p, err := v.newPoller()
	if err != nil {
		return nil, err
	}
	v.poll = p

	for kind, h := range map[event.Kind]event.HandlerFunc{
		event.NewConnection:   v.handleAccept,
		event.MessageReceived: v.handleReceive,
		event.MessageToSend:   v.handleSend,
		event.Disconnect:      v.handleDisconnect,
		event.Keypress:        v.handleKeypress,
	} {
		if err := v.dispatch.Subscribe(kind, h); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Subscribe adds an extra handler that runs after the built-in one.
func (v *Relay) Subscribe(kind event.Kind, h event.Handler) error {
	if v.sync.IsOn() {
		return ErrAlreadyRunning
	}
	return v.dispatch.Subscribe(kind, h)
}

// Open creates the listener and registers it together with the console.
func (v *Relay) Open() (err error) {
	if v.opened {
		return nil
	}
	if v.poll == nil {
		if v.poll, err = v.newPoller(); err != nil {
			return errors.Wrapf(err, "create poller")
		}
	}
	if v.listener, err = v.sock.Listen(v.conf.Address); err != nil {
		return errors.Wrap(errors.Wrapf(err, "create listener"), v.closePoller())
	}
	defer func() {
		if err != nil {
			err = errors.Wrap(err, v.closeAll())
		}
	}()
	if err = v.watch(Entry{FD: v.listener, Role: RoleListener, Addr: v.conf.Address}); err != nil {
		return errors.Wrap(err, v.sock.Close(v.listener))
	}
	if !v.conf.DisableConsole {
		if err = v.setNonblock(v.console); err != nil {
			return errors.Wrapf(err, "console non-blocking")
		}
		if err = v.watch(Entry{FD: v.console, Role: RoleConsole, Addr: "console"}); err != nil {
			return err
		}
	}
	v.buff = internal.BytesPool.Get()
	v.buff.Resize(v.conf.ReadBufferSize)
	v.opened = true
	return nil
}

func (v *Relay) watch(e Entry) error {
	if !v.registry.Add(e) {
		return fmt.Errorf("register fd %d: registry full or duplicate", e.FD)
	}
	if err := v.poll.Add(e.FD, poller.In); err != nil {
		v.registry.unwatch(e.FD)
		return err
	}
	return nil
}

// Addr returns the bound listener address once opened.
func (v *Relay) Addr() string {
	if a, ok := v.sock.(interface{ LocalAddr(fd int) (string, error) }); ok && v.opened {
		if addr, err := a.LocalAddr(v.listener); err == nil {
			return addr
		}
	}
	return v.conf.Address
}

// Serve runs the readiness loop until ctx is done, a fatal poll fault
// occurs or a handler raises event.ErrEndServer. All descriptors are
// closed on return.
func (v *Relay) Serve(ctx context.Context) (err error) {
	if !v.sync.On() {
		return ErrAlreadyRunning
	}
	defer v.sync.Off()

	if err = v.Open(); err != nil {
		return err
	}
	defer func() {
		err = errors.Wrap(err, v.closeAll())
		if err != nil {
			logx.Error("Relay stopped", "err", err, "address", v.conf.Address)
			return
		}
		logx.Info("Relay stopped", "address", v.conf.Address)
	}()

	logx.Info("Relay started", "address", v.Addr(), "poller", v.conf.Poller)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err = v.iterate(); err != nil {
			return err
		}
	}
}

// iterate runs one loop pass: wait for readiness, translate it into
// events, then drain a single generation of the queue.
func (v *Relay) iterate() error {
	timeout := v.conf.PollTimeout
	if v.queue.Len() > 0 {
		timeout = 0
	}

	var fault error
	_, err := v.poll.Wait(timeout, func(fd int, r poller.Readiness) {
		if fault == nil {
			fault = v.onReady(fd, r)
		}
	})
	if err != nil {
		return err
	}

	var end error
	dropped := v.queue.Dropped()
	v.queue.Drain(func(ev *event.Event) {
		if e := v.dispatch.Dispatch(ev); e != nil {
			end = e
		}
	})
	if d := v.queue.Dropped() - dropped; d > 0 {
		logx.Debug("Event queue full", "dropped", d, "capacity", v.queue.Cap())
	}

	return errors.Wrap(fault, end)
}

func (v *Relay) onReady(fd int, r poller.Readiness) error {
	e, ok := v.registry.Get(fd)
	if !ok {
		return nil
	}
	if r.Unexpected() {
		if e.Role == RolePeer && v.conf.TolerateHangup {
			v.queue.Push(event.New(event.Disconnect, fd, e.Session))
			return nil
		}
		return errors.Wrapf(ErrPollFault, "fd %d reported %s", fd, r.String())
	}
	switch e.Role {
	case RoleListener:
		v.queue.Push(event.New(event.NewConnection, fd, ""))
	case RoleConsole:
		v.queue.Push(event.New(event.Keypress, fd, ""))
	default:
		v.queue.Push(event.New(event.MessageReceived, fd, e.Session))
	}
	return nil
}

func (v *Relay) closeAll() (err error) {
	for _, e := range v.registry.Entries() {
		err = errors.Wrap(err, v.poll.Del(e.FD), v.sock.Close(e.FD))
	}
	v.registry.Reset()
	v.queue.Clear()
	clear(v.blocked)
	err = errors.Wrap(err, v.closePoller())
	if v.buff != nil {
		internal.BytesPool.Put(v.buff)
		v.buff = nil
	}
	v.opened = false
	return
}

func (v *Relay) closePoller() error {
	if v.poll == nil {
		return nil
	}
	err := v.poll.Close()
	v.poll = nil
	return err
}
