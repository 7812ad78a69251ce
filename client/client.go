/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"go.osspkg.com/do"
	"go.osspkg.com/errors"
	"go.osspkg.com/logx"
	"go.osspkg.com/syncing"

	"go.osspkg.com/chatrelay/internal"
)

type (
	Client interface {
		// Run pipes in to the relay and everything the relay broadcasts to out.
		// It returns when in is exhausted, the relay closes, or ctx is done.
		Run(ctx context.Context, in io.Reader, out io.Writer) error
	}

	_client struct {
		conf Config
	}
)

func New(c Config) (Client, error) {
	addr, err := c.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve address: %w", err)
	}
	c.Address = addr
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return &_client{conf: c}, nil
}

func (v *_client) Run(ctx context.Context, in io.Reader, out io.Writer) (err error) {
	dial := net.Dialer{Timeout: v.conf.DialTimeout}
	conn, err := dial.DialContext(ctx, "tcp", v.conf.Address)
	if err != nil {
		return fmt.Errorf("dial tcp: %w", err)
	}
	logx.Info("Client connected", "addr", v.conf.Address)

	wg := syncing.NewGroup()
	readErr := make(chan error, 1)
	writeErr := make(chan error, 1)

	wg.Background(func() {
		_, e := io.Copy(out, conn)
		readErr <- e
	})
	// in may block forever, so this goroutine is never waited for
	do.Async(func() {
		_, e := io.Copy(conn, in)
		writeErr <- e
	}, func(e error) {
		logx.Error("Client write panic", "err", e, "addr", v.conf.Address)
		writeErr <- e
	})

	select {
	case <-ctx.Done():
	case e := <-readErr:
		err = internal.NormalCloseError(e)
	case e := <-writeErr:
		err = internal.NormalCloseError(e)
	}

	err = errors.Wrap(err, internal.NormalCloseError(conn.Close()))
	wg.Wait()
	logx.Info("Client disconnected", "addr", v.conf.Address)
	return
}
