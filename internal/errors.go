/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package internal

import (
	"io"
	"net"
	"strings"

	"go.osspkg.com/errors"
	"go.osspkg.com/logx"
	"golang.org/x/sys/unix"
)

// IsWouldBlock reports a non-blocking call that has nothing to do right now.
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR)
}

func NormalCloseError(err error) error {
	if IsNormalCloseError(err) {
		return nil
	}
	return err
}

// IsNormalCloseError reports errors produced by a peer going away.
func IsNormalCloseError(err error) bool {
	if err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.EPIPE) ||
		strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "broken pipe") {
		return true
	}
	return false
}

func WriteErrLog(message string, err error, addr string) {
	if err == nil || IsNormalCloseError(err) {
		return
	}
	logx.Warn(message, "err", err, "addr", addr)
}
