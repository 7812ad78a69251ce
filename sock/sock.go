/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package sock

import (
	"go.osspkg.com/errors"
)

const Console = 0

var ErrWouldBlock = errors.New("operation would block")

// Socket is the set of non-blocking descriptor primitives the relay consumes.
// Accept, Recv and Send return ErrWouldBlock when there is nothing to do yet.
type Socket interface {
	Listen(address string) (int, error)
	Accept(listener int) (fd int, addr string, err error)
	Recv(fd int, b []byte) (int, error)
	Send(fd int, b []byte) (int, error)
	Close(fd int) error
}
