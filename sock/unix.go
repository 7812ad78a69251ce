/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package sock

import (
	"go.osspkg.com/errors"
	"golang.org/x/sys/unix"

	"go.osspkg.com/chatrelay/address"
	"go.osspkg.com/chatrelay/internal"
)

type _unix struct{}

func New() Socket {
	return &_unix{}
}

func (*_unix) Listen(addr string) (fd int, err error) {
	sa, family, err := address.Sockaddr(addr)
	if err != nil {
		return -1, err
	}
	fd, err = unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrapf(err, "create socket")
	}
	defer func() {
		if err != nil {
			err = errors.Wrap(err, unix.Close(fd))
			fd = -1
		}
	}()
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fd, errors.Wrapf(err, "set SO_REUSEADDR")
	}
	if err = unix.Bind(fd, sa); err != nil {
		return fd, errors.Wrapf(err, "bind %s", addr)
	}
	if err = unix.Listen(fd, unix.SOMAXCONN); err != nil {
		return fd, errors.Wrapf(err, "listen %s", addr)
	}
	return fd, nil
}

func (*_unix) Accept(listener int) (int, string, error) {
	fd, sa, err := unix.Accept4(listener, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if internal.IsWouldBlock(err) || errors.Is(err, unix.ECONNABORTED) {
			return -1, "", ErrWouldBlock
		}
		return -1, "", err
	}
	return fd, address.String(sa), nil
}

func (*_unix) Recv(fd int, b []byte) (int, error) {
	n, err := unix.Read(fd, b)
	if err != nil {
		if internal.IsWouldBlock(err) {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func (*_unix) Send(fd int, b []byte) (int, error) {
	n, err := unix.SendmsgN(fd, b, nil, nil, unix.MSG_NOSIGNAL|unix.MSG_DONTWAIT)
	if err != nil {
		if internal.IsWouldBlock(err) {
			return 0, ErrWouldBlock
		}
		return 0, err
	}
	return n, nil
}

func (*_unix) Close(fd int) error {
	return unix.Close(fd)
}

func (*_unix) LocalAddr(fd int) (string, error) {
	return LocalAddr(fd)
}

// LocalAddr returns the bound address of a socket descriptor.
func LocalAddr(fd int) (string, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", err
	}
	return address.String(sa), nil
}

// SetNonblock switches a descriptor, such as the console, to non-blocking mode.
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
