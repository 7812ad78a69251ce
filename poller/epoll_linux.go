/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

//go:build linux

package poller

import (
	"time"

	"go.osspkg.com/errors"
	"golang.org/x/sys/unix"
)

type _epoll struct {
	fd     int
	events []unix.EpollEvent
}

func NewEpoll(countEvents uint) (Poller, error) {
	if countEvents == 0 {
		countEvents = 100
	}
	v, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrapf(err, "epoll create")
	}
	return &_epoll{
		fd:     v,
		events: make([]unix.EpollEvent, countEvents),
	}, nil
}

func (v *_epoll) Add(fd int, interest Readiness) error {
	if err := unix.EpollCtl(v.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}); err != nil {
		return errors.Wrapf(err, "epoll add fd %d", fd)
	}
	return nil
}

func (v *_epoll) Modify(fd int, interest Readiness) error {
	if err := unix.EpollCtl(v.fd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}); err != nil {
		return errors.Wrapf(err, "epoll modify fd %d", fd)
	}
	return nil
}

func (v *_epoll) Del(fd int) error {
	if err := unix.EpollCtl(v.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrapf(err, "epoll del fd %d", fd)
	}
	return nil
}

func (v *_epoll) Wait(timeout time.Duration, fn func(fd int, r Readiness)) (int, error) {
	n, err := unix.EpollWait(v.fd, v.events, timeoutMS(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "epoll wait")
	}
	if n <= 0 {
		return 0, nil
	}
	for i := 0; i < n; i++ {
		fn(int(v.events[i].Fd), fromEpoll(v.events[i].Events))
	}
	return n, nil
}

func (v *_epoll) Close() error {
	return unix.Close(v.fd)
}

func epollEvents(r Readiness) uint32 {
	var e uint32
	if r.Has(In) {
		e |= unix.EPOLLIN
	}
	return e
}

func fromEpoll(e uint32) Readiness {
	var r Readiness
	if e&unix.EPOLLIN != 0 {
		r |= In
	}
	if e&unix.EPOLLERR != 0 {
		r |= Err
	}
	if e&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		r |= Hup
	}
	return r
}
