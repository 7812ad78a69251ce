/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package poller

import (
	"fmt"
	"time"

	"go.osspkg.com/errors"
	"golang.org/x/sys/unix"
)

type _poll struct {
	fds []unix.PollFd
}

// NewPoll returns a poll(2) backend. The watched set is kept dense.
func NewPoll() Poller {
	return &_poll{fds: make([]unix.PollFd, 0, 16)}
}

func (v *_poll) index(fd int) int {
	for i := range v.fds {
		if int(v.fds[i].Fd) == fd {
			return i
		}
	}
	return -1
}

func (v *_poll) Add(fd int, interest Readiness) error {
	if v.index(fd) >= 0 {
		return fmt.Errorf("poll add: fd %d already watched", fd)
	}
	v.fds = append(v.fds, unix.PollFd{Fd: int32(fd), Events: pollEvents(interest)})
	return nil
}

func (v *_poll) Modify(fd int, interest Readiness) error {
	i := v.index(fd)
	if i < 0 {
		return fmt.Errorf("poll modify: fd %d not watched", fd)
	}
	v.fds[i].Events = pollEvents(interest)
	return nil
}

func (v *_poll) Del(fd int) error {
	i := v.index(fd)
	if i < 0 {
		return fmt.Errorf("poll del: fd %d not watched", fd)
	}
	copy(v.fds[i:], v.fds[i+1:])
	v.fds = v.fds[:len(v.fds)-1]
	return nil
}

func (v *_poll) Wait(timeout time.Duration, fn func(fd int, r Readiness)) (int, error) {
	if len(v.fds) == 0 {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return 0, nil
	}
	n, err := unix.Poll(v.fds, timeoutMS(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "poll")
	}
	if n <= 0 {
		return 0, nil
	}
	count := 0
	for i := range v.fds {
		if v.fds[i].Revents == 0 {
			continue
		}
		count++
		fn(int(v.fds[i].Fd), fromPoll(v.fds[i].Revents))
		v.fds[i].Revents = 0
	}
	return count, nil
}

func (v *_poll) Close() error {
	v.fds = v.fds[:0]
	return nil
}

func pollEvents(r Readiness) int16 {
	var e int16
	if r.Has(In) {
		e |= unix.POLLIN
	}
	return e
}

func fromPoll(e int16) Readiness {
	var r Readiness
	if e&unix.POLLIN != 0 {
		r |= In
	}
	if e&unix.POLLERR != 0 {
		r |= Err
	}
	if e&unix.POLLHUP != 0 {
		r |= Hup
	}
	if e&unix.POLLNVAL != 0 {
		r |= Invalid
	}
	return r
}
