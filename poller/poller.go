/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package poller

import (
	"fmt"
	"strings"
	"time"
)

const (
	NamePoll  = "poll"
	NameEpoll = "epoll"
)

// Readiness is a backend-neutral set of readiness bits.
type Readiness uint32

const (
	In Readiness = 1 << iota
	Err
	Hup
	Invalid
)

func (r Readiness) Has(v Readiness) bool {
	return r&v == v
}

// Unexpected reports any bit other than plain input readiness.
func (r Readiness) Unexpected() bool {
	return r&^In != 0
}

func (r Readiness) String() string {
	if r == 0 {
		return "none"
	}
	names := make([]string, 0, 4)
	for _, it := range []struct {
		bit  Readiness
		name string
	}{{In, "in"}, {Err, "err"}, {Hup, "hup"}, {Invalid, "nval"}} {
		if r.Has(it.bit) {
			names = append(names, it.name)
		}
	}
	return strings.Join(names, "|")
}

type Poller interface {
	Add(fd int, interest Readiness) error
	Modify(fd int, interest Readiness) error
	Del(fd int) error
	// Wait blocks up to timeout and reports every ready descriptor to fn.
	// A zero timeout polls without blocking; a negative one blocks forever.
	Wait(timeout time.Duration, fn func(fd int, r Readiness)) (int, error)
	Close() error
}

type Option struct {
	Name string
	// CountEvents sizes the epoll result buffer.
	CountEvents uint
}

func New(c Option) (Poller, error) {
	switch c.Name {
	case "", NamePoll:
		return NewPoll(), nil
	case NameEpoll:
		return NewEpoll(c.CountEvents)
	default:
		return nil, fmt.Errorf("invalid poller '%s', use: %s, %s", c.Name, NamePoll, NameEpoll)
	}
}

func timeoutMS(t time.Duration) int {
	if t < 0 {
		return -1
	}
	ms := t.Milliseconds()
	if ms == 0 && t > 0 {
		ms = 1
	}
	return int(ms)
}
