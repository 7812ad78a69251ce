/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package event

import (
	"github.com/eapache/queue"
)

// Queue is a bounded FIFO of pending events. It is not safe for concurrent
// use: the readiness loop is both producer and consumer.
type Queue struct {
	ring     *queue.Queue
	capacity int
	dropped  uint64
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ring:     queue.New(),
		capacity: capacity,
	}
}

// Push appends ev. A full queue drops the event and releases its payload.
func (q *Queue) Push(ev *Event) bool {
	if ev == nil {
		return false
	}
	if q.ring.Length() >= q.capacity {
		q.dropped++
		ev.Release()
		return false
	}
	q.ring.Add(ev)
	return true
}

func (q *Queue) Pop() (*Event, bool) {
	if q.ring.Length() == 0 {
		return nil, false
	}
	ev, ok := q.ring.Remove().(*Event)
	return ev, ok
}

func (q *Queue) Len() int { return q.ring.Length() }

func (q *Queue) Cap() int { return q.capacity }

// Dropped counts events refused by Push because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped }

// Drain processes one generation: exactly the events queued when it was
// called. Events pushed by fn are left for the next call. Each event is
// released after fn returns.
func (q *Queue) Drain(fn func(ev *Event)) int {
	n := q.ring.Length()
	for i := 0; i < n; i++ {
		ev, ok := q.Pop()
		if !ok {
			return i
		}
		fn(ev)
		ev.Release()
	}
	return n
}

// Clear releases and discards every queued event.
func (q *Queue) Clear() {
	for {
		ev, ok := q.Pop()
		if !ok {
			return
		}
		ev.Release()
	}
}
