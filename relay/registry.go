/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package relay

import (
	"go.osspkg.com/chatrelay/poller"
)

type Role uint8

const (
	RolePeer Role = iota
	RoleListener
	RoleConsole
)

type (
	Entry struct {
		FD       int
		Interest poller.Readiness
		Role     Role
		Session  string
		Addr     string
	}

	// Registry is the dense set of pollable descriptors. Removal shifts the
	// tail left, so entries stay contiguous in insertion order.
	Registry struct {
		entries  []Entry
		capacity int
	}
)

func NewRegistry(capacity int) *Registry {
	return &Registry{
		entries:  make([]Entry, 0, min(capacity, 64)),
		capacity: capacity,
	}
}

func (r *Registry) index(fd int) int {
	for i := range r.entries {
		if r.entries[i].FD == fd {
			return i
		}
	}
	return -1
}

// Add appends e with read interest. It refuses duplicates and a full registry.
func (r *Registry) Add(e Entry) bool {
	if len(r.entries) >= r.capacity || r.index(e.FD) >= 0 {
		return false
	}
	e.Interest = poller.In
	r.entries = append(r.entries, e)
	return true
}

// Remove drops a peer entry. Listener and console entries stay.
func (r *Registry) Remove(fd int) (Entry, bool) {
	i := r.index(fd)
	if i < 0 || r.entries[i].Role != RolePeer {
		return Entry{}, false
	}
	return r.removeAt(i), true
}

// unwatch drops an entry of any role.
func (r *Registry) unwatch(fd int) bool {
	i := r.index(fd)
	if i < 0 {
		return false
	}
	r.removeAt(i)
	return true
}

func (r *Registry) removeAt(i int) Entry {
	e := r.entries[i]
	copy(r.entries[i:], r.entries[i+1:])
	r.entries[len(r.entries)-1] = Entry{}
	r.entries = r.entries[:len(r.entries)-1]
	return e
}

func (r *Registry) Get(fd int) (Entry, bool) {
	if i := r.index(fd); i >= 0 {
		return r.entries[i], true
	}
	return Entry{}, false
}

func (r *Registry) SetInterest(fd int, interest poller.Readiness) bool {
	i := r.index(fd)
	if i < 0 {
		return false
	}
	r.entries[i].Interest = interest
	return true
}

// Recipients calls fn for every peer except the one holding exclude.
func (r *Registry) Recipients(exclude int, fn func(e Entry)) {
	for _, e := range r.entries {
		if e.Role != RolePeer || e.FD == exclude {
			continue
		}
		fn(e)
	}
}

// Entries returns a snapshot copy.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *Registry) Len() int { return len(r.entries) }

func (r *Registry) Cap() int { return r.capacity }

func (r *Registry) Peers() int {
	n := 0
	for _, e := range r.entries {
		if e.Role == RolePeer {
			n++
		}
	}
	return n
}

func (r *Registry) Reset() {
	clear(r.entries)
	r.entries = r.entries[:0]
}
