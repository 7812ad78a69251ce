/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package internal

import (
	"bytes"

	"go.osspkg.com/ioutils/pool"
)

const BuffSize = 1024

var (
	// PayloadPool backs event payloads; every buffer taken must be put back exactly once.
	PayloadPool = pool.New[*bytes.Buffer](func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, BuffSize))
	})

	BytesPool = pool.New[*Bytes](func() *Bytes {
		return &Bytes{Slice: make([]byte, BuffSize)}
	})
)

type Bytes struct {
	Slice []byte
}

func (*Bytes) Reset() {}

// Resize grows the slice to at least n bytes.
func (b *Bytes) Resize(n int) []byte {
	if cap(b.Slice) < n {
		b.Slice = make([]byte, n)
	}
	b.Slice = b.Slice[:n]
	return b.Slice
}
