/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

//go:build !linux

package poller

import "fmt"

func NewEpoll(uint) (Poller, error) {
	return nil, fmt.Errorf("epoll is available on linux only")
}
