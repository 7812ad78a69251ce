/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package internal

import "time"

type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// NotZero returns the first positive argument, so callers list the
// configured value first and the default last.
func NotZero[T Number](args ...T) T {
	for _, arg := range args {
		if arg > 0 {
			return arg
		}
	}
	return 0
}

func NotZeroDuration(args ...time.Duration) time.Duration {
	for _, arg := range args {
		if arg > 0 {
			return arg
		}
	}
	return 0
}
