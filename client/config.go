/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package client

import (
	"time"

	"go.osspkg.com/errors"

	"go.osspkg.com/chatrelay/address"
)

var ErrEmptyAddress = errors.New("client address is empty")

type Config struct {
	Address     string        `yaml:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout,omitempty"`
}

// Resolve checks the address is a literal "ipv4:port" and returns it normalised.
func (c Config) Resolve() (string, error) {
	if len(c.Address) == 0 {
		return "", ErrEmptyAddress
	}
	return address.ParseIPv4Port(c.Address)
}
