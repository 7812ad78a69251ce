/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package relay

import (
	"fmt"
	"time"

	"go.osspkg.com/chatrelay/internal"
	"go.osspkg.com/chatrelay/poller"
)

const (
	DefaultAddress        = "0.0.0.0:8080"
	DefaultMaxConnections = 200
	DefaultQueueCapacity  = 1_000_000
	DefaultPollTimeout    = 500 * time.Millisecond
	DefaultReadBufferSize = internal.BuffSize
	DefaultSendRetries    = 3
	DefaultCountEvents    = 100

	OperatorPrefix = "Server: "
)

type Config struct {
	Address        string        `yaml:"address"`
	MaxConnections int           `yaml:"max_connections,omitempty"`
	QueueCapacity  int           `yaml:"queue_capacity,omitempty"`
	PollTimeout    time.Duration `yaml:"poll_timeout,omitempty"`
	ReadBufferSize int           `yaml:"read_buffer_size,omitempty"`
	// SendRetries of 0 means the default, a negative value disables retries
	// so a send gets a single write attempt.
	SendRetries    int           `yaml:"send_retries,omitempty"`
	Poller         string        `yaml:"poller,omitempty"`
	CountEvents    uint          `yaml:"count_events,omitempty"`
	DisableConsole bool          `yaml:"disable_console,omitempty"`
	TolerateHangup bool          `yaml:"tolerate_hangup,omitempty"`
}

func (c *Config) Default() {
	if len(c.Address) == 0 {
		c.Address = DefaultAddress
	}
	if len(c.Poller) == 0 {
		c.Poller = poller.NamePoll
	}
	c.MaxConnections = internal.NotZero(c.MaxConnections, DefaultMaxConnections)
	c.QueueCapacity = internal.NotZero(c.QueueCapacity, DefaultQueueCapacity)
	c.PollTimeout = internal.NotZeroDuration(c.PollTimeout, DefaultPollTimeout)
	c.ReadBufferSize = internal.NotZero(c.ReadBufferSize, DefaultReadBufferSize)
	if c.SendRetries == 0 {
		c.SendRetries = DefaultSendRetries
	}
	c.CountEvents = internal.NotZero(c.CountEvents, DefaultCountEvents)
}

func (c Config) Validate() error {
	reserved := 2
	if c.DisableConsole {
		reserved = 1
	}
	if c.MaxConnections <= reserved {
		return fmt.Errorf("max connections must be greater than %d", reserved)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue capacity must be positive")
	}
	if c.ReadBufferSize < 1 {
		return fmt.Errorf("read buffer size must be positive")
	}
	switch c.Poller {
	case poller.NamePoll, poller.NameEpoll:
	default:
		return fmt.Errorf("invalid poller '%s', use: %s, %s", c.Poller, poller.NamePoll, poller.NameEpoll)
	}
	return nil
}

func (c Config) retries() int {
	return max(c.SendRetries, 0)
}
