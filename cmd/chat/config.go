/*
 *  Copyright (c) 2024-2025 Mikhail Knyazhev <markus621@yandex.ru>. All rights reserved.
 *  Use of this source code is governed by a BSD 3-Clause license that can be found in the LICENSE file.
 */

package main

import (
	"fmt"
	"os"
	"strings"

	"go.osspkg.com/logx"
	"gopkg.in/yaml.v3"

	"go.osspkg.com/chatrelay/relay"
)

type (
	FileConfig struct {
		Relay relay.Config `yaml:"relay"`
		Log   LogConfig    `yaml:"log"`
	}

	LogConfig struct {
		Level string `yaml:"level"`
	}
)

func loadConfig(path string) (FileConfig, error) {
	var c FileConfig
	if len(path) == 0 {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("decode config '%s': %w", path, err)
	}
	return c, nil
}

func (c LogConfig) apply() error {
	switch strings.ToLower(c.Level) {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "", "info":
		logx.SetLevel(logx.LevelInfo)
	case "warn", "warning":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		return fmt.Errorf("invalid log level '%s'", c.Level)
	}
	return nil
}
