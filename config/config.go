// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config handles codeinfo.toml settings.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/safepoint/codeinfo/internal/debug"
	"golang.org/x/xerrors"
)

// DefaultDumpPath of the stack map text dump.
const DefaultDumpPath = "llvm_stackmaps.txt"

// Config of a producer and the command-line tool.
type Config struct {
	// DumpStackMaps writes a text dump of the parsed stack map section to
	// DumpPath.
	DumpStackMaps bool   `toml:"dump-stackmaps"`
	DumpPath      string `toml:"dump-path"`

	// Strict checks the builder's call sequence.
	Strict bool `toml:"strict"`

	LogLevel string `toml:"log-level"`
}

// Default configuration.
func Default() Config {
	return Config{
		DumpPath: DefaultDumpPath,
		Strict:   debug.Enabled,
		LogLevel: zerolog.LevelInfoValue,
	}
}

// Load a TOML file.  Unspecified settings have default values.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, xerrors.Errorf("cannot read %s: %w", path, err)
	}

	if err := Parse(data, &c); err != nil {
		return c, xerrors.Errorf("parse error in %s: %w", path, err)
	}

	return c, nil
}

// Parse TOML data over c.
func Parse(data []byte, c *Config) error {
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return err
	}

	if keys := md.Undecoded(); len(keys) > 0 {
		return xerrors.Errorf("unknown setting: %s", keys[0])
	}

	if c.DumpPath == "" {
		c.DumpPath = DefaultDumpPath
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// Level of logging.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}

	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, xerrors.Errorf("log-level: %w", err)
	}
	return level, nil
}
