// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/safepoint/codeinfo/internal/debug"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.False(t, c.DumpStackMaps)
	require.Equal(t, DefaultDumpPath, c.DumpPath)
	require.Equal(t, debug.Enabled, c.Strict)

	level, err := c.Level()
	require.NoError(t, err)
	require.Equal(t, zerolog.InfoLevel, level)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codeinfo.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
dump-stackmaps = true
strict = true
log-level = "debug"
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.True(t, c.DumpStackMaps)
	require.True(t, c.Strict)
	require.Equal(t, DefaultDumpPath, c.DumpPath)

	level, err := c.Level()
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, level)
}

func TestParse(t *testing.T) {
	c := Default()
	require.NoError(t, Parse([]byte(`dump-path = "out/maps.txt"`), &c))
	require.Equal(t, "out/maps.txt", c.DumpPath)

	c = Default()
	require.Error(t, Parse([]byte(`dump-stackmap = true`), &c))

	c = Default()
	require.Error(t, Parse([]byte(`log-level = "loud"`), &c))

	c = Default()
	require.Error(t, Parse([]byte(`strict = "yes"`), &c))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.True(t, xerrors.Is(err, os.ErrNotExist), "%v", err)
}
