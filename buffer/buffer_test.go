// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

import (
	"testing"

	"github.com/safepoint/codeinfo/internal/pan"
	"github.com/stretchr/testify/require"
)

func TestDynamic(t *testing.T) {
	d := NewDynamic([]byte{0xaa})

	b := d.Extend(3)
	require.Equal(t, []byte{0, 0, 0}, b)
	b[2] = 7

	require.Equal(t, []byte{0xaa, 0, 0, 7}, d.Bytes())
	require.Equal(t, 4, d.Len())

	b = d.Extend(100)
	require.Len(t, b, 100)
	require.Equal(t, 104, d.Len())
	require.Equal(t, byte(7), d.Bytes()[3])
}

func TestStaticLimit(t *testing.T) {
	s := NewStatic(make([]byte, 0, 4))
	s.Extend(4)
	require.Equal(t, 4, s.Len())

	err := func() (err error) {
		defer func() { err = pan.Error(recover()) }()
		s.Extend(1)
		return
	}()
	require.Same(t, ErrSizeLimit, err)
}
