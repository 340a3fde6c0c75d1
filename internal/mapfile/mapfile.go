// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mapfile provides read-only access to whole files.
package mapfile

// File contents.  Bytes must not be used after Close.
type File struct {
	data   []byte
	mapped bool
}

func (f *File) Bytes() []byte {
	return f.data
}

func (f *File) Len() int {
	return len(f.data)
}
