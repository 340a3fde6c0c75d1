// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package mapfile

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// Open maps a file into memory.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := info.Size()
	if size == 0 {
		return new(File), nil
	}
	if int64(int(size)) != size {
		return nil, xerrors.Errorf("%s: file is too large to map", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}

	return &File{data: data, mapped: true}, nil
}

func (f *File) Close() (err error) {
	if f.mapped {
		err = unix.Munmap(f.data)
	}
	f.data = nil
	f.mapped = false
	return
}
