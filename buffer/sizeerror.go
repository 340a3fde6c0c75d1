// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buffer

// SizeError implements interface{ BufferSizeLimit() string }.
type SizeError struct {
	text string
}

func (e *SizeError) Error() string           { return e.text }
func (e *SizeError) PublicError() string     { return e.text }
func (e *SizeError) BufferSizeLimit() string { return e.text }

// ErrSizeLimit is panicked by Static when its capacity would be exceeded.
var ErrSizeLimit = &SizeError{"buffer size limit exceeded"}
