// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package codeinfo decodes compact per-method safepoint metadata.

A CodeInfo buffer consists of a small header and a sequence of bit-packed
tables.  Stack maps describe the state of a compiled method at each safepoint:
its bytecode offset, the registers and stack slots which hold references, the
chain of inlined frames, and the location of every virtual register.  Virtual
register locations are delta-compressed across stack maps.

See the builder subpackage for encoding, and the producer subpackage for
converting LLVM stack map and fault map sections.

# Errors

FormatError and UnsupportedError types are accessible via errors subpackage.
Such errors may be returned by Load and by the producer.  Unexpected EOF is a
FormatError which wraps io.ErrUnexpectedEOF.
*/
package codeinfo
