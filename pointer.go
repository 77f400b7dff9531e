// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvdb

import (
	"encoding/binary"
)

// pointer is the format's 8-byte (start, end) file-offset pair.  Both
// endpoints are stored little-endian regardless of the file's payload
// byte order, matching GLib's gvdb implementation.
type pointer struct {
	start uint32
	end   uint32
}

func pointerAt(b []byte, off int) pointer {
	return pointer{
		start: binary.LittleEndian.Uint32(b[off : off+4]),
		end:   binary.LittleEndian.Uint32(b[off+4 : off+8]),
	}
}

func (p pointer) marshalTo(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], p.start)
	binary.LittleEndian.PutUint32(b[4:8], p.end)
}
