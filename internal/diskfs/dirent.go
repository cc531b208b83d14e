package diskfs

import (
	"bytes"
	"encoding/binary"
)

// NameLengthLimit bounds a directory entry's name, including the implicit
// null terminator: usable names are at most NameLengthLimit-1 bytes.
const NameLengthLimit = 27

// nameFieldSize is the on-disk width of the name field (NameLengthLimit
// bytes) plus one alignment pad byte, so DirEntry lands on a 32-byte
// boundary once the trailing u32 inode id is appended.
const nameFieldSize = NameLengthLimit + 1

// DirentSize is the fixed on-disk width of one directory entry:
// nameFieldSize(28) + inode_id(4) = 32.
const DirentSize = nameFieldSize + 4

// DirEntry is one (name, inode id) record in a directory's flat array.
type DirEntry struct {
	Name    string
	InodeID uint32
}

// MarshalBinary encodes d into a fixed DirentSize-byte record.
func (d DirEntry) MarshalBinary() [DirentSize]byte {
	var out [DirentSize]byte
	n := copy(out[:NameLengthLimit-1], d.Name)
	_ = n // excess bytes of an over-long name are silently truncated; callers must pre-validate
	binary.LittleEndian.PutUint32(out[nameFieldSize:], d.InodeID)
	return out
}

// UnmarshalBinary decodes a DirentSize-byte record into d.
func (d *DirEntry) UnmarshalBinary(buf []byte) {
	raw := buf[:NameLengthLimit]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	d.Name = string(raw)
	d.InodeID = binary.LittleEndian.Uint32(buf[nameFieldSize:])
}
