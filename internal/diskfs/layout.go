// Package diskfs implements the on-disk filesystem core: the superblock,
// allocator bitmaps, the disk inode with its direct/indirect/double-indirect
// index, the directory entry codec, and the EasyFileSystem that ties them
// together over a blockcache.Cache.
package diskfs

import (
	"encoding/binary"
	"fmt"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockdev"
)

// BlockSize is the fixed block size shared with blockdev.
const BlockSize = blockdev.BlockSize

// SuperBlockMagic identifies a formatted EasyFileSystem volume.
const SuperBlockMagic = 0x3b800001

// InodeDirectCount is the number of direct data-block pointers a DiskInode
// carries inline.
const InodeDirectCount = 28

// InodeIndirectCount is how many u32 block ids fit in one indirect block.
const InodeIndirectCount = BlockSize / 4 // 128

// InodeType distinguishes a DiskInode's content interpretation.
type InodeType uint32

const (
	TypeFile      InodeType = 1
	TypeDirectory InodeType = 2
)

// diskInodeSize is the on-disk size of one DiskInode record: size(4) +
// direct(4*28) + indirect1(4) + indirect2(4) + type(4) + ref_cnt(4) = 132.
const diskInodeSize = 4 + 4*InodeDirectCount + 4 + 4 + 4 + 4

// inodesPerBlock is how many DiskInode slots fit in one block (3, with 116
// bytes of slack — the field list does not pack evenly into BlockSize the
// way the approximate "128-byte slot" description suggests).
const inodesPerBlock = BlockSize / diskInodeSize

// SuperBlock is the block-0 header describing a formatted volume.
type SuperBlock struct {
	Magic             uint32
	TotalBlocks       uint32
	InodeBitmapBlocks uint32
	InodeAreaBlocks   uint32
	DataBitmapBlocks  uint32
	DataAreaBlocks    uint32
	// VolumeID stamps the formatted volume with a 16-byte UUID. It
	// participates in no invariant; Format regenerates it and Open just
	// round-trips it, the way most real on-disk formats carry a volume id.
	VolumeID [16]byte
}

// MarshalBinary encodes the superblock into exactly BlockSize bytes,
// little-endian, zero-padded.
func (s *SuperBlock) MarshalBinary() []byte {
	buf := make([]byte, BlockSize)
	order := binary.LittleEndian
	order.PutUint32(buf[0:], s.Magic)
	order.PutUint32(buf[4:], s.TotalBlocks)
	order.PutUint32(buf[8:], s.InodeBitmapBlocks)
	order.PutUint32(buf[12:], s.InodeAreaBlocks)
	order.PutUint32(buf[16:], s.DataBitmapBlocks)
	order.PutUint32(buf[20:], s.DataAreaBlocks)
	copy(buf[24:40], s.VolumeID[:])
	return buf
}

// UnmarshalBinary decodes a superblock previously written by MarshalBinary.
func (s *SuperBlock) UnmarshalBinary(buf []byte) error {
	if len(buf) < BlockSize {
		return fmt.Errorf("diskfs: superblock buffer too small: %d", len(buf))
	}
	order := binary.LittleEndian
	s.Magic = order.Uint32(buf[0:])
	if s.Magic != SuperBlockMagic {
		return fmt.Errorf("diskfs: bad superblock magic 0x%x", s.Magic)
	}
	s.TotalBlocks = order.Uint32(buf[4:])
	s.InodeBitmapBlocks = order.Uint32(buf[8:])
	s.InodeAreaBlocks = order.Uint32(buf[12:])
	s.DataBitmapBlocks = order.Uint32(buf[16:])
	s.DataAreaBlocks = order.Uint32(buf[20:])
	copy(s.VolumeID[:], buf[24:40])
	return nil
}
