package diskfs

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jacobsa/syncutil"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockcache"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/logger"
)

// RootInodeID is the inode id of the root directory, always the first bit
// allocated by Format.
const RootInodeID uint32 = 0

// EasyFileSystem holds the superblock and the allocator state (bitmaps,
// area offsets) for one formatted volume. A single exclusive lock
// serializes allocator mutations and inode-position lookups; callers must
// hold it (via Lock/Unlock) across any logical VFS operation, and must
// always acquire it before touching any block-cache entry lock (the
// FS-before-cache-entry ordering from the concurrency model).
type EasyFileSystem struct {
	mu syncutil.InvariantMutex

	cache *blockcache.Cache
	super SuperBlock

	inodeBitmap bitmap
	dataBitmap  bitmap

	inodeAreaStart uint64
	dataAreaStart  uint64
}

func ceilDiv64(a, b uint64) uint64 { return (a + b - 1) / b }

// Format lays out a fresh superblock, bitmaps, and root directory over
// cache's device, sized for totalBlocks blocks with inodeBitmapBlocks
// blocks of inode bitmap (the inode area is sized to exactly hold that
// many inodes; the remaining space splits into a data bitmap and the data
// area it addresses).
func Format(cache *blockcache.Cache, totalBlocks uint32, inodeBitmapBlocks uint32) (*EasyFileSystem, error) {
	inodeBitmap := bitmap{startBlock: 1, blocks: uint64(inodeBitmapBlocks)}
	maxInodes := inodeBitmap.maxBits()
	inodeAreaBlocks := uint32(ceilDiv64(maxInodes*uint64(diskInodeSize), uint64(BlockSize)))

	reserved := uint64(1) + uint64(inodeBitmapBlocks) + uint64(inodeAreaBlocks)
	if reserved >= uint64(totalBlocks) {
		return nil, fmt.Errorf("diskfs: %d blocks is not enough for a %d-block inode bitmap", totalBlocks, inodeBitmapBlocks)
	}
	remaining := uint64(totalBlocks) - reserved
	dataBitmapBlocks := ceilDiv64(remaining, bitsPerBlock+1)
	dataAreaBlocks := remaining - dataBitmapBlocks

	dataBitmapStart := reserved
	fs := &EasyFileSystem{
		cache:          cache,
		inodeBitmap:    inodeBitmap,
		dataBitmap:     bitmap{startBlock: dataBitmapStart, blocks: dataBitmapBlocks},
		inodeAreaStart: 1 + uint64(inodeBitmapBlocks),
		dataAreaStart:  dataBitmapStart + dataBitmapBlocks,
	}
	fs.super = SuperBlock{
		Magic:             SuperBlockMagic,
		TotalBlocks:       totalBlocks,
		InodeBitmapBlocks: inodeBitmapBlocks,
		InodeAreaBlocks:   inodeAreaBlocks,
		DataBitmapBlocks:  uint32(dataBitmapBlocks),
		DataAreaBlocks:    uint32(dataAreaBlocks),
	}
	id, err := uuid.NewRandom()
	if err == nil {
		copy(fs.super.VolumeID[:], id[:])
	}

	zero := make([]byte, BlockSize)
	for i := uint64(0); i < uint64(inodeBitmapBlocks); i++ {
		if err := cache.Modify(1+i, 0, func(buf []byte) { copy(buf, zero) }); err != nil {
			return nil, err
		}
	}
	for i := uint64(0); i < dataBitmapBlocks; i++ {
		if err := cache.Modify(dataBitmapStart+i, 0, func(buf []byte) { copy(buf, zero) }); err != nil {
			return nil, err
		}
	}
	if err := cache.Modify(0, 0, func(buf []byte) { copy(buf, fs.super.MarshalBinary()) }); err != nil {
		return nil, err
	}

	rootID, ok, err := fs.inodeBitmap.alloc(cache)
	if err != nil {
		return nil, err
	}
	if !ok || uint32(rootID) != RootInodeID {
		return nil, fmt.Errorf("diskfs: root inode allocation did not yield id 0")
	}
	blockID, offset := fs.GetDiskInodePos(uint32(rootID))
	var root DiskInode
	root.Initialize(TypeDirectory)
	enc := root.MarshalBinary()
	if err := cache.Modify(blockID, offset, func(buf []byte) { copy(buf, enc[:]) }); err != nil {
		return nil, err
	}

	if err := cache.SyncAll(); err != nil {
		return nil, err
	}
	logger.Infof("diskfs: formatted volume total=%d inode_bitmap=%d inode_area=%d data_bitmap=%d data_area=%d",
		totalBlocks, inodeBitmapBlocks, inodeAreaBlocks, dataBitmapBlocks, dataAreaBlocks)
	return fs, nil
}

// Open reconstructs an EasyFileSystem's allocator state from a previously
// formatted volume's superblock.
func Open(cache *blockcache.Cache) (*EasyFileSystem, error) {
	var super SuperBlock
	var raw [BlockSize]byte
	if err := cache.Read(0, 0, func(buf []byte) { copy(raw[:], buf) }); err != nil {
		return nil, err
	}
	if err := super.UnmarshalBinary(raw[:]); err != nil {
		return nil, err
	}

	inodeAreaStart := uint64(1) + uint64(super.InodeBitmapBlocks)
	dataBitmapStart := inodeAreaStart + uint64(super.InodeAreaBlocks)
	dataAreaStart := dataBitmapStart + uint64(super.DataBitmapBlocks)

	return &EasyFileSystem{
		cache:          cache,
		super:          super,
		inodeBitmap:    bitmap{startBlock: 1, blocks: uint64(super.InodeBitmapBlocks)},
		dataBitmap:     bitmap{startBlock: dataBitmapStart, blocks: uint64(super.DataBitmapBlocks)},
		inodeAreaStart: inodeAreaStart,
		dataAreaStart:  dataAreaStart,
	}, nil
}

// Lock/Unlock expose the filesystem-wide lock to callers (vfs.Inode) that
// must hold it across a whole logical operation, per the FS-before-cache
// lock ordering rule.
func (fs *EasyFileSystem) Lock()   { fs.mu.Lock() }
func (fs *EasyFileSystem) Unlock() { fs.mu.Unlock() }

// Cache returns the block cache this filesystem allocates through.
func (fs *EasyFileSystem) Cache() *blockcache.Cache { return fs.cache }

// SuperBlock returns a copy of the current superblock.
func (fs *EasyFileSystem) SuperBlock() SuperBlock { return fs.super }

// AllocInode allocates and returns the lowest-clear inode id.
func (fs *EasyFileSystem) AllocInode() (uint32, error) {
	id, ok, err := fs.inodeBitmap.alloc(fs.cache)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("diskfs: inode bitmap exhausted")
	}
	return uint32(id), nil
}

// AllocData allocates and returns the lowest-clear data block's absolute
// block id (already offset into the data area).
func (fs *EasyFileSystem) AllocData() (uint32, error) {
	bit, ok, err := fs.dataBitmap.alloc(fs.cache)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("diskfs: data bitmap exhausted")
	}
	return uint32(fs.dataAreaStart + bit), nil
}

// DeallocData clears blockID's bit in the data bitmap and zeroes its
// content for deterministic reuse.
func (fs *EasyFileSystem) DeallocData(blockID uint32) error {
	zero := make([]byte, BlockSize)
	if err := fs.cache.Modify(uint64(blockID), 0, func(buf []byte) { copy(buf, zero) }); err != nil {
		return err
	}
	bit := uint64(blockID) - fs.dataAreaStart
	return fs.dataBitmap.dealloc(fs.cache, bit)
}

// GetDiskInodePos maps an inode id to its (block id, byte offset) within
// the inode area.
func (fs *EasyFileSystem) GetDiskInodePos(inodeID uint32) (uint64, int) {
	blockID := fs.inodeAreaStart + uint64(inodeID)/uint64(inodesPerBlock)
	offset := int(inodeID%uint32(inodesPerBlock)) * diskInodeSize
	return blockID, offset
}

// GetInodeByPos is the inverse of GetDiskInodePos, used by fstat_id.
func (fs *EasyFileSystem) GetInodeByPos(blockID uint64, offset int) uint32 {
	base := (blockID - fs.inodeAreaStart) * uint64(inodesPerBlock)
	return uint32(base) + uint32(offset/diskInodeSize)
}

// RootInodePos returns the (block id, byte offset) of the root directory's
// disk inode.
func (fs *EasyFileSystem) RootInodePos() (uint64, int) {
	return fs.GetDiskInodePos(RootInodeID)
}
