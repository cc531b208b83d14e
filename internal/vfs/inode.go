// Package vfs is the handle-based layer user code actually calls: each
// Inode pins a (block id, block offset) pair into the inode area and
// funnels every operation through the owning diskfs.EasyFileSystem's lock
// before touching the shared block cache, so directory mutation and data
// growth stay atomic from a caller's point of view.
package vfs

import (
	"fmt"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockcache"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/diskfs"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/logger"
)

// ModeUndefined/ModeDir/ModeFile are the values GetModeID returns; they
// describe the inode's kind to syscall-level stat calls and intentionally
// do not match diskfs.InodeType's own numbering.
const (
	ModeUndefined = 0
	ModeDir       = 1
	ModeFile      = 2
)

// Inode is a VFS-level handle onto one on-disk inode.
type Inode struct {
	blockID     uint64
	blockOffset int
	fs          *diskfs.EasyFileSystem
	cache       *blockcache.Cache
}

// New wraps a (block id, block offset) pair as a VFS handle.
func New(blockID uint64, blockOffset int, fs *diskfs.EasyFileSystem, cache *blockcache.Cache) *Inode {
	return &Inode{blockID: blockID, blockOffset: blockOffset, fs: fs, cache: cache}
}

// Root returns the handle for the filesystem's root directory.
func Root(fs *diskfs.EasyFileSystem) *Inode {
	blockID, offset := fs.RootInodePos()
	return New(blockID, offset, fs, fs.Cache())
}

func (n *Inode) readDisk(f func(d *diskfs.DiskInode)) error {
	var raw [diskfs.BlockSize]byte
	if err := n.cache.Read(n.blockID, 0, func(buf []byte) { copy(raw[:], buf) }); err != nil {
		return err
	}
	var d diskfs.DiskInode
	d.UnmarshalBinary(raw[n.blockOffset:])
	f(&d)
	return nil
}

func (n *Inode) modifyDisk(f func(d *diskfs.DiskInode)) error {
	return n.cache.Modify(n.blockID, n.blockOffset, func(buf []byte) {
		var d diskfs.DiskInode
		d.UnmarshalBinary(buf)
		f(&d)
		enc := d.MarshalBinary()
		copy(buf, enc[:])
	})
}

func (n *Inode) findInodeID(name string, disk *diskfs.DiskInode) (uint32, bool, error) {
	fileCount := int(disk.Size) / diskfs.DirentSize
	var dirent diskfs.DirEntry
	buf := make([]byte, diskfs.DirentSize)
	for i := 0; i < fileCount; i++ {
		nRead, err := disk.ReadAt(i*diskfs.DirentSize, buf, n.cache)
		if err != nil {
			return 0, false, err
		}
		if nRead != diskfs.DirentSize {
			return 0, false, fmt.Errorf("vfs: short directory entry read at index %d", i)
		}
		dirent.UnmarshalBinary(buf)
		if dirent.Name == name {
			return dirent.InodeID, true, nil
		}
	}
	return 0, false, nil
}

// Find looks up name in the directory n and returns its handle, or
// (nil, false) if no such entry exists. n must be a directory.
func (n *Inode) Find(name string) (*Inode, bool, error) {
	n.fs.Lock()
	defer n.fs.Unlock()

	var found *Inode
	var ok bool
	err := n.readDisk(func(disk *diskfs.DiskInode) {
		if !disk.IsDir() {
			return
		}
		id, got, ferr := n.findInodeID(name, disk)
		if ferr != nil || !got {
			ok = got
			return
		}
		blockID, offset := n.fs.GetDiskInodePos(id)
		found = New(blockID, offset, n.fs, n.cache)
		ok = true
	})
	if err != nil {
		return nil, false, err
	}
	return found, ok, nil
}

// increaseSize grows disk (already loaded from n's block) to newSize,
// allocating whatever additional data/index blocks are needed. Caller must
// already hold n.fs's lock.
func (n *Inode) increaseSize(newSize uint32, disk *diskfs.DiskInode) error {
	if newSize < disk.Size {
		return nil
	}
	needed := disk.BlocksNumNeeded(newSize)
	newBlocks := make([]uint32, needed)
	for i := range newBlocks {
		id, err := n.fs.AllocData()
		if err != nil {
			return err
		}
		newBlocks[i] = id
	}
	return disk.IncreaseSize(newSize, newBlocks, n.cache)
}

// Create makes a new file named name under directory n, failing if the
// name is already taken. n must be a directory.
func (n *Inode) Create(name string) (*Inode, bool, error) {
	n.fs.Lock()
	defer n.fs.Unlock()

	var alreadyExists bool
	err := n.readDisk(func(disk *diskfs.DiskInode) {
		if !disk.IsDir() {
			alreadyExists = true
			return
		}
		_, ok, _ := n.findInodeID(name, disk)
		alreadyExists = ok
	})
	if err != nil {
		return nil, false, err
	}
	if alreadyExists {
		return nil, false, nil
	}

	newInodeID, err := n.fs.AllocInode()
	if err != nil {
		return nil, false, err
	}
	newBlockID, newOffset := n.fs.GetDiskInodePos(newInodeID)
	if err := n.cache.Modify(newBlockID, newOffset, func(buf []byte) {
		var newDisk diskfs.DiskInode
		newDisk.Initialize(diskfs.TypeFile)
		enc := newDisk.MarshalBinary()
		copy(buf, enc[:])
	}); err != nil {
		return nil, false, err
	}

	var modifyErr error
	err = n.modifyDisk(func(disk *diskfs.DiskInode) {
		fileCount := int(disk.Size) / diskfs.DirentSize
		newSize := uint32((fileCount + 1) * diskfs.DirentSize)
		if modifyErr = n.increaseSize(newSize, disk); modifyErr != nil {
			return
		}
		dirent := diskfs.DirEntry{Name: name, InodeID: newInodeID}
		enc := dirent.MarshalBinary()
		if _, modifyErr = disk.WriteAt(fileCount*diskfs.DirentSize, enc[:], n.cache); modifyErr != nil {
			return
		}
	})
	if err != nil {
		return nil, false, err
	}
	if modifyErr != nil {
		return nil, false, modifyErr
	}

	if err := n.cache.SyncAll(); err != nil {
		return nil, false, err
	}
	logger.Debugf("vfs: created %q as inode %d", name, newInodeID)
	return New(newBlockID, newOffset, n.fs, n.cache), true, nil
}

// Ls lists the names in directory n.
func (n *Inode) Ls() ([]string, error) {
	n.fs.Lock()
	defer n.fs.Unlock()

	var names []string
	var readErr error
	err := n.readDisk(func(disk *diskfs.DiskInode) {
		fileCount := int(disk.Size) / diskfs.DirentSize
		buf := make([]byte, diskfs.DirentSize)
		for i := 0; i < fileCount; i++ {
			if _, readErr = disk.ReadAt(i*diskfs.DirentSize, buf, n.cache); readErr != nil {
				return
			}
			var dirent diskfs.DirEntry
			dirent.UnmarshalBinary(buf)
			names = append(names, dirent.Name)
		}
	})
	if err != nil {
		return nil, err
	}
	return names, readErr
}

// ReadAt reads from n's content into buf starting at offset.
func (n *Inode) ReadAt(offset int, buf []byte) (int, error) {
	n.fs.Lock()
	defer n.fs.Unlock()

	var read int
	var readErr error
	err := n.readDisk(func(disk *diskfs.DiskInode) {
		read, readErr = disk.ReadAt(offset, buf, n.cache)
	})
	if err != nil {
		return 0, err
	}
	return read, readErr
}

// WriteAt writes buf into n's content starting at offset, growing n if
// necessary.
func (n *Inode) WriteAt(offset int, buf []byte) (int, error) {
	n.fs.Lock()
	defer n.fs.Unlock()

	var written int
	var opErr error
	err := n.modifyDisk(func(disk *diskfs.DiskInode) {
		if opErr = n.increaseSize(uint32(offset+len(buf)), disk); opErr != nil {
			return
		}
		written, opErr = disk.WriteAt(offset, buf, n.cache)
	})
	if err != nil {
		return 0, err
	}
	if opErr != nil {
		return 0, opErr
	}
	if err := n.cache.SyncAll(); err != nil {
		return written, err
	}
	return written, nil
}

// Clear truncates n to zero length, returning every block it held to the
// data bitmap.
func (n *Inode) Clear() error {
	n.fs.Lock()
	defer n.fs.Unlock()

	var opErr error
	err := n.modifyDisk(func(disk *diskfs.DiskInode) {
		size := disk.Size
		freed, cerr := disk.ClearSize(n.cache)
		if cerr != nil {
			opErr = cerr
			return
		}
		if uint32(len(freed)) != diskfs.TotalBlocks(size) {
			panic(fmt.Sprintf("vfs: clear freed %d blocks, expected %d", len(freed), diskfs.TotalBlocks(size)))
		}
		for _, blockID := range freed {
			if opErr = n.fs.DeallocData(blockID); opErr != nil {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}
	return n.cache.SyncAll()
}

// LinkAt adds newName as an additional directory entry pointing at
// oldName's inode, returning false if oldName does not exist. n must be a
// directory.
func (n *Inode) LinkAt(oldName, newName string) (bool, error) {
	n.fs.Lock()
	defer n.fs.Unlock()

	var inodeID uint32
	var found bool
	err := n.readDisk(func(disk *diskfs.DiskInode) {
		inodeID, found, _ = n.findInodeID(oldName, disk)
	})
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	var opErr error
	err = n.modifyDisk(func(dirRoot *diskfs.DiskInode) {
		if opErr = n.increaseSize(dirRoot.Size+uint32(diskfs.DirentSize), dirRoot); opErr != nil {
			return
		}
		dirent := diskfs.DirEntry{Name: newName, InodeID: inodeID}
		enc := dirent.MarshalBinary()
		if _, opErr = dirRoot.WriteAt(int(dirRoot.Size)-diskfs.DirentSize, enc[:], n.cache); opErr != nil {
			return
		}
	})
	if err != nil {
		return false, err
	}
	if opErr != nil {
		return false, opErr
	}

	targetBlockID, targetOffset := n.fs.GetDiskInodePos(inodeID)
	if err := n.cache.Modify(targetBlockID, targetOffset, func(buf []byte) {
		var disk diskfs.DiskInode
		disk.UnmarshalBinary(buf)
		disk.AddRef()
		enc := disk.MarshalBinary()
		copy(buf, enc[:])
	}); err != nil {
		return false, err
	}

	if err := n.cache.SyncAll(); err != nil {
		return false, err
	}
	logger.Debugf("vfs: linked %q -> %q (inode %d)", newName, oldName, inodeID)
	return true, nil
}

// UnlinkAt removes name from directory n. If it was the entry's last link
// the underlying inode's content is cleared and its blocks freed. Removal
// compacts the directory by moving the last entry into the freed slot,
// matching the allocator's no-tombstone layout.
func (n *Inode) UnlinkAt(name string) (bool, error) {
	n.fs.Lock()
	defer n.fs.Unlock()

	var inodeID uint32
	var found bool
	var opErr error
	err := n.modifyDisk(func(disk *diskfs.DiskInode) {
		fileCount := int(disk.Size) / diskfs.DirentSize
		buf := make([]byte, diskfs.DirentSize)
		for i := 0; i < fileCount; i++ {
			if _, opErr = disk.ReadAt(i*diskfs.DirentSize, buf, n.cache); opErr != nil {
				return
			}
			var dirent diskfs.DirEntry
			dirent.UnmarshalBinary(buf)
			if dirent.Name != name {
				continue
			}
			inodeID = dirent.InodeID
			found = true
			if i != fileCount-1 {
				var lastBuf [diskfs.DirentSize]byte
				if _, opErr = disk.ReadAt((fileCount-1)*diskfs.DirentSize, lastBuf[:], n.cache); opErr != nil {
					return
				}
				if _, opErr = disk.WriteAt(i*diskfs.DirentSize, lastBuf[:], n.cache); opErr != nil {
					return
				}
			}
			disk.Size -= diskfs.DirentSize
			return
		}
	})
	if err != nil {
		return false, err
	}
	if opErr != nil {
		return false, opErr
	}
	if !found {
		return false, nil
	}

	targetBlockID, targetOffset := n.fs.GetDiskInodePos(inodeID)
	var shouldRemove bool
	var size uint32
	if err := n.cache.Modify(targetBlockID, targetOffset, func(buf []byte) {
		var disk diskfs.DiskInode
		disk.UnmarshalBinary(buf)
		disk.MinusRef()
		shouldRemove = disk.CanRemove()
		size = disk.Size
		enc := disk.MarshalBinary()
		copy(buf, enc[:])
	}); err != nil {
		return false, err
	}

	if shouldRemove {
		target := New(targetBlockID, targetOffset, n.fs, n.cache)
		var freed []uint32
		if err := target.modifyDisk(func(disk *diskfs.DiskInode) {
			var cerr error
			freed, cerr = disk.ClearSize(n.cache)
			if cerr != nil {
				opErr = cerr
			}
		}); err != nil {
			return false, err
		}
		if opErr != nil {
			return false, opErr
		}
		if uint32(len(freed)) != diskfs.TotalBlocks(size) {
			panic(fmt.Sprintf("vfs: unlink freed %d blocks, expected %d", len(freed), diskfs.TotalBlocks(size)))
		}
		for _, blockID := range freed {
			if err := n.fs.DeallocData(blockID); err != nil {
				return false, err
			}
		}
	}

	if err := n.cache.SyncAll(); err != nil {
		return false, err
	}
	logger.Debugf("vfs: unlinked %q (inode %d, removed=%v)", name, inodeID, shouldRemove)
	return true, nil
}

// FstatID returns n's inode id.
func (n *Inode) FstatID() uint32 {
	n.fs.Lock()
	defer n.fs.Unlock()
	return n.fs.GetInodeByPos(n.blockID, n.blockOffset)
}

// FstatNlink returns n's current link (reference) count.
func (n *Inode) FstatNlink() (uint32, error) {
	n.fs.Lock()
	defer n.fs.Unlock()
	var refCnt uint32
	err := n.readDisk(func(disk *diskfs.DiskInode) { refCnt = disk.RefCnt })
	return refCnt, err
}

// GetModeID reports whether n is a directory (ModeDir), a file
// (ModeFile), or neither (ModeUndefined).
func (n *Inode) GetModeID() (int, error) {
	n.fs.Lock()
	defer n.fs.Unlock()
	mode := ModeUndefined
	err := n.readDisk(func(disk *diskfs.DiskInode) {
		switch {
		case disk.IsDir():
			mode = ModeDir
		case disk.IsFile():
			mode = ModeFile
		}
	})
	return mode, err
}
