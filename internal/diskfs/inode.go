package diskfs

import (
	"encoding/binary"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockcache"
)

// DiskInode is the on-disk metadata record for one file or directory. It
// never touches the device directly: every indirect block it addresses is
// fetched through the shared blockcache.Cache, so index blocks participate
// in the same write-back discipline as data blocks.
type DiskInode struct {
	Size      uint32
	Direct    [InodeDirectCount]uint32
	Indirect1 uint32
	Indirect2 uint32
	Type      InodeType
	RefCnt    uint32
}

// MarshalBinary encodes d into its fixed diskInodeSize-byte on-disk form.
func (d *DiskInode) MarshalBinary() [diskInodeSize]byte {
	var out [diskInodeSize]byte
	order := binary.LittleEndian
	order.PutUint32(out[0:], d.Size)
	for i, v := range d.Direct {
		order.PutUint32(out[4+i*4:], v)
	}
	off := 4 + InodeDirectCount*4
	order.PutUint32(out[off:], d.Indirect1)
	order.PutUint32(out[off+4:], d.Indirect2)
	order.PutUint32(out[off+8:], uint32(d.Type))
	order.PutUint32(out[off+12:], d.RefCnt)
	return out
}

// UnmarshalBinary decodes a diskInodeSize-byte record into d.
func (d *DiskInode) UnmarshalBinary(buf []byte) {
	order := binary.LittleEndian
	d.Size = order.Uint32(buf[0:])
	for i := range d.Direct {
		d.Direct[i] = order.Uint32(buf[4+i*4:])
	}
	off := 4 + InodeDirectCount*4
	d.Indirect1 = order.Uint32(buf[off:])
	d.Indirect2 = order.Uint32(buf[off+4:])
	d.Type = InodeType(order.Uint32(buf[off+8:]))
	d.RefCnt = order.Uint32(buf[off+12:])
}

// Initialize resets d to an empty inode of the given type with a ref count
// of 1 (the implicit reference held by whoever is about to link it in).
func (d *DiskInode) Initialize(t InodeType) {
	*d = DiskInode{Type: t, RefCnt: 1}
}

func (d *DiskInode) IsDir() bool  { return d.Type == TypeDirectory }
func (d *DiskInode) IsFile() bool { return d.Type == TypeFile }

func (d *DiskInode) AddRef()          { d.RefCnt++ }
func (d *DiskInode) MinusRef()        { d.RefCnt-- }
func (d *DiskInode) CanRemove() bool  { return d.RefCnt == 0 }

func getU32(buf []byte, idx int) uint32 {
	return binary.LittleEndian.Uint32(buf[idx*4:])
}

func putU32(buf []byte, idx int, v uint32) {
	binary.LittleEndian.PutUint32(buf[idx*4:], v)
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func ceilDiv(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// dataBlocks is the number of data blocks needed to hold size bytes.
func dataBlocks(size uint32) uint32 {
	return ceilDiv(size, BlockSize)
}

// indexBlocksForData returns how many indirect index blocks (indirect1,
// indirect2, and indirect2's leaves) are needed to address d data blocks.
func indexBlocksForData(d uint32) uint32 {
	if d <= InodeDirectCount {
		return 0
	}
	d -= InodeDirectCount
	if d <= InodeIndirectCount {
		return 1
	}
	d -= InodeIndirectCount
	leaves := ceilDiv(d, InodeIndirectCount)
	return 2 + leaves
}

// TotalBlocks is the static function from the spec: the count of all
// blocks (data + index) required to represent size bytes of content.
func TotalBlocks(size uint32) uint32 {
	d := dataBlocks(size)
	return d + indexBlocksForData(d)
}

// BlocksNumNeeded returns the additional data+index blocks required to
// grow from d's current size to newSize.
func (d *DiskInode) BlocksNumNeeded(newSize uint32) uint32 {
	return TotalBlocks(newSize) - TotalBlocks(d.Size)
}

// IncreaseSize wires exactly BlocksNumNeeded(newSize) pre-allocated block
// ids into the direct/indirect1/indirect2 tables, in ascending logical
// order, and sets d.Size to newSize.
func (d *DiskInode) IncreaseSize(newSize uint32, newBlocks []uint32, cache *blockcache.Cache) error {
	consumed := 0
	next := func() uint32 {
		b := newBlocks[consumed]
		consumed++
		return b
	}

	current := dataBlocks(d.Size)
	d.Size = newSize
	total := dataBlocks(newSize)

	for current < minU32(total, InodeDirectCount) {
		d.Direct[current] = next()
		current++
	}
	if total <= InodeDirectCount {
		return nil
	}
	if current == InodeDirectCount {
		d.Indirect1 = next()
	}
	current -= InodeDirectCount
	total -= InodeDirectCount

	if err := cache.Modify(uint64(d.Indirect1), 0, func(buf []byte) {
		for current < minU32(total, InodeIndirectCount) {
			putU32(buf, int(current), next())
			current++
		}
	}); err != nil {
		return err
	}
	if total <= InodeIndirectCount {
		return nil
	}
	if current == InodeIndirectCount {
		d.Indirect2 = next()
	}
	current -= InodeIndirectCount
	total -= InodeIndirectCount

	a0, b0 := current/InodeIndirectCount, current%InodeIndirectCount
	a1, b1 := total/InodeIndirectCount, total%InodeIndirectCount

	for a0 < a1 || (a0 == a1 && b0 < b1) {
		var leafID uint32
		if b0 == 0 {
			leafID = next()
			if err := cache.Modify(uint64(d.Indirect2), 0, func(buf []byte) {
				putU32(buf, int(a0), leafID)
			}); err != nil {
				return err
			}
		} else {
			if err := cache.Read(uint64(d.Indirect2), 0, func(buf []byte) {
				leafID = getU32(buf, int(a0))
			}); err != nil {
				return err
			}
		}
		entry := next()
		if err := cache.Modify(uint64(leafID), 0, func(buf []byte) {
			putU32(buf, int(b0), entry)
		}); err != nil {
			return err
		}
		b0++
		if b0 == InodeIndirectCount {
			b0 = 0
			a0++
		}
	}
	return nil
}

func (d *DiskInode) blockIDForLogical(logical uint32, cache *blockcache.Cache) (uint64, error) {
	if logical < InodeDirectCount {
		return uint64(d.Direct[logical]), nil
	}
	logical -= InodeDirectCount
	if logical < InodeIndirectCount {
		var id uint32
		err := cache.Read(uint64(d.Indirect1), 0, func(buf []byte) {
			id = getU32(buf, int(logical))
		})
		return uint64(id), err
	}
	logical -= InodeIndirectCount
	a := logical / InodeIndirectCount
	b := logical % InodeIndirectCount
	var leafID uint32
	if err := cache.Read(uint64(d.Indirect2), 0, func(buf []byte) {
		leafID = getU32(buf, int(a))
	}); err != nil {
		return 0, err
	}
	var id uint32
	err := cache.Read(uint64(leafID), 0, func(buf []byte) {
		id = getU32(buf, int(b))
	})
	return uint64(id), err
}

// ReadAt gathers bytes from d's content starting at offset into buf,
// clipped to d.Size, returning the number of bytes actually read.
func (d *DiskInode) ReadAt(offset int, buf []byte, cache *blockcache.Cache) (int, error) {
	size := int(d.Size)
	if offset >= size {
		return 0, nil
	}
	end := offset + len(buf)
	if end > size {
		end = size
	}
	total, pos := 0, offset
	for pos < end {
		blockOff := pos % BlockSize
		n := BlockSize - blockOff
		if pos+n > end {
			n = end - pos
		}
		blockID, err := d.blockIDForLogical(uint32(pos/BlockSize), cache)
		if err != nil {
			return total, err
		}
		if err := cache.Read(blockID, blockOff, func(src []byte) {
			copy(buf[total:total+n], src[:n])
		}); err != nil {
			return total, err
		}
		total += n
		pos += n
	}
	return total, nil
}

// WriteAt scatters buf into d's content starting at offset, clipped to
// d.Size (callers must grow the inode first), returning bytes written.
func (d *DiskInode) WriteAt(offset int, buf []byte, cache *blockcache.Cache) (int, error) {
	size := int(d.Size)
	if offset >= size {
		return 0, nil
	}
	end := offset + len(buf)
	if end > size {
		end = size
	}
	total, pos := 0, offset
	for pos < end {
		blockOff := pos % BlockSize
		n := BlockSize - blockOff
		if pos+n > end {
			n = end - pos
		}
		blockID, err := d.blockIDForLogical(uint32(pos/BlockSize), cache)
		if err != nil {
			return total, err
		}
		if err := cache.Modify(blockID, blockOff, func(dst []byte) {
			copy(dst[:n], buf[total:total+n])
		}); err != nil {
			return total, err
		}
		total += n
		pos += n
	}
	return total, nil
}

// ClearSize truncates d to size 0, returning every data-area block id it
// was holding (direct slots, indirect leaves, and the indirect1/indirect2
// blocks themselves) in the same order they were originally allocated, so
// callers can return them to the bitmap in a stable, test-pinnable order.
func (d *DiskInode) ClearSize(cache *blockcache.Cache) ([]uint32, error) {
	var out []uint32
	total := dataBlocks(d.Size)

	directCount := minU32(total, InodeDirectCount)
	for i := uint32(0); i < directCount; i++ {
		out = append(out, d.Direct[i])
		d.Direct[i] = 0
	}
	remaining := total - directCount

	if remaining > 0 {
		out = append(out, d.Indirect1)
		ind1Count := minU32(remaining, InodeIndirectCount)
		if err := cache.Read(uint64(d.Indirect1), 0, func(buf []byte) {
			for i := uint32(0); i < ind1Count; i++ {
				out = append(out, getU32(buf, int(i)))
			}
		}); err != nil {
			return nil, err
		}
		d.Indirect1 = 0
		remaining -= ind1Count

		if remaining > 0 {
			out = append(out, d.Indirect2)
			leaves := ceilDiv(remaining, InodeIndirectCount)
			leafIDs := make([]uint32, leaves)
			if err := cache.Read(uint64(d.Indirect2), 0, func(buf []byte) {
				for a := uint32(0); a < leaves; a++ {
					leafIDs[a] = getU32(buf, int(a))
				}
			}); err != nil {
				return nil, err
			}
			rest := remaining
			for a := uint32(0); a < leaves; a++ {
				leafID := leafIDs[a]
				out = append(out, leafID)
				cnt := minU32(rest, InodeIndirectCount)
				if err := cache.Read(uint64(leafID), 0, func(buf []byte) {
					for i := uint32(0); i < cnt; i++ {
						out = append(out, getU32(buf, int(i)))
					}
				}); err != nil {
					return nil, err
				}
				rest -= cnt
			}
			d.Indirect2 = 0
		}
	}

	d.Size = 0
	return out, nil
}
