package diskfs

import (
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockcache"
)

// bitsPerBlock is how many allocation units one bitmap block can track.
const bitsPerBlock = BlockSize * 8

// bitmap is a sequence of blocks, each bit marking one inode or one data
// block as allocated. Allocation returns the lowest clear bit; bitmaps are
// authoritative for liveness, not any derived count.
type bitmap struct {
	startBlock uint64
	blocks     uint64
}

func (b *bitmap) maxBits() uint64 {
	return b.blocks * bitsPerBlock
}

// alloc finds and sets the lowest clear bit, returning its global index.
// Returns (0, false) if the bitmap is exhausted.
func (b *bitmap) alloc(cache *blockcache.Cache) (uint64, bool, error) {
	for blk := uint64(0); blk < b.blocks; blk++ {
		var found int = -1
		err := cache.Modify(b.startBlock+blk, 0, func(buf []byte) {
			words := buf[:BlockSize]
			for byteIdx := 0; byteIdx < len(words); byteIdx++ {
				if words[byteIdx] == 0xff {
					continue
				}
				for bit := 0; bit < 8; bit++ {
					if words[byteIdx]&(1<<uint(bit)) == 0 {
						words[byteIdx] |= 1 << uint(bit)
						found = byteIdx*8 + bit
						return
					}
				}
			}
		})
		if err != nil {
			return 0, false, err
		}
		if found >= 0 {
			return blk*bitsPerBlock + uint64(found), true, nil
		}
	}
	return 0, false, nil
}

// dealloc clears the bit at the given global index.
func (b *bitmap) dealloc(cache *blockcache.Cache, bit uint64) error {
	blk := bit / bitsPerBlock
	within := bit % bitsPerBlock
	byteIdx := within / 8
	bitIdx := within % 8
	return cache.Modify(b.startBlock+blk, 0, func(buf []byte) {
		buf[byteIdx] &^= 1 << bitIdx
	})
}
