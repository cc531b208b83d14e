package diskfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockcache"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockdev"
)

func newTestCache(t *testing.T, numBlocks uint64) *blockcache.Cache {
	t.Helper()
	dev := blockdev.NewMemDevice(numBlocks)
	return blockcache.New(dev, 16)
}

func TestBitmapAllocReturnsLowestClearBit(t *testing.T) {
	cache := newTestCache(t, 4)
	b := bitmap{startBlock: 0, blocks: 1}

	first, ok, err := b.alloc(cache)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), first)

	second, ok, err := b.alloc(cache)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), second)
}

func TestBitmapDeallocFreesBitForReuse(t *testing.T) {
	cache := newTestCache(t, 4)
	b := bitmap{startBlock: 0, blocks: 1}

	first, _, err := b.alloc(cache)
	require.NoError(t, err)
	_, _, err = b.alloc(cache)
	require.NoError(t, err)

	require.NoError(t, b.dealloc(cache, first))

	reused, ok, err := b.alloc(cache)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first, reused)
}

func TestBitmapExhaustionReturnsFalse(t *testing.T) {
	cache := newTestCache(t, 4)
	b := bitmap{startBlock: 0, blocks: 1}

	for i := uint64(0); i < b.maxBits(); i++ {
		_, ok, err := b.alloc(cache)
		require.NoError(t, err)
		require.True(t, ok)
	}
	_, ok, err := b.alloc(cache)
	require.NoError(t, err)
	require.False(t, ok)
}
