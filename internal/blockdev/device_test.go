package blockdev_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockdev"
)

func TestMemDeviceReadWriteRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(4)
	in := make([]byte, blockdev.BlockSize)
	copy(in, "hello block")
	require.NoError(t, dev.WriteBlock(2, in))

	out := make([]byte, blockdev.BlockSize)
	require.NoError(t, dev.ReadBlock(2, out))
	assert.Equal(t, in, out)

	// Untouched blocks remain zeroed.
	zero := make([]byte, blockdev.BlockSize)
	require.NoError(t, dev.ReadBlock(0, out))
	assert.Equal(t, zero, out)
}

func TestMemDeviceOutOfRange(t *testing.T) {
	dev := blockdev.NewMemDevice(1)
	buf := make([]byte, blockdev.BlockSize)
	assert.Error(t, dev.ReadBlock(5, buf))
	assert.Error(t, dev.WriteBlock(5, buf))
}

func TestMemDeviceRejectsWrongBufferSize(t *testing.T) {
	dev := blockdev.NewMemDevice(1)
	assert.Error(t, dev.ReadBlock(0, make([]byte, 10)))
	assert.Error(t, dev.WriteBlock(0, make([]byte, 10)))
}

func TestFileDeviceGrowsToRequestedSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")
	dev, err := blockdev.OpenFileDevice(path, 8)
	require.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, uint64(8), dev.NumBlocks())

	in := make([]byte, blockdev.BlockSize)
	copy(in, "persisted")
	require.NoError(t, dev.WriteBlock(3, in))

	dev2, err := blockdev.OpenFileDevice(path, 8)
	require.NoError(t, err)
	defer dev2.Close()

	out := make([]byte, blockdev.BlockSize)
	require.NoError(t, dev2.ReadBlock(3, out))
	assert.Equal(t, in, out)
}
