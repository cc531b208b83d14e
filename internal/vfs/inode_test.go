package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockcache"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockdev"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/diskfs"
)

func newRoot(t *testing.T) *Inode {
	t.Helper()
	dev := blockdev.NewMemDevice(4096)
	cache := blockcache.New(dev, 128)
	fs, err := diskfs.Format(cache, 4096, 4)
	require.NoError(t, err)
	return Root(fs)
}

func TestCreateThenFindRoundTrips(t *testing.T) {
	root := newRoot(t)

	created, ok, err := root.Create("hello.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, created)

	found, ok, err := root.Find("hello.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.FstatID(), found.FstatID())
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	root := newRoot(t)
	_, ok, err := root.Create("dup")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = root.Create("dup")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLsListsAllCreatedNames(t *testing.T) {
	root := newRoot(t)
	names := []string{"a", "b", "c"}
	for _, name := range names {
		_, ok, err := root.Create(name)
		require.NoError(t, err)
		require.True(t, ok)
	}
	listed, err := root.Ls()
	require.NoError(t, err)
	assert.Equal(t, names, listed, "Ls must preserve on-disk insertion order")
}

func TestWriteAtThenReadAtRoundTrips(t *testing.T) {
	root := newRoot(t)
	file, ok, err := root.Create("data.bin")
	require.NoError(t, err)
	require.True(t, ok)

	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	n, err := file.WriteAt(0, payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	readBack := make([]byte, len(payload))
	n, err = file.ReadAt(0, readBack)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, readBack)
}

func TestClearFreesContentAndResetsSize(t *testing.T) {
	root := newRoot(t)
	file, _, err := root.Create("big.bin")
	require.NoError(t, err)

	payload := make([]byte, 20000)
	_, err = file.WriteAt(0, payload)
	require.NoError(t, err)

	require.NoError(t, file.Clear())

	mode, err := file.GetModeID()
	require.NoError(t, err)
	assert.Equal(t, ModeFile, mode)

	readBack := make([]byte, 10)
	n, err := file.ReadAt(0, readBack)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLinkAtAddsSecondNameAndBumpsRefCount(t *testing.T) {
	root := newRoot(t)
	original, _, err := root.Create("orig")
	require.NoError(t, err)
	nlink, err := original.FstatNlink()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), nlink)

	ok, err := root.LinkAt("orig", "alias")
	require.NoError(t, err)
	require.True(t, ok)

	nlink, err = original.FstatNlink()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), nlink)

	aliased, ok, err := root.Find("alias")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, original.FstatID(), aliased.FstatID())
}

func TestLinkAtUnknownNameFails(t *testing.T) {
	root := newRoot(t)
	ok, err := root.LinkAt("nope", "alias")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnlinkAtRemovesEntryAndFreesOnLastRef(t *testing.T) {
	root := newRoot(t)
	file, _, err := root.Create("todelete")
	require.NoError(t, err)
	_, err = file.WriteAt(0, []byte("some content"))
	require.NoError(t, err)

	ok, err := root.UnlinkAt("todelete")
	require.NoError(t, err)
	require.True(t, ok)

	_, found, err := root.Find("todelete")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUnlinkAtKeepsInodeAliveWhileOtherLinksRemain(t *testing.T) {
	root := newRoot(t)
	original, _, err := root.Create("orig2")
	require.NoError(t, err)
	_, err = root.LinkAt("orig2", "alias2")
	require.NoError(t, err)

	ok, err := root.UnlinkAt("orig2")
	require.NoError(t, err)
	require.True(t, ok)

	aliased, found, err := root.Find("alias2")
	require.NoError(t, err)
	require.True(t, found)
	nlink, err := aliased.FstatNlink()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), nlink)
	assert.Equal(t, original.FstatID(), aliased.FstatID())
}

func TestUnlinkAtCompactsDirectoryByMovingLastEntry(t *testing.T) {
	root := newRoot(t)
	for _, name := range []string{"a", "b", "c"} {
		_, ok, err := root.Create(name)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := root.UnlinkAt("a")
	require.NoError(t, err)
	require.True(t, ok)

	listed, err := root.Ls()
	require.NoError(t, err)
	// "a" occupied slot 0; compaction must have moved the last entry
	// ("c") into that freed slot rather than leaving a gap or shifting
	// "b" forward, so the surviving order is ["c", "b"], not ["b", "c"].
	assert.Equal(t, []string{"c", "b"}, listed)
}

func TestGetModeIDDistinguishesDirAndFile(t *testing.T) {
	root := newRoot(t)
	mode, err := root.GetModeID()
	require.NoError(t, err)
	assert.Equal(t, ModeDir, mode)

	file, _, err := root.Create("leaf")
	require.NoError(t, err)
	mode, err = file.GetModeID()
	require.NoError(t, err)
	assert.Equal(t, ModeFile, mode)
}
