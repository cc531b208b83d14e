package main

import (
	"strings"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockcache"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockdev"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/diskfs"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/vfs"
)

// openVolume opens an already-formatted file-backed volume at path.
func openVolume(path string) (*diskfs.EasyFileSystem, *blockdev.FileDevice, error) {
	dev, err := blockdev.OpenFileDevice(path, uint64(appConfig.Volume.TotalBlocks))
	if err != nil {
		return nil, nil, err
	}
	cache := blockcache.New(dev, appConfig.Cache.CapacityBlocks)
	fs, err := diskfs.Open(cache)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return fs, dev, nil
}

// resolvePath walks root down to the directory/file named by the
// slash-separated path, failing if any segment is missing.
func resolvePath(root *vfs.Inode, path string) (*vfs.Inode, bool, error) {
	current := root
	for _, segment := range splitPath(path) {
		next, ok, err := current.Find(segment)
		if err != nil || !ok {
			return nil, false, err
		}
		current = next
	}
	return current, true, nil
}

// resolveParentAndLeaf walks root down to path's parent directory,
// returning it alongside the final segment's name.
func resolveParentAndLeaf(root *vfs.Inode, path string) (*vfs.Inode, string, error) {
	segments := splitPath(path)
	parent := root
	for _, segment := range segments[:len(segments)-1] {
		next, ok, err := parent.Find(segment)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", errNotFound(segment)
		}
		parent = next
	}
	return parent, segments[len(segments)-1], nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

type notFoundError string

func (e notFoundError) Error() string { return "easyfsctl: not found: " + string(e) }

func errNotFound(name string) error { return notFoundError(name) }
