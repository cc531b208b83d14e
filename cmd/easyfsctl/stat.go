package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/vfs"
)

var statCmd = &cobra.Command{
	Use:   "stat <device-file> <path>",
	Short: "Print an inode's id, link count, and mode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, dev, err := openVolume(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		node, ok, err := resolvePath(vfs.Root(fs), args[1])
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound(args[1])
		}

		nlink, err := node.FstatNlink()
		if err != nil {
			return err
		}
		mode, err := node.GetModeID()
		if err != nil {
			return err
		}
		modeName := "undefined"
		switch mode {
		case vfs.ModeDir:
			modeName = "dir"
		case vfs.ModeFile:
			modeName = "file"
		}

		fmt.Printf("inode=%d nlink=%d mode=%s\n", node.FstatID(), nlink, modeName)
		return nil
	},
}
