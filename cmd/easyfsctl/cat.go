package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/diskfs"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/vfs"
)

var catCmd = &cobra.Command{
	Use:   "cat <device-file> <file-path>",
	Short: "Print a file's contents to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, dev, err := openVolume(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		file, ok, err := resolvePath(vfs.Root(fs), args[1])
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound(args[1])
		}

		buf := make([]byte, diskfs.BlockSize)
		offset := 0
		for {
			n, rerr := file.ReadAt(offset, buf)
			if rerr != nil {
				return rerr
			}
			if n == 0 {
				break
			}
			if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
				return werr
			}
			offset += n
		}
		fmt.Println()
		return nil
	},
}
