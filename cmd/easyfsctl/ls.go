package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/vfs"
)

var lsCmd = &cobra.Command{
	Use:   "ls <device-file> [dir-path]",
	Short: "List entries in a directory (defaults to the root)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, dev, err := openVolume(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		root := vfs.Root(fs)
		dir := root
		if len(args) == 2 && args[1] != "" && args[1] != "/" {
			found, ok, ferr := resolvePath(root, args[1])
			if ferr != nil {
				return ferr
			}
			if !ok {
				return errNotFound(args[1])
			}
			dir = found
		}

		names, err := dir.Ls()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}
