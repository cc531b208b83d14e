package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/logger"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/vfs"
)

var writeCmd = &cobra.Command{
	Use:   "write <device-file> <file-path> <local-source-file>",
	Short: "Create (or overwrite) a file in the volume from a local file's contents",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, dev, err := openVolume(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		parent, leaf, err := resolveParentAndLeaf(vfs.Root(fs), args[1])
		if err != nil {
			return err
		}

		file, ok, err := parent.Find(leaf)
		if err != nil {
			return err
		}
		if !ok {
			file, ok, err = parent.Create(leaf)
			if err != nil {
				return fmt.Errorf("creating %q: %w", args[1], err)
			}
			if !ok {
				return fmt.Errorf("easyfsctl: %q already exists", args[1])
			}
		} else if err := file.Clear(); err != nil {
			return fmt.Errorf("clearing existing %q: %w", args[1], err)
		}

		content, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("reading local source: %w", err)
		}
		n, err := file.WriteAt(0, content)
		if err != nil {
			return fmt.Errorf("writing volume content: %w", err)
		}
		logger.Infof("write: wrote %d bytes to %s", n, args[1])
		return nil
	},
}
