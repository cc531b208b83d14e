package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/logger"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/vfs"
)

var benchSizeMB int

var benchCmd = &cobra.Command{
	Use:   "bench <device-file>",
	Short: "Write then read back a throwaway file, reporting elapsed time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, dev, err := openVolume(args[0])
		if err != nil {
			return err
		}
		defer dev.Close()

		root := vfs.Root(fs)
		file, ok, err := root.Create("_bench_scratch")
		if err != nil {
			return err
		}
		if !ok {
			found, foundOk, ferr := root.Find("_bench_scratch")
			if ferr != nil {
				return ferr
			}
			if !foundOk {
				return fmt.Errorf("easyfsctl: could not create or find bench scratch file")
			}
			file = found
			if err := file.Clear(); err != nil {
				return err
			}
		}

		payload := make([]byte, benchSizeMB*1024*1024)
		for i := range payload {
			payload[i] = byte(i)
		}

		start := time.Now()
		if _, err := file.WriteAt(0, payload); err != nil {
			return fmt.Errorf("bench write: %w", err)
		}
		writeElapsed := time.Since(start)

		readBuf := make([]byte, len(payload))
		start = time.Now()
		if _, err := file.ReadAt(0, readBuf); err != nil {
			return fmt.Errorf("bench read: %w", err)
		}
		readElapsed := time.Since(start)

		if _, err := root.UnlinkAt("_bench_scratch"); err != nil {
			return err
		}

		logger.Infof("bench: %d MB write=%s read=%s", benchSizeMB, writeElapsed, readElapsed)
		fmt.Printf("write=%s read=%s\n", writeElapsed, readElapsed)
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchSizeMB, "size-mb", 1, "Size of the throwaway benchmark file, in megabytes.")
}
