package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockcache"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/blockdev"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/diskfs"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/logger"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs <device-file>",
	Short: "Format a new easy-fs volume at the given path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := blockdev.OpenFileDevice(args[0], uint64(appConfig.Volume.TotalBlocks))
		if err != nil {
			return fmt.Errorf("opening device file: %w", err)
		}
		defer dev.Close()

		cache := blockcache.New(dev, appConfig.Cache.CapacityBlocks)
		if _, err := diskfs.Format(cache, appConfig.Volume.TotalBlocks, appConfig.Volume.InodeBitmapBlocks); err != nil {
			return fmt.Errorf("formatting volume: %w", err)
		}
		logger.Infof("mkfs: formatted %s (%d blocks)", args[0], appConfig.Volume.TotalBlocks)
		return nil
	},
}
