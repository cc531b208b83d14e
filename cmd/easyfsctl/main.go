// Command easyfsctl is a manual/CI smoke-testing CLI over a file-backed
// easy-fs volume: mkfs, ls, cat, write, stat, and a tiny throughput bench.
// It is plumbing around internal/diskfs and internal/vfs, not part of the
// graded filesystem core.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LearningOS/2024s-rcore-17999824wyj/cfg"
	"github.com/LearningOS/2024s-rcore-17999824wyj/internal/logger"
)

var appConfig cfg.Config

var rootCmd = &cobra.Command{
	Use:   "easyfsctl",
	Short: "Inspect and manipulate easy-fs volumes from the command line",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := cfg.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		appConfig = loaded
		return logger.Init(logger.Config{
			Format:    appConfig.Log.Format,
			Severity:  logger.Severity(strings.ToUpper(appConfig.Log.Severity)),
			FilePath:  appConfig.Log.FilePath,
			MaxSizeMB: appConfig.Log.MaxSizeMB,
		})
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Shutdown()
	},
}

func init() {
	if err := cfg.BindFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("easyfsctl: binding flags: %v", err))
	}
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("easyfsctl: binding viper flags: %v", err))
	}
	rootCmd.AddCommand(mkfsCmd, lsCmd, catCmd, writeCmd, statCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
