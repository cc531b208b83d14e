// Package cfg binds easyfsctl's command-line flags to a typed Config via
// viper/pflag, the way the rest of this codebase's CLI tooling does.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for one easyfsctl
// invocation: volume geometry, cache sizing, and the logger's ambient
// settings.
type Config struct {
	Volume VolumeConfig `mapstructure:"volume"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Log    LogConfig    `mapstructure:"log"`
}

// VolumeConfig describes the on-disk layout Format lays down.
type VolumeConfig struct {
	TotalBlocks       uint32 `mapstructure:"total-blocks"`
	InodeBitmapBlocks uint32 `mapstructure:"inode-bitmap-blocks"`
}

// CacheConfig sizes the shared block cache.
type CacheConfig struct {
	CapacityBlocks int `mapstructure:"capacity-blocks"`
}

// SyncConfig controls the deadlock-avoidance pre-check.
type SyncConfig struct {
	DeadlockDetect bool `mapstructure:"deadlock-detect"`
}

// LogConfig mirrors internal/logger.Config's fields, bound from flags
// instead of constructed by hand.
type LogConfig struct {
	Severity  string `mapstructure:"severity"`
	Format    string `mapstructure:"format"`
	FilePath  string `mapstructure:"file-path"`
	MaxSizeMB int    `mapstructure:"max-size-mb"`
}

// BindFlags registers every Config field as a pflag on flagSet and binds
// it into viper under the same dotted key used by mapstructure above.
func BindFlags(flagSet *pflag.FlagSet) error {
	flagSet.Uint32P("total-blocks", "", 8192, "Total blocks in a newly formatted volume.")
	if err := viper.BindPFlag("volume.total-blocks", flagSet.Lookup("total-blocks")); err != nil {
		return err
	}

	flagSet.Uint32P("inode-bitmap-blocks", "", 4, "Blocks of inode bitmap to reserve when formatting.")
	if err := viper.BindPFlag("volume.inode-bitmap-blocks", flagSet.Lookup("inode-bitmap-blocks")); err != nil {
		return err
	}

	flagSet.IntP("cache-capacity-blocks", "", 64, "Number of block-cache slots held in memory.")
	if err := viper.BindPFlag("cache.capacity-blocks", flagSet.Lookup("cache-capacity-blocks")); err != nil {
		return err
	}

	flagSet.BoolP("deadlock-detect", "", false, "Enable the Banker's-algorithm pre-check on semaphore acquisition.")
	if err := viper.BindPFlag("sync.deadlock-detect", flagSet.Lookup("deadlock-detect")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "info", "Minimum log severity: trace, debug, info, warning, error, off.")
	if err := viper.BindPFlag("log.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log encoding: text or json.")
	if err := viper.BindPFlag("log.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to a log file; empty logs to stderr.")
	if err := viper.BindPFlag("log.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("log-max-size-mb", "", 100, "Rotate the log file once it exceeds this size, in megabytes.")
	return viper.BindPFlag("log.max-size-mb", flagSet.Lookup("log-max-size-mb"))
}

// Load reads bound flags (and any config file viper has been pointed at)
// into a Config.
func Load() (Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
