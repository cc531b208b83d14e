package cfg

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsAndLoadRoundTripsDefaults(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("easyfsctl", pflag.ContinueOnError)
	require.NoError(t, BindFlags(flagSet))
	require.NoError(t, flagSet.Parse(nil))

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint32(8192), c.Volume.TotalBlocks)
	assert.Equal(t, uint32(4), c.Volume.InodeBitmapBlocks)
	assert.Equal(t, 64, c.Cache.CapacityBlocks)
	assert.False(t, c.Sync.DeadlockDetect)
	assert.Equal(t, "info", c.Log.Severity)
	assert.Equal(t, "text", c.Log.Format)
}

func TestBindFlagsAndLoadPicksUpOverrides(t *testing.T) {
	viper.Reset()
	flagSet := pflag.NewFlagSet("easyfsctl", pflag.ContinueOnError)
	require.NoError(t, BindFlags(flagSet))
	require.NoError(t, flagSet.Parse([]string{
		"--total-blocks=2048",
		"--deadlock-detect",
		"--log-format=json",
	}))

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint32(2048), c.Volume.TotalBlocks)
	assert.True(t, c.Sync.DeadlockDetect)
	assert.Equal(t, "json", c.Log.Format)
}
