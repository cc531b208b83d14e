package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestAsyncLoggerWriteAndClose(t *testing.T) {
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "test.log")
	lj := &lumberjack.Logger{Filename: logPath}
	async := NewAsyncLogger(lj, 10)

	fmt.Fprintln(async, "message 1")
	fmt.Fprintln(async, "message 2")
	fmt.Fprintln(async, "message 3")
	require.NoError(t, async.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Equal(t, "message 1\nmessage 2\nmessage 3\n", string(content))
}

func TestAsyncLoggerCloseIsIdempotent(t *testing.T) {
	tempDir := t.TempDir()
	lj := &lumberjack.Logger{Filename: filepath.Join(tempDir, "test.log")}
	async := NewAsyncLogger(lj, 4)

	require.NoError(t, async.Close())
	require.NoError(t, async.Close())
}
