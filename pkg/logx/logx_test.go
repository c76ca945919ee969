package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugToggle(t *testing.T) {
	orig := IsDebugEnabled()
	defer SetDebug(orig)

	SetDebug(false)
	assert.False(t, IsDebugEnabled())

	SetDebug(true)
	assert.True(t, IsDebugEnabled())
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnableFileLogging(dir))
	defer CloseFileLogging()

	logger := NewLogger("test")
	logger.Info("hello %s", "world")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	line := string(data)
	assert.Contains(t, line, "[test]")
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "hello world")
}

func TestComponentTag(t *testing.T) {
	logger := NewLogger("engine")
	assert.Equal(t, "engine", logger.GetComponent())

	other := logger.WithComponent("batch")
	assert.Equal(t, "batch", other.GetComponent())
}

func TestDebugSuppressed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, EnableFileLogging(dir))
	defer CloseFileLogging()

	orig := IsDebugEnabled()
	defer SetDebug(orig)
	SetDebug(false)

	logger := NewLogger("quiet")
	logger.Debug("should not appear")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "should not appear"))
}
