package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"INFO":    log.InfoLevel,
		"warn":    log.WarnLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
		"fatal":   log.FatalLevel,
		"":        log.WarnLevel,
		"bogus":   log.WarnLevel,
	}

	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(input))
		})
	}
}

func TestConfigure_FlagBeatsEnv(t *testing.T) {
	t.Setenv("CHATHISTORY_LOG_LEVEL", "error")
	t.Cleanup(func() { SetOutput(os.Stderr) })

	require.NoError(t, Configure("debug", ""))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	require.NoError(t, Configure("", ""))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())
}

func TestConfigure_LogFile(t *testing.T) {
	t.Cleanup(func() { _ = Close() })
	path := filepath.Join(t.TempDir(), "history.log")

	require.NoError(t, Configure("info", path))
	Info("hello from test", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
	assert.Contains(t, string(data), "key=value")
}

func TestClose_ReleasesLogFile(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	require.NoError(t, Configure("info", first))
	opened := logFile
	require.NotNil(t, opened)

	require.NoError(t, Configure("info", second), "reconfiguring closes the previous file")
	assert.Error(t, opened.Close(), "file was already closed")

	require.NoError(t, Close())
	assert.Nil(t, logFile)
	assert.Same(t, os.Stderr, output)
	require.NoError(t, Close(), "closing twice is a no-op")

	Info("after close")
	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "after close")
}

func TestConfigure_BadLogFile(t *testing.T) {
	err := Configure("info", filepath.Join(t.TempDir(), "missing", "dir", "history.log"))
	assert.Error(t, err)
}

func TestNewStyledLogger_UsesOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Logger.SetLevel(log.InfoLevel)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		Logger.SetLevel(log.WarnLevel)
	})

	component := NewStyledLogger("Store")
	assert.Equal(t, log.InfoLevel, component.GetLevel())

	component.Info("backup written", "key", "/work.backup.20250101_000000")
	assert.Contains(t, buf.String(), "Store")
	assert.Contains(t, buf.String(), "backup written")
}
