package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("WritesInfoToFileOnly", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "test.log")
		logger, closeFn, err := New(Config{File: logFile})
		require.NoError(t, err)

		logger.Info("retrying fetch")
		closeFn()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "retrying fetch")
	})

	t.Run("DevelopmentEncoder", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "dev.log")
		logger, closeFn, err := New(Config{Development: true, File: logFile})
		require.NoError(t, err)
		logger.Info("dev message")
		closeFn()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		// Console encoder output is not JSON.
		assert.NotContains(t, string(data), `"msg"`)
		assert.Contains(t, string(data), "dev message")
	})

	t.Run("DefaultFile", func(t *testing.T) {
		dir := t.TempDir()
		cwd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() {
			require.NoError(t, os.Chdir(cwd))
		})

		_, closeFn, err := New(Config{})
		require.NoError(t, err)
		closeFn()
		_, err = os.Stat(filepath.Join(dir, "wikichron.log"))
		assert.NoError(t, err)
	})
}
