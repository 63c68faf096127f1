package logging

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "import.log")

	closer, logger, err := FileLogger(logrus.DebugLevel, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	require.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.Info("hello")
	require.FileExists(t, path)
}

func TestFileLogger_EmptyPathWritesStdout(t *testing.T) {
	closer, logger, err := FileLogger(logrus.InfoLevel, "")
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NoError(t, closer.Close())
}

func TestNop_DiscardsOutput(t *testing.T) {
	entry := Nop()
	require.Equal(t, logrus.PanicLevel, entry.Logger.GetLevel())
}
