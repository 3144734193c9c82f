package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_Levels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, Initialize("debug").GetLevel())
	assert.Equal(t, logrus.WarnLevel, Initialize("WARN").GetLevel())
	// Unknown levels fall back to info.
	assert.Equal(t, logrus.InfoLevel, Initialize("verbose").GetLevel())
}

func TestSetupFileLogging(t *testing.T) {
	logger := Initialize("info")

	// Empty path is a no-op.
	require.NoError(t, SetupFileLogging(logger, ""))

	path := filepath.Join(t.TempDir(), "logs", "bridge.log")
	require.NoError(t, SetupFileLogging(logger, path))

	logger.Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNewComponentLogger(t *testing.T) {
	entry := NewComponentLogger(Initialize("info"), "bridge")
	assert.Equal(t, "bridge", entry.Data["component"])
}
