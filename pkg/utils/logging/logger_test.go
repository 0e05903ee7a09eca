package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, filepath.Join("logs", "selection_prod_2026-03-01_09-05-07.log"), logFilePath("logs", "prod", now))
}

func TestInitLogger_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(LogsDirEnv, dir)

	logger, err := InitLogger("test", false)
	require.NoError(t, err)
	logger.Debug("debug reaches the file")
	_ = logger.Sync()

	files, err := filepath.Glob(filepath.Join(dir, "selection_test_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(data, &line))
	assert.Equal(t, "debug reaches the file", line["msg"])
	assert.Equal(t, "test", line["env"])
	assert.Contains(t, line, "timestamp")
}
