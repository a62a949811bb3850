package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songquanpeng/llm-gateway/common/config"
)

func TestSetupLoggerCreatesLogFile(t *testing.T) {
	ResetSetupLogOnceForTests()
	oldDir, oldOne := LogDir, config.OnlyOneLogFile
	oldWriter, oldErrWriter := gin.DefaultWriter, gin.DefaultErrorWriter
	t.Cleanup(func() {
		LogDir, config.OnlyOneLogFile = oldDir, oldOne
		gin.DefaultWriter, gin.DefaultErrorWriter = oldWriter, oldErrWriter
		ResetSetupLogOnceForTests()
	})

	LogDir = t.TempDir()
	config.OnlyOneLogFile = true
	SetupLogger()

	_, err := os.Stat(filepath.Join(LogDir, "llm-gateway.log"))
	assert.NoError(t, err)
}

func TestPruneExpiredLogs(t *testing.T) {
	dir := t.TempDir()

	oldLog := filepath.Join(dir, "llm-gateway-20200101.log")
	require.NoError(t, os.WriteFile(oldLog, []byte("old"), 0644))
	stale := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(oldLog, stale, stale))

	freshLog := filepath.Join(dir, "llm-gateway-today.log")
	require.NoError(t, os.WriteFile(freshLog, []byte("fresh"), 0644))

	notALog := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notALog, []byte("keep"), 0644))
	require.NoError(t, os.Chtimes(notALog, stale, stale))

	require.NoError(t, pruneExpiredLogs(dir, 7))

	_, err := os.Stat(oldLog)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshLog)
	assert.NoError(t, err)
	_, err = os.Stat(notALog)
	assert.NoError(t, err)
}

func TestPruneExpiredLogsMissingDir(t *testing.T) {
	assert.NoError(t, pruneExpiredLogs(filepath.Join(t.TempDir(), "absent"), 7))
}
