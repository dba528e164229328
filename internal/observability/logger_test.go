// File: internal/observability/logger_test.go
package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/ventriloquist/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestInitializeAndGetLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := config.NewDefaultConfig().Logger()
	cfg.Level = "debug"
	cfg.Format = "json"
	cfg.LogFile = "" // no file core in tests

	Initialize(cfg, zapcore.AddSync(zaptest.NewTestingWriter(t)))

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel), "debug level should be enabled")

	// A second Initialize must be a no-op (sync.Once).
	other := cfg
	other.Level = "error"
	Initialize(other, zapcore.AddSync(zaptest.NewTestingWriter(t)))
	assert.Same(t, logger, GetLogger(), "re-initialization should not replace the logger")
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// Without initialization GetLogger must still hand back a usable logger.
	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Debug("fallback logger is usable")
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	cfg := config.NewDefaultConfig().Logger()
	cfg.Level = "not-a-level"
	Initialize(cfg, zapcore.AddSync(zaptest.NewTestingWriter(t)))

	logger := GetLogger()
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
