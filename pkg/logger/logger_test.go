package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestDefaultLoggerIsNop(t *testing.T) {
	// Packages log through Log before Init runs; the default must accept
	// calls and discard everything.
	require.NotNil(t, Log)
	Log.Info("dropped")
	assert.False(t, Log.Core().Enabled(zapcore.ErrorLevel))
}

func TestInit(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop() })

	tests := []struct {
		name       string
		level      string
		enabled    zapcore.Level
		muted      zapcore.Level
		checkMuted bool
	}{
		{name: "debug enables everything", level: "debug", enabled: zapcore.DebugLevel},
		{name: "info mutes debug", level: "info", enabled: zapcore.InfoLevel, muted: zapcore.DebugLevel, checkMuted: true},
		{name: "warn mutes info", level: "warn", enabled: zapcore.WarnLevel, muted: zapcore.InfoLevel, checkMuted: true},
		{name: "error mutes warn", level: "error", enabled: zapcore.ErrorLevel, muted: zapcore.WarnLevel, checkMuted: true},
		{name: "unknown level falls back to info", level: "verbose", enabled: zapcore.InfoLevel, muted: zapcore.DebugLevel, checkMuted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Init(tt.level, ""))
			require.NotNil(t, Log)

			assert.True(t, Log.Core().Enabled(tt.enabled))
			if tt.checkMuted {
				assert.False(t, Log.Core().Enabled(tt.muted))
			}
		})
	}
}

func TestInitWritesToFile(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop() })

	logFile := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Init("info", logFile))

	Log.Info("transcription worker ready")
	// Sync may fail for the stdout sink on some systems; the file is what
	// matters here.
	_ = Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "transcription worker ready")
}

func TestSync(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop() })

	Log = zap.NewNop()
	assert.NoError(t, Sync())

	Log = nil
	assert.NoError(t, Sync())
}
