package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatflowers/autoinspect/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	cfg := &config.Config{Env: config.EnvProd, Log: config.LogConfig{File: file, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}}

	log, err := New(cfg)
	require.NoError(t, err)
	log.Infow("subscription_activated", "subscription_id", "sub-1")
	_ = log.Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"subscription_id":"sub-1"`))
}
