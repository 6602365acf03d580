package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FADA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Pipeline.DownloadConcurrency)
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 10, cfg.Source.MaxPages)
	assert.False(t, cfg.Sheets.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FADA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("FADA_SERVER_PORT", "9090")
	t.Setenv("FADA_PIPELINE_DOWNLOAD_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Pipeline.DownloadConcurrency)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7070\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(file, content, 0o644))
	t.Setenv("FADA_CONFIG_FILE", file)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("FADA_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("FADA_SERVER_PORT", "70000")

	_, err := Load()
	assert.Error(t, err)
}

func TestPathsResolution(t *testing.T) {
	p, err := NewPaths(PathsConfig{
		DataDir:   "data",
		PDFDir:    "data/pdfs",
		OutputDir: "data/output",
		CacheFile: "data/fetch_cache.json",
		LogsDir:   "logs",
	})
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(p.DataDir))
	assert.True(t, filepath.IsAbs(p.CacheFile))
	assert.Contains(t, p.MasterWorkbook(), "Master_FADA_Data.xlsx")
	assert.Contains(t, p.SessionWorkbook("abc"), "FADA_Data_abc.xlsx")
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	p, err := NewPaths(PathsConfig{
		DataDir:   filepath.Join(base, "data"),
		PDFDir:    filepath.Join(base, "data", "pdfs"),
		OutputDir: filepath.Join(base, "data", "output"),
		CacheFile: filepath.Join(base, "data", "fetch_cache.json"),
		LogsDir:   filepath.Join(base, "logs"),
	})
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirectories())

	for _, dir := range []string{p.DataDir, p.PDFDir, p.OutputDir, p.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
