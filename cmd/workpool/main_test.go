package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workpool/internal/logger"
	"workpool/internal/worker"
)

func TestBuildWorkloadConfigDefault(t *testing.T) {
	cfg, err := buildWorkloadConfig(nil, options{})
	require.NoError(t, err)
	assert.Equal(t, "quick", cfg.Name)
}

func TestBuildWorkloadConfigPresetWithOverrides(t *testing.T) {
	cfg, err := buildWorkloadConfig(nil, options{
		presetName:  "faulty",
		workers:     3,
		jobs:        50,
		producers:   2,
		panicPolicy: "retire",
	})
	require.NoError(t, err)

	assert.Equal(t, "faulty", cfg.Name)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 50, cfg.Jobs)
	assert.Equal(t, 2, cfg.Producers)
	assert.Equal(t, worker.PanicRetire, cfg.PanicPolicy)
}

func TestBuildWorkloadConfigErrors(t *testing.T) {
	_, err := buildWorkloadConfig(nil, options{presetName: "nope"})
	assert.Error(t, err)

	_, err = buildWorkloadConfig(nil, options{panicPolicy: "ignore"})
	assert.Error(t, err)
}

func TestBuildWorkloadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pool:
  workers: 2
log:
  level: warn
workload:
  preset: serial
  jobs: 9
`), 0o644))

	fileConfig, err := loadConfig(path)
	require.NoError(t, err)

	cfg, err := buildWorkloadConfig(fileConfig, options{jobs: 11})
	require.NoError(t, err)
	assert.Equal(t, "serial", cfg.Name)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 11, cfg.Jobs, "flags override the file")
}

func TestLoadConfig(t *testing.T) {
	fileConfig, err := loadConfig("")
	assert.NoError(t, err)
	assert.Nil(t, fileConfig)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"pool":{"workers":-1}}`), 0o644))
	_, err = loadConfig(bad)
	assert.Error(t, err)
}

func TestBuildPoolConfig(t *testing.T) {
	cfg, err := buildPoolConfig(nil, options{workers: 5, panicPolicy: "retire"})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Size)
	assert.Equal(t, worker.PanicRetire, cfg.PanicPolicy)

	cfg, err = buildPoolConfig(nil, options{})
	require.NoError(t, err)
	assert.Positive(t, cfg.Size)
	assert.Equal(t, worker.PanicRecover, cfg.PanicPolicy)
}

func TestApplyLogLevel(t *testing.T) {
	defer logger.Default.SetLevel(logger.LevelInfo)

	require.NoError(t, applyLogLevel(nil, "debug"))
	assert.True(t, logger.Default.Enabled(logger.LevelDebug))

	require.NoError(t, applyLogLevel(nil, "error"))
	assert.False(t, logger.Default.Enabled(logger.LevelWarn))

	assert.Error(t, applyLogLevel(nil, "verbose"))
}

func TestProfileOption(t *testing.T) {
	for _, name := range []string{"cpu", "mem", "block", "mutex"} {
		opt, err := profileOption(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, opt, name)
	}

	_, err := profileOption("trace")
	assert.Error(t, err)
}
