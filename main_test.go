package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/daniellavrushin/pqc-tracer/config"
	"github.com/daniellavrushin/pqc-tracer/log"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pqc-tracer.json")
	fileCfg := config.NewConfig()
	fileCfg.Probe.TimeoutSec = 99
	fileCfg.Probe.Method = "POST"
	fileCfg.Probe.Curves = []string{"P-256"}
	fileCfg.Probe.DenyCIDRs = []string{"10.0.0.0/8"}
	require.NoError(t, fileCfg.SaveToFile(path))

	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = config.NewConfig()

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cfg.BindFlags(cmd)
	cmd.PersistentFlags().StringVar(&verboseFlag, "verbose", "info", "")
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", path,
		"--timeout", "3",
		"--curves", "X25519MLKEM768,X25519",
	}))

	require.NoError(t, loadConfig(cmd))

	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, 3, cfg.Probe.TimeoutSec, "flag wins over file")
	assert.Equal(t, []string{"X25519MLKEM768", "X25519"}, cfg.Probe.Curves, "slice flag replaces, not appends")
	assert.Equal(t, "POST", cfg.Probe.Method, "file wins over default")
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Probe.DenyCIDRs)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigWithoutPath(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = config.NewConfig()

	cmd := &cobra.Command{Use: "test"}
	cfg.BindFlags(cmd)
	require.NoError(t, loadConfig(cmd))
	assert.Equal(t, config.DefaultConfig.Probe.TimeoutSec, cfg.Probe.TimeoutSec)
}

func TestLoadConfigMissingFile(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg = config.NewConfig()

	cmd := &cobra.Command{Use: "test"}
	cfg.BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "absent.json")}))
	assert.Error(t, loadConfig(cmd))

	_, err := os.Stat(cfg.ConfigPath)
	assert.True(t, os.IsNotExist(err))
}

func TestSetupOpensErrorFileFromConfig(t *testing.T) {
	dir := t.TempDir()
	errPath := filepath.Join(dir, "errors.log")
	path := filepath.Join(dir, "pqc-tracer.json")
	fileCfg := config.NewConfig()
	fileCfg.System.Logging.ErrorFile = errPath
	require.NoError(t, fileCfg.SaveToFile(path))

	saved := cfg
	t.Cleanup(func() {
		cfg = saved
		log.CloseErrorFile()
		log.Init(nil, log.LevelInfo, true)
	})
	cfg = config.NewConfig()

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	cfg.BindFlags(cmd)
	cmd.PersistentFlags().StringVar(&verboseFlag, "verbose", "info", "")
	require.NoError(t, cmd.ParseFlags([]string{"--config", path}))

	require.NoError(t, setup(cmd, nil))
	assert.Equal(t, errPath, cfg.System.Logging.ErrorFile)

	_ = log.Errorf("written to the error file")
	log.CloseErrorFile()

	data, err := os.ReadFile(errPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[ERROR] written to the error file")
}
