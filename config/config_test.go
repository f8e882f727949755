package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "debug"
modules = "inline_mod,scan_mod"

[cache]
enabled = true

[scan]
workers = 3

[telemetry]
otlp_endpoint = "localhost:4318"
insecure = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "inline_mod,scan_mod", cfg.Log.Modules)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, Default().Cache.Path, cfg.Cache.Path, "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Scan.Workers)
	assert.Equal(t, "localhost:4318", cfg.Telemetry.OTLPEndpoint)
	assert.True(t, cfg.Telemetry.Insecure)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"unknown key":      "[scan]\nthreads = 2\n",
		"bad level":        "[log]\nlevel = \"loud\"\n",
		"negative workers": "[scan]\nworkers = -1\n",
		"syntax":           "[log\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Log.Modules = "all"
	cfg.Scan.Workers = 8
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
