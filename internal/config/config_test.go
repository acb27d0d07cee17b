package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSimConfig(t *testing.T) {
	cfg := DefaultSimConfig()

	assert.Equal(t, 0.15, cfg.Sensitivity)
	assert.Equal(t, 25.0, cfg.FPS)
	assert.Equal(t, 1e-3, cfg.Epsilon)
	assert.Equal(t, int64(0), cfg.StartTime)
	assert.Equal(t, "development", cfg.GetEnvironment())
	assert.NoError(t, cfg.Validate())
}

func TestLoadSimConfig_EnvDefaultsMatchBuiltins(t *testing.T) {
	cfg, err := LoadSimConfig("")
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultSimConfig(), cfg); diff != "" {
		t.Errorf("env defaults differ from DefaultSimConfig (-want +got):\n%s", diff)
	}
}

func TestLoadSimConfig_EnvOverride(t *testing.T) {
	t.Setenv("DVSIM_FPS", "30")
	t.Setenv("DVSIM_C", "0.2")
	t.Setenv("DVSIM_START_TIME", "1000")

	cfg, err := LoadSimConfig("")
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.FPS)
	assert.Equal(t, 0.2, cfg.Sensitivity)
	assert.Equal(t, uint64(1000), cfg.GetStartTime())
}

func TestLoadSimConfig_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dvsim.json")
	testJSON := `{
  "sensitivity": 0.3,
  "fps": 60,
  "start_time": 500,
  "format": "csv"
}`
	require.NoError(t, os.WriteFile(configPath, []byte(testJSON), 0644))

	cfg, err := LoadSimConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Sensitivity)
	assert.Equal(t, 60.0, cfg.FPS)
	assert.Equal(t, int64(500), cfg.StartTime)
	assert.Equal(t, "csv", cfg.Format)
	// Omitted fields take their defaults.
	assert.Equal(t, 1e-3, cfg.Epsilon)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoadSimConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dvsim.yaml")
	testYAML := "environment: production\nsensitivity: 0.25\nthresholds: c.csv\n"
	require.NoError(t, os.WriteFile(configPath, []byte(testYAML), 0644))

	cfg, err := LoadSimConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 0.25, cfg.Sensitivity)
	assert.Equal(t, "c.csv", cfg.ThresholdsPath)
	assert.Equal(t, 25.0, cfg.FPS)
}

func TestLoadSimConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSimConfig(filepath.Join(tmpDir, "nope.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to stat config file")
	})

	t.Run("malformed json", func(t *testing.T) {
		p := filepath.Join(tmpDir, "bad.json")
		require.NoError(t, os.WriteFile(p, []byte("{not json"), 0644))
		_, err := LoadSimConfig(p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not read config")
	})

	t.Run("invalid values", func(t *testing.T) {
		p := filepath.Join(tmpDir, "neg.json")
		require.NoError(t, os.WriteFile(p, []byte(`{"fps": -1}`), 0644))
		_, err := LoadSimConfig(p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("too large", func(t *testing.T) {
		p := filepath.Join(tmpDir, "big.json")
		big := `{"format": "` + strings.Repeat("x", 1024*1024) + `"}`
		require.NoError(t, os.WriteFile(p, []byte(big), 0644))
		_, err := LoadSimConfig(p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})
}

func TestReadSimConfig_DefersValidation(t *testing.T) {
	t.Setenv("DVSIM_FPS", "0")

	cfg, err := ReadSimConfig("")
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.FPS)
	assert.Error(t, cfg.Validate())

	_, err = LoadSimConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SimConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*SimConfig) {}},
		{name: "zero sensitivity", mutate: func(c *SimConfig) { c.Sensitivity = 0 }, wantErr: "sensitivity"},
		{name: "negative fps", mutate: func(c *SimConfig) { c.FPS = -25 }, wantErr: "fps"},
		{name: "negative start", mutate: func(c *SimConfig) { c.StartTime = -1 }, wantErr: "start_time"},
		{name: "zero epsilon", mutate: func(c *SimConfig) { c.Epsilon = 0 }, wantErr: "epsilon"},
		{name: "bad format", mutate: func(c *SimConfig) { c.Format = "h5" }, wantErr: "unknown format"},
		{name: "format case insensitive", mutate: func(c *SimConfig) { c.Format = "SQLite" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetStartTime_ClampsNegative(t *testing.T) {
	cfg := &SimConfig{StartTime: -5}
	assert.Equal(t, uint64(0), cfg.GetStartTime())
}
