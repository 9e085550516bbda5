package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/geopoly/geometry"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEOPOLY_HTTP_ADDR",
		"GEOPOLY_METRICS_ADDR",
		"GEOPOLY_REGIONS",
		"GEOPOLY_WORKERS",
		"GEOPOLY_BATCH_SIZE",
		"GEOPOLY_EARTH_MODEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	require.Equal(t, DefaultMetricsAddr, cfg.MetricsAddr)
	require.Empty(t, cfg.RegionsPath)
	require.Equal(t, runtime.NumCPU(), cfg.Workers)
	require.Equal(t, DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, geometry.WGS84, cfg.Earth)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOPOLY_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("GEOPOLY_REGIONS", "regions.yaml")
	t.Setenv("GEOPOLY_WORKERS", "3")
	t.Setenv("GEOPOLY_BATCH_SIZE", "250")
	t.Setenv("GEOPOLY_EARTH_MODEL", "Sphere")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.HTTPAddr)
	require.Equal(t, "regions.yaml", cfg.RegionsPath)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, 250, cfg.BatchSize)
	require.Equal(t, geometry.Sphere, cfg.Earth)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"GEOPOLY_WORKERS":     "zero",
		"GEOPOLY_BATCH_SIZE":  "-5",
		"GEOPOLY_EARTH_MODEL": "flat",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := FromEnv()
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GEOPOLY_BATCH_SIZE=42\nGEOPOLY_HTTP_ADDR=:1234\n"), 0o600))
	t.Setenv("GEOPOLY_HTTP_ADDR", ":9999")
	t.Cleanup(func() { os.Unsetenv("GEOPOLY_BATCH_SIZE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.BatchSize)
	require.Equal(t, ":9999", cfg.HTTPAddr)
}

func TestLoadIgnoresMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
