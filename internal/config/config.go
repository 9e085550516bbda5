// Package config resolves runtime settings for the geopoly binaries from the
// environment, optionally seeded by a .env file.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/signalsfoundry/geopoly/geometry"
)

// Default values used when the corresponding variable is unset.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = ":9090"
	DefaultBatchSize   = 1000
)

// Config holds settings shared by cmd/region-server and cmd/polycheck.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	RegionsPath string
	Workers     int
	BatchSize   int
	Earth       geometry.Ellipsoid
}

// Load reads the given dotenv files (".env" when none are named), ignoring
// missing ones, and then resolves Config from the process environment.
// Variables already present in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	return FromEnv()
}

// FromEnv resolves Config from GEOPOLY_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:    envOr("GEOPOLY_HTTP_ADDR", DefaultHTTPAddr),
		MetricsAddr: envOr("GEOPOLY_METRICS_ADDR", DefaultMetricsAddr),
		RegionsPath: os.Getenv("GEOPOLY_REGIONS"),
		Workers:     runtime.NumCPU(),
		BatchSize:   DefaultBatchSize,
		Earth:       geometry.Default,
	}

	var err error
	if cfg.Workers, err = positiveInt("GEOPOLY_WORKERS", cfg.Workers); err != nil {
		return Config{}, err
	}
	if cfg.BatchSize, err = positiveInt("GEOPOLY_BATCH_SIZE", cfg.BatchSize); err != nil {
		return Config{}, err
	}
	if cfg.Earth, err = geometry.EllipsoidByName(os.Getenv("GEOPOLY_EARTH_MODEL")); err != nil {
		return Config{}, fmt.Errorf("GEOPOLY_EARTH_MODEL: %w", err)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, v)
	}
	return v, nil
}
