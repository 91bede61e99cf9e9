// Package config reads gpuops settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Backends.
const (
	BackendWebGPU   = "webgpu"
	BackendRecorder = "recorder"
)

// Adapter power preferences.
const (
	PowerHigh = "high"
	PowerLow  = "low"
)

// Config holds the runtime configuration of the CLI and executor.
type Config struct {
	Backend  string // "webgpu" or "recorder"
	MaxBatch int    // Compute passes per encoder on webgpu, 0 = no limit
	Debug    bool   // Log operator outputs after each pass
	Power    string // "high" or "low"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Backend:  envStr("GPUOPS_BACKEND", BackendWebGPU),
		MaxBatch: envInt("GPUOPS_MAX_BATCH", 0),
		Debug:    envBool("GPUOPS_DEBUG", false),
		Power:    envStr("GPUOPS_POWER", PowerHigh),
	}
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendWebGPU, BackendRecorder:
	default:
		return fmt.Errorf("config: unknown backend %q (want %s or %s)", c.Backend, BackendWebGPU, BackendRecorder)
	}
	switch c.Power {
	case PowerHigh, PowerLow:
	default:
		return fmt.Errorf("config: unknown power preference %q (want %s or %s)", c.Power, PowerHigh, PowerLow)
	}
	if c.MaxBatch < 0 {
		return fmt.Errorf("config: max batch must be non-negative, got %d", c.MaxBatch)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
