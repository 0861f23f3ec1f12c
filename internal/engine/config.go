package engine

import (
	"os"
	"strconv"

	"k8s.io/klog/v2"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvBackend       = "BORN_BACKEND"
	EnvCheckNumerics = "BORN_CHECK_NUMERICS"
)

// Config holds the engine options.
type Config struct {
	// DefaultBackend is tried before the priority order when no backend was set explicitly.
	DefaultBackend string

	// CheckNumerics makes every floating point kernel output be read back and checked
	// for NaN. Slow: meant for debugging.
	CheckNumerics bool

	// Name shows up in log lines, next to the engine id.
	Name string
}

// DefaultConfig returns the zero configuration: pure priority order, no numeric checks.
func DefaultConfig() Config {
	return Config{}
}

// ConfigFromEnv returns DefaultConfig overridden by BORN_BACKEND and BORN_CHECK_NUMERICS.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.DefaultBackend = os.Getenv(EnvBackend)
	if v, found := os.LookupEnv(EnvCheckNumerics); found && v != "" {
		check, err := strconv.ParseBool(v)
		if err != nil {
			klog.Warningf("ignoring %s=%q: %v", EnvCheckNumerics, v, err)
		} else {
			cfg.CheckNumerics = check
		}
	}
	return cfg
}
