package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime stores the runtime key sets for global use.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// Runtime returns the stored runtime config (may be nil before startup).
func Runtime() *RuntimeConfig {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	return runtimeCfg
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &c, nil
}

// ResolveConfigPath picks the config file path: an explicit --config flag
// wins, then the CHATMUX_CONFIG env var, then the default ./chatmux.yaml.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if v := os.Getenv("CHATMUX_CONFIG"); v != "" {
		return v
	}
	return "chatmux.yaml"
}
