package main

import "os"

// defaultConfigPath is where a project keeps its profile configuration.
const defaultConfigPath = ".addonlens/config.yaml"

// resolveConfigPath returns the project config path to use, applying the
// fallback chain:
//  1. Explicit --config flag value
//  2. ADDONLENS_CONFIG environment variable
//  3. Default: .addonlens/config.yaml
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("ADDONLENS_CONFIG"); env != "" {
		return env
	}
	return defaultConfigPath
}
