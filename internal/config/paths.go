package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the configuration file name looked up by ResolveConfigPath.
const FileName = "recall.yaml"

// ResolveConfigPath returns explicit when set, otherwise the first existing
// file in: $XDG_CONFIG_HOME/recall/recall.yaml, ~/.config/recall/recall.yaml,
// ./recall.yaml.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	candidates := SearchPaths()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("config: no configuration file found (searched: %v)", candidates)
}

// SearchPaths lists the candidate config locations in lookup order.
func SearchPaths() []string {
	var candidates []string
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "recall", FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "recall", FileName))
	}
	return append(candidates, FileName)
}

// DefaultDataDir returns $XDG_DATA_HOME/recall if set, otherwise
// ~/.local/share/recall.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "recall")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "recall")
}
