package config

import (
	"os"
	"path/filepath"
)

const (
	projectDir = ".pv"
	fileName   = "config.yaml"
)

// Discover returns the config file to use. The order is: explicit (the
// --config flag), $PV_CONFIG, the nearest .pv/config.yaml walking up from
// the working directory, then the user config dir. The second result is
// false when no candidate exists on disk; the returned path is then where
// `pv config init` would write.
func Discover(explicit string) (string, bool) {
	if explicit != "" {
		return explicit, fileExists(explicit)
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, fileExists(p)
	}
	if dir, err := os.Getwd(); err == nil {
		if p, ok := findProjectConfig(dir); ok {
			return p, true
		}
	}
	p := UserConfigPath()
	return p, fileExists(p)
}

// UserConfigPath is $XDG_CONFIG_HOME/pv/config.yaml.
func UserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "pv", fileName)
}

// findProjectConfig walks up from dir looking for .pv/config.yaml.
func findProjectConfig(dir string) (string, bool) {
	home, _ := os.UserHomeDir()

	for {
		candidate := filepath.Join(dir, projectDir, fileName)
		if fileExists(candidate) {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		// Don't go above home directory
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
