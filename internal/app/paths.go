package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths stores resolved runtime file locations for user config and logs.
type Paths struct {
	RootDir    string
	ConfigFile string
	LogFile    string
}

func ResolvePaths() (Paths, error) {
	cfgRoot, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve config dir: %w", err)
	}

	root := filepath.Join(cfgRoot, Name)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	return PathsAt(root), nil
}

// PathsAt lays out runtime files under an explicit root directory.
func PathsAt(root string) Paths {
	return Paths{
		RootDir:    root,
		ConfigFile: filepath.Join(root, ConfigFilename),
		LogFile:    filepath.Join(root, LogFilename),
	}
}

// WithConfigFile points the config at path and keeps the log file next to it.
func (p Paths) WithConfigFile(path string) Paths {
	if path == "" {
		return p
	}
	out := PathsAt(filepath.Dir(path))
	out.ConfigFile = path

	return out
}
