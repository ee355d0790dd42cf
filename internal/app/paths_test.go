package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_ResolvesConfigDirectory(t *testing.T) {
	configHome := filepath.Join(t.TempDir(), "cfg")
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("HOME", t.TempDir())

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}

	if paths.RootDir != filepath.Join(configHome, Name) {
		t.Fatalf("unexpected root dir: %q", paths.RootDir)
	}
	if paths.ConfigFile != filepath.Join(configHome, Name, ConfigFilename) {
		t.Fatalf("unexpected config file: %q", paths.ConfigFile)
	}
	if paths.LogFile != filepath.Join(configHome, Name, LogFilename) {
		t.Fatalf("unexpected log file: %q", paths.LogFile)
	}
	if _, err := os.Stat(paths.RootDir); err != nil {
		t.Fatalf("expected root directory to exist: %v", err)
	}
}

func TestPathsWithConfigFile(t *testing.T) {
	base := PathsAt("/home/user/.config/meshhttp")

	if got := base.WithConfigFile(""); got != base {
		t.Fatalf("empty override must keep paths, got %+v", got)
	}

	got := base.WithConfigFile("/etc/meshhttp/device.json")
	if got.ConfigFile != "/etc/meshhttp/device.json" {
		t.Fatalf("unexpected config file: %q", got.ConfigFile)
	}
	if got.LogFile != filepath.Join("/etc/meshhttp", LogFilename) {
		t.Fatalf("unexpected log file: %q", got.LogFile)
	}
}
