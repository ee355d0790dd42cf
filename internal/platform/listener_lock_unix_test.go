//go:build unix && !windows

package platform

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireListenerLock_ContentionAndRelease(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	appID := "meshhttp-test-" + strconv.Itoa(os.Getpid())

	lock1, err := AcquireListenerLock(appID, "http://radio.lan")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}

	lock2, err := AcquireListenerLock(appID, "http://radio.lan")
	if !errors.Is(err, ErrListenerActive) {
		t.Fatalf("expected %v, got %v", ErrListenerActive, err)
	}
	if lock2 != nil {
		t.Fatalf("expected second lock to be nil, got %#v", lock2)
	}

	other, err := AcquireListenerLock(appID, "http://other.lan")
	if err != nil {
		t.Fatalf("lock for a different device must not contend: %v", err)
	}
	if err := other.Release(); err != nil {
		t.Fatalf("release other lock: %v", err)
	}

	if err := lock1.Release(); err != nil {
		t.Fatalf("release first lock: %v", err)
	}
	if err := lock1.Release(); err != nil {
		t.Fatalf("second release must be a no-op: %v", err)
	}

	lock3, err := AcquireListenerLock(appID, "http://radio.lan")
	if err != nil {
		t.Fatalf("acquire lock after release: %v", err)
	}
	if err := lock3.Release(); err != nil {
		t.Fatalf("release third lock: %v", err)
	}
}

func TestUnixListenerLockPathPrefersXDGRuntimeDir(t *testing.T) {
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	path, err := unixListenerLockPath("meshhttp", "radio.lan")
	if err != nil {
		t.Fatalf("resolve lock path: %v", err)
	}

	want := filepath.Join(runtimeDir, "meshhttp", "radio.lan.lock")
	if path != want {
		t.Fatalf("expected %q, got %q", want, path)
	}
}

func TestUnixListenerLockPathFallsBackToTemp(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	path, err := unixListenerLockPath("meshhttp", "radio.lan")
	if err != nil {
		t.Fatalf("resolve lock path: %v", err)
	}

	wantFragment := "meshhttp-" + strconv.Itoa(os.Getuid())
	if !strings.Contains(path, wantFragment) {
		t.Fatalf("expected path to contain %q, got %q", wantFragment, path)
	}
}
