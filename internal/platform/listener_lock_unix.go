//go:build unix && !windows

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

type unixListenerLock struct {
	file *os.File
}

func acquireListenerLock(appID, target string) (ListenerLock, error) {
	lockPath, err := unixListenerLockPath(appID, target)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- lockPath is built from process-owned runtime/temp directories.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open listener lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if isUnixLockContention(err) {
			return nil, ErrListenerActive
		}

		return nil, fmt.Errorf("acquire listener file lock: %w", err)
	}

	return &unixListenerLock{file: file}, nil
}

func (l *unixListenerLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	fd := int(l.file.Fd())
	unlockErr := syscall.Flock(fd, syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil && !errors.Is(unlockErr, syscall.EBADF) {
		return fmt.Errorf("unlock listener file lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close listener lock file: %w", closeErr)
	}

	return nil
}

// unixListenerLockPath prefers XDG_RUNTIME_DIR and falls back to a per-user
// directory under the system temp dir.
func unixListenerLockPath(appID, target string) (string, error) {
	lockDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if lockDir != "" {
		lockDir = filepath.Join(lockDir, appID)
	} else {
		lockDir = filepath.Join(os.TempDir(), appID+"-"+strconv.Itoa(os.Getuid()))
	}

	if err := os.MkdirAll(lockDir, 0o700); err != nil {
		return "", fmt.Errorf("create listener lock dir: %w", err)
	}

	return filepath.Join(lockDir, target+".lock"), nil
}

func isUnixLockContention(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}
