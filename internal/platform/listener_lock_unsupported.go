//go:build !unix && !windows

package platform

import (
	"fmt"
	"runtime"
)

func acquireListenerLock(_, _ string) (ListenerLock, error) {
	return nil, fmt.Errorf("%w on %s", ErrListenerLockUnsupported, runtime.GOOS)
}
