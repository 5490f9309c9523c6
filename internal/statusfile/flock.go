package statusfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OSFlock is the production FileLocker, using flock(2) on a sidecar
// ".lock" file so the locked path itself can be freely rewritten.
type OSFlock struct{}

// Lock acquires an exclusive advisory lock on path+".lock" and returns a
// function to release it.
func (OSFlock) Lock(path string) (func(), error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}

// NoLock is a no-op FileLocker for tests running against
// afero.NewMemMapFs(), which has no real file descriptors to flock.
type NoLock struct{}

// Lock returns a no-op unlock function.
func (NoLock) Lock(string) (func(), error) {
	return func() {}, nil
}
