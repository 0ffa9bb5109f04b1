package lexindex

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	lcierrors "github.com/standardbeagle/lci/internal/errors"
)

// DefaultStuckLockTimeout is the age past which a held write lock is
// assumed abandoned by a crashed process rather than actively held
// (§4.4, default 15 minutes).
const DefaultStuckLockTimeout = 15 * time.Minute

// acquireWriteLock tries to take the exclusive write lock for a
// workspace's index directory. If the lock is held but its file is older
// than timeout, it is treated as stuck: the lock is forcibly broken and
// the index directory is cleared (the "nuclear option") before retrying
// once. A lock actively held by a live process surfaces as IndexLocked.
func acquireWriteLock(dir string, timeout time.Duration) (*flock.Flock, error) {
	if timeout <= 0 {
		timeout = DefaultStuckLockTimeout
	}
	lockPath := filepath.Join(dir, "write.lock")
	fl := flock.New(lockPath)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, lcierrors.New(lcierrors.Fatal, "lexindex_acquire_lock", err).WithFile(lockPath)
	}
	if ok {
		return fl, nil
	}

	info, statErr := os.Stat(lockPath)
	if statErr != nil || time.Since(info.ModTime()) < timeout {
		return nil, lcierrors.New(lcierrors.IndexLocked, "lexindex_acquire_lock", nil).
			WithFile(lockPath).
			WithSuggestion("another process holds the write lock for this workspace")
	}

	// Stuck lock: the holder is presumed dead. Clear the index directory
	// (best effort) and start fresh rather than trust a half-written
	// segment set left behind by a crash.
	if err := clearIndexDir(dir); err != nil {
		return nil, lcierrors.New(lcierrors.StuckLock, "lexindex_acquire_lock", err).
			WithFile(dir).
			WithSuggestion("stuck lock detected but recovery failed, manual cleanup required")
	}

	fl2 := flock.New(lockPath)
	ok, err = fl2.TryLock()
	if err != nil || !ok {
		return nil, lcierrors.New(lcierrors.StuckLock, "lexindex_acquire_lock", err).WithFile(lockPath)
	}
	return fl2, nil
}

// clearIndexDir removes dir and everything under it, the lock file
// included, then recreates dir empty. Used both by stuck-lock recovery and by the
// explicit clear() operation.
func clearIndexDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
