package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileLock is a short-wait advisory lock backed by an O_CREATE|O_EXCL
// lock file. It guards the event queue's append-and-rotate sequence
// across processes. Holders that die are recovered via stale takeover:
// a lock file older than the stale threshold is removed by the next
// acquirer.
type FileLock struct {
	path string
	held bool
}

// Lock timing. Acquire gives up quickly rather than queueing work
// behind a wedged peer; the pipeline treats a missed lock as "skip
// this tick".
const (
	lockRetryInterval = 25 * time.Millisecond
	lockStaleAfter    = 30 * time.Second
)

// NewFileLock returns a lock on path. The lock is not acquired.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Acquire tries to take the lock, retrying until timeout. Returns an
// error if the lock could not be taken in time.
func (l *FileLock) Acquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
			f.Close()
			l.held = true
			return nil
		}
		if !os.IsExist(err) {
			return err
		}
		if info, serr := os.Stat(l.path); serr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			// Stale holder; take over.
			os.Remove(l.path)
			continue
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("lock %s: busy after %v", l.path, timeout)
		}
		time.Sleep(lockRetryInterval)
	}
}

// Release drops the lock. Safe to call unconditionally (deferred), even
// if Acquire failed; release of an unheld lock is a no-op.
func (l *FileLock) Release() {
	if !l.held {
		return
	}
	l.held = false
	os.Remove(l.path)
}
