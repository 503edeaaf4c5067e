package prefetch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// Watch runs the worker until ctx is cancelled, triggering a queue
// pass whenever the queue file changes, with a coarse ticker as a
// fallback for missed events. Returns nil on clean cancellation.
func (w *Worker) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors and atomic renames replace the file
	// inode, which a file-level watch would silently lose.
	if err := watcher.Add(filepath.Dir(w.jobsPath)); err != nil {
		return err
	}

	tick := w.cfg.Tick()
	if tick <= 0 {
		tick = 30 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(ev.Name) != filepath.Base(w.jobsPath) {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				w.ProcessQueue(0, 0)
			case <-ticker.C:
				w.ProcessQueue(0, 0)
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case werr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				w.log.Debugw("watcher error", "err", werr)
			}
		}
	})

	return g.Wait()
}
