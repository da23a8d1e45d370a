// Package watch re-runs a build whenever a query file changes on disk.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/daveroberts0321/smithyql/internal/ctxlog"
	"github.com/fsnotify/fsnotify"
)

// settle is how long the watcher waits after the last event before building.
// Editors often write a file in several steps.
const settle = 100 * time.Millisecond

// Watch watches dirs and their subdirectories and calls build after files
// with extension ext are written or created. Directories that do not exist
// are skipped. Build failures are logged, not returned. Watch returns nil
// once ctx is canceled.
func Watch(ctx context.Context, dirs []string, ext string, build func(context.Context) error) error {
	logger := ctxlog.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := addTree(watcher, dir); err != nil {
			return err
		}
	}
	logger.Info("Watching for changes", "dirs", watcher.WatchList(), "extension", ext)

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	var changed []string

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						logger.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !strings.HasSuffix(event.Name, ext) || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("File changed", "path", event.Name, "op", event.Op.String())
			changed = append(changed, event.Name)
			timer.Reset(settle)
		case <-timer.C:
			logger.Info("Rebuilding", "changed", changed)
			changed = changed[:0]
			if err := build(ctx); err != nil {
				logger.Error("Build failed", "error", err)
			} else {
				logger.Info("Rebuild complete")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "error", err)
		}
	}
}

// addTree adds dir and every directory below it. fsnotify does not watch
// recursively.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
