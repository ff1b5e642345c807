// Package feed locates the JSON signal files the upstream model drops into a
// directory, and watches that directory for new ones.
package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Latest returns the path of the most recently modified regular file matching
// pattern inside dir. It returns an empty path, without error, when nothing
// matches; a missing directory is an error.
func Latest(logger *zap.Logger, dir, pattern string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("signals directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("bad feed pattern %q: %w", pattern, err)
	}

	var latest string
	var latestMod time.Time
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest, latestMod = m, info.ModTime()
		}
	}

	if latest == "" {
		logger.Warn("No signal files found",
			zap.String("dir", dir),
			zap.String("pattern", pattern))
		return "", nil
	}

	logger.Info("Found latest signal file",
		zap.String("file", filepath.Base(latest)),
		zap.Time("modified", latestMod))
	return latest, nil
}

// Watcher delivers signal files as they land in the feed directory. Writes to
// one file are debounced so a file still being written is reported once,
// after it settles.
type Watcher struct {
	logger   *zap.Logger
	dir      string
	pattern  string
	debounce time.Duration
}

// NewWatcher creates a Watcher over dir for files matching pattern.
func NewWatcher(logger *zap.Logger, dir, pattern string) *Watcher {
	return &Watcher{
		logger:   logger,
		dir:      dir,
		pattern:  pattern,
		debounce: time.Second,
	}
}

// Watch starts watching and returns a channel of settled file paths. The
// channel closes when ctx is cancelled or the underlying watcher shuts down.
func (w *Watcher) Watch(ctx context.Context) (<-chan string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create feed watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("could not watch %s: %w", w.dir, err)
	}

	w.logger.Info("Watching feed directory",
		zap.String("dir", w.dir),
		zap.String("pattern", w.pattern))

	out := make(chan string)
	go w.run(ctx, fw, out)
	return out, nil
}

// run is the watch loop. Matching create/write events reset the per-path
// deadline; a path is emitted once its deadline passes with no new writes.
func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	defer close(out)
	defer fw.Close()

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			matched, err := filepath.Match(w.pattern, filepath.Base(event.Name))
			if err != nil || !matched {
				continue
			}
			pending[event.Name] = time.Now().Add(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Feed watcher error", zap.Error(err))

		case now := <-ticker.C:
			for path, deadline := range pending {
				if now.Before(deadline) {
					continue
				}
				delete(pending, path)
				w.logger.Info("New signal file detected", zap.String("file", filepath.Base(path)))
				select {
				case out <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
