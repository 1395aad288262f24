package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDuration = 500 * time.Millisecond

// WatchFiles watches the given files and emits the absolute path of a file
// once its writes have settled for debounceDuration. The channel is closed
// when ctx is canceled. Parent directories are watched so editors that
// replace files atomically are still seen.
func WatchFiles(ctx context.Context, files ...string) <-chan string {
	changed := make(chan string, len(files)+1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create fsnotify watcher", "error", err)
		close(changed)
		return changed
	}

	wanted := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, file := range files {
		if file == "" {
			continue
		}
		absPath, err := filepath.Abs(file)
		if err != nil {
			slog.Warn("Could not resolve absolute path for watch file", "file", file)
			continue
		}
		wanted[absPath] = true
		dirs[filepath.Dir(absPath)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Could not watch directory", "dir", dir, "error", err)
		} else {
			slog.Debug("Watching directory", "dir", dir)
		}
	}

	go func() {
		var mu sync.Mutex
		timers := make(map[string]*time.Timer)

		defer func() {
			watcher.Close()
			mu.Lock()
			for _, t := range timers {
				t.Stop()
			}
			mu.Unlock()
			close(changed)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Clean(event.Name)
				if !wanted[name] {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}

				mu.Lock()
				if t, ok := timers[name]; ok {
					t.Stop()
				}
				timers[name] = time.AfterFunc(debounceDuration, func() {
					slog.Info("File change detected", "file", name)
					select {
					case changed <- name:
					case <-ctx.Done():
					}
				})
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("Watcher encountered an error", "error", err)
			}
		}
	}()

	return changed
}
