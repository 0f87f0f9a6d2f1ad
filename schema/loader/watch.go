package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	settings "github.com/goliatone/go-settings"
)

// DefaultDebounce batches the burst of events a single save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the schema at path whenever it changes and hands the new
// registry to onChange. Load errors go to onError and leave the caller's
// current registry in place. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*settings.Registry), onError func(error)) error {
	return WatchWithDebounce(ctx, path, DefaultDebounce, onChange, onError)
}

// WatchWithDebounce is Watch with an explicit debounce interval.
func WatchWithDebounce(ctx context.Context, path string, debounce time.Duration, onChange func(*settings.Registry), onError func(error)) error {
	if onChange == nil {
		return fmt.Errorf("loader: watch %s: onChange is required", path)
	}
	if onError == nil {
		onError = func(error) {}
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("loader: watch %s: %w", path, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("loader: watch %s: %w", path, err)
	}
	defer watcher.Close()

	// Editors often replace the file, so the directory is watched.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("loader: watch %s: %w", path, err)
	}

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			reload = time.After(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onError(fmt.Errorf("loader: watch %s: %w", path, err))
		case <-reload:
			reload = nil
			registry, err := Load(target)
			if err != nil {
				onError(err)
				continue
			}
			onChange(registry)
		}
	}
}
