package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for after a change.
const DefaultDebounce = 100 * time.Millisecond

// Watch reports changes to one key of a file backend made by other
// processes. It watches the parent directory, since writes replace the
// file by rename. fn receives the key's current value, or nil when the
// key is gone; read errors go to onErr. Watch blocks until ctx is done.
func (f *FileBackend) Watch(ctx context.Context, key string, debounce time.Duration, fn func(map[string]any), onErr func(error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onErr == nil {
		onErr = func(error) {}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(f.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(f.path)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			v, err := f.Get(ctx, key)
			if err != nil {
				onErr(err)
				continue
			}
			fn(v)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			onErr(err)
		}
	}
}
