package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
)

// FileBackend keeps every key in one JSON object on disk. Each Put is a
// read-modify-write of the whole file, replaced atomically by rename.
type FileBackend struct {
	path string

	mu     sync.Mutex
	closed bool
}

// NewFileBackend returns a backend for the JSON file at path. The file and
// its directory are created on first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the file the backend reads and writes.
func (f *FileBackend) Path() string { return f.path }

func (f *FileBackend) Get(_ context.Context, key string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	all, err := f.load()
	if err != nil {
		return nil, err
	}
	v, ok := all[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("key %q holds %T, not an object", key, v)
	}
	return m, nil
}

func (f *FileBackend) Put(_ context.Context, key string, value map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	all, err := f.load()
	if err != nil {
		// unreadable content is set aside rather than silently discarded
		if rerr := os.Rename(f.path, f.path+".corrupt"); rerr != nil {
			return fmt.Errorf("%w (and could not move it aside: %v)", err, rerr)
		}
		all = map[string]any{}
	}
	all[key] = value
	return f.save(all)
}

func (f *FileBackend) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	all, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := all[key]; !ok {
		return nil
	}
	delete(all, key)
	return f.save(all)
}

func (f *FileBackend) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	all, err := f.load()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// load reads the whole file. A missing or empty file is an empty object.
func (f *FileBackend) load() (map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	if all == nil {
		all = map[string]any{}
	}
	return all, nil
}

func (f *FileBackend) save(all map[string]any) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", f.path, err)
	}
	return atomicWriteFile(f.path, append(data, '\n'), 0o600)
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it over filename.
func atomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-settings-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	var done bool
	defer func() {
		if !done {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("replacing %s: %w", filename, err)
	}
	done = true
	return nil
}
