package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is a Store persisted as a single JSON document on disk.
// Every Set and Delete rewrites the whole file.
type File struct {
	path string
	mu   sync.Mutex
	data map[string]json.RawMessage
}

// OpenFile loads the store at path. A missing file yields an empty store.
func OpenFile(path string) (*File, error) {
	f := &File{path: path}
	if err := f.Load(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load re-reads the file from disk, discarding in-memory state.
func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.data = make(map[string]json.RawMessage)
			return nil
		}
		return err
	}
	defer fh.Close()

	data := make(map[string]json.RawMessage)
	if err := json.NewDecoder(fh).Decode(&data); err != nil {
		return err
	}
	f.data = data
	return nil
}

// save writes the document. Callers must hold f.mu.
func (f *File) save() error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(fh).Encode(f.data); err != nil {
		fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *File) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %s is not valid JSON", key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.data[key]
	f.data[key] = append(json.RawMessage(nil), value...)
	if err := f.save(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := make(map[string]json.RawMessage)
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			removed[k] = v
			delete(f.data, k)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := f.save(); err != nil {
		for k, v := range removed {
			f.data[k] = v
		}
		return err
	}
	return nil
}
