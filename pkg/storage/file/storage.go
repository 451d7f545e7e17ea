// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package file provides a file-based implementation of the storage.Backend
// interface for single-node deployments. Documents are stored as files in a
// directory hierarchy mirroring the document path, through an afero
// filesystem so tests can run against an in-memory fs.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	// Default file permissions (owner rw only)
	defaultFilePerms = 0600
)

// FileStorage is a file-based implementation of storage.Backend.
// It stores documents as files in a directory hierarchy and is thread-safe.
type FileStorage struct {
	mu      sync.RWMutex
	fs      afero.Fs
	rootDir string
	closed  bool
}

// New creates a new FileStorage rooted at the specified directory on the
// host filesystem. The root directory is created if it doesn't exist.
func New(rootDir string) (storage.Backend, error) {
	return NewWithFs(afero.NewOsFs(), rootDir)
}

// NewWithFs creates a new FileStorage on the given afero filesystem.
func NewWithFs(fs afero.Fs, rootDir string) (storage.Backend, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}

	if err := fs.MkdirAll(rootDir, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}

	return &FileStorage{
		fs:      fs,
		rootDir: rootDir,
	}, nil
}

// keyPath maps a document key to a path under the root directory. Keys are
// validated against path traversal before use.
func (f *FileStorage) keyPath(key string) (string, error) {
	if key == "" {
		return "", storage.ErrInvalidKey
	}
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", storage.ErrInvalidKey
	}
	return filepath.Join(f.rootDir, clean), nil
}

// Get retrieves the document stored at the given key.
func (f *FileStorage) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, storage.ErrClosed
	}

	path, err := f.keyPath(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read %s: %w", key, err)
	}
	return data, nil
}

// Put stores the document at the given key, overwriting any prior value.
func (f *FileStorage) Put(key string, value []byte, opts *storage.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return storage.ErrClosed
	}

	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	return f.write(path, key, value, opts)
}

// Create stores the document only if the key does not already exist.
func (f *FileStorage) Create(key string, value []byte, opts *storage.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return storage.ErrClosed
	}

	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	exists, err := afero.Exists(f.fs, path)
	if err != nil {
		return fmt.Errorf("file storage: failed to check existence of %s: %w", key, err)
	}
	if exists {
		return storage.ErrAlreadyExists
	}

	return f.write(path, key, value, opts)
}

// write stores the file, creating parent directories as needed.
// Callers must hold the write lock.
func (f *FileStorage) write(path, key string, value []byte, opts *storage.Options) error {
	perms := os.FileMode(defaultFilePerms)
	if opts != nil && opts.Permissions != 0 {
		perms = opts.Permissions
	}

	if err := f.fs.MkdirAll(filepath.Dir(path), defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for %s: %w", key, err)
	}

	if err := afero.WriteFile(f.fs, path, value, perms); err != nil {
		return fmt.Errorf("file storage: failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes the key and its document from storage.
func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return storage.ErrClosed
	}

	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	if err := f.fs.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to delete %s: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix, sorted lexicographically.
func (f *FileStorage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, storage.ErrClosed
	}

	var keys []string
	err := afero.Walk(f.fs, f.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(f.rootDir, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in storage.
func (f *FileStorage) Exists(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return false, storage.ErrClosed
	}

	path, err := f.keyPath(key)
	if err != nil {
		return false, err
	}

	return afero.Exists(f.fs, path)
}

// Close releases any resources held by the backend.
func (f *FileStorage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}
