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

// Package storage provides an abstraction layer for the external document
// store that holds pending challenges and registered credentials. It supports
// in-memory and file-based implementations with a common interface.
//
// Keys are slash-separated document paths ("challenges/abc",
// "accounts/abc/credentials/xyz") and values are opaque document bodies.
package storage

import (
	"io/fs"
)

// Backend defines the interface for document store backends.
// All implementations must be thread-safe. Writes are atomic at single
// document granularity; no multi-document transactions are provided.
type Backend interface {
	// Get retrieves the document stored at the given key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// Put stores the document at the given key.
	// If the key already exists, it is overwritten.
	Put(key string, value []byte, opts *Options) error

	// Create stores the document at the given key only if the key does not
	// already exist. Returns ErrAlreadyExists otherwise. The existence check
	// and write are atomic with respect to concurrent callers.
	Create(key string, value []byte, opts *Options) error

	// Delete removes the key and its document from storage.
	// Returns ErrNotFound if the key does not exist.
	Delete(key string) error

	// List returns all keys with the given prefix.
	// If prefix is empty, all keys are returned.
	List(prefix string) ([]string, error)

	// Exists checks if a key exists in storage.
	Exists(key string) (bool, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Options contains optional parameters for storage operations.
type Options struct {
	// Permissions sets the file permissions for file-based storage
	Permissions fs.FileMode

	// Metadata contains additional key-value pairs for storage operations
	Metadata map[string]string
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Permissions: 0600, // Read/write for owner only
		Metadata:    make(map[string]string),
	}
}
