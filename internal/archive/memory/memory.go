// Package memory stores archived content in-memory for development.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archive keeps archived pages in a map and returns pseudo URIs.
type Archive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an in-memory archive.
func New() *Archive {
	return &Archive{data: make(map[string][]byte)}
}

// Put persists the content and returns a memory:// URI.
func (a *Archive) Put(_ context.Context, path string, _ string, data []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[path] = append([]byte(nil), data...)
	return "memory://" + path, nil
}

// Get returns the stored content for a path.
func (a *Archive) Get(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}
