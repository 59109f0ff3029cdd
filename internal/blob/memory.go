package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// memBlob keeps the raw bytes plus the write-time fields an Info is rebuilt
// from on every read, so no caller can alias store-owned state.
type memBlob struct {
	data        []byte
	contentType string
	metadata    map[string]string
	storedAt    time.Time
}

func (b *memBlob) describe(key string) Info {
	return Info{
		Key:          key,
		Size:         int64(len(b.data)),
		ContentType:  b.contentType,
		Metadata:     cloneMetadata(b.metadata),
		LastModified: b.storedAt,
	}
}

// MemoryStore implements Store backed by process memory. Intended for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*memBlob
}

// NewMemory returns an in-memory blob store.
func NewMemory() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]*memBlob)}
}

// Driver returns the blob driver identifier.
func (s *MemoryStore) Driver() Driver { return DriverMemory }

// Put stores a new blob; keys are write-once, a second Put for the same key
// fails.
func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	entry := &memBlob{
		data:        data,
		contentType: opts.ContentType,
		metadata:    cloneMetadata(opts.Metadata),
		storedAt:    time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.blobs[key]; taken {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	s.blobs[key] = entry
	return entry.describe(key), nil
}

// Get returns blob metadata and a read closer over a private copy of the
// content.
func (s *MemoryStore) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	s.mu.RLock()
	entry, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, nil, fmt.Errorf("blob %s: %w", key, ErrNotFound)
	}
	body := bytes.Clone(entry.data)
	return entry.describe(key), io.NopCloser(bytes.NewReader(body)), nil
}

// Head returns blob metadata only.
func (s *MemoryStore) Head(_ context.Context, key string) (Info, error) {
	s.mu.RLock()
	entry, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, fmt.Errorf("blob %s: %w", key, ErrNotFound)
	}
	return entry.describe(key), nil
}

// Delete removes the blob, reporting whether it existed.
func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return false, nil
	}
	delete(s.blobs, key)
	return true, nil
}

// List returns the blobs under prefix in key order.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]Info, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.blobs))
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]Info, 0, len(keys))
	for _, key := range keys {
		out = append(out, s.blobs[key].describe(key))
	}
	s.mu.RUnlock()
	return out, nil
}
