package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSystemBlobStore persists queued media payloads as files named by key
// under a single directory. Blobs are removed once their pending change is
// replayed or discarded.
type FileSystemBlobStore struct {
	dir string
}

// NewFileSystemBlobStore creates the blob directory if needed.
func NewFileSystemBlobStore(dir string) (*FileSystemBlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &FileSystemBlobStore{dir: dir}, nil
}

func (s *FileSystemBlobStore) Put(key string, data []byte) error {
	if err := os.WriteFile(s.path(key), data, 0600); err != nil {
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	return nil
}

func (s *FileSystemBlobStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

func (s *FileSystemBlobStore) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob %s: %w", key, err)
	}
	return nil
}

func (s *FileSystemBlobStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

// MemoryBlobStore is an in-memory blob store for tests.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[key] = cp
	return nil
}

func (s *MemoryBlobStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", key)
	}
	return data, nil
}

func (s *MemoryBlobStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}
