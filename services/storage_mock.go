package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"sync"

	"github.com/kendall-kelly/triloka-construction-api/utils"
)

// MockStorage is an in-memory FileStorage for testing
type MockStorage struct {
	files   map[string][]byte // key to file content
	mu      sync.RWMutex
	SaveErr error
}

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files: make(map[string][]byte),
	}
}

// SetAsMockForTesting sets this mock as the global storage backend
func (m *MockStorage) SetAsMockForTesting() {
	SetFileStorage(m)
}

// Save simulates storing a file
func (m *MockStorage) Save(ctx context.Context, folder string, fileHeader *multipart.FileHeader) (string, error) {
	if m.SaveErr != nil {
		return "", m.SaveErr
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	key := folder + "/" + utils.UniqueFilename(fileHeader.Filename)

	m.mu.Lock()
	m.files[key] = content
	m.mu.Unlock()

	return key, nil
}

// Open returns the stored content
func (m *MockStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	content, exists := m.files[key]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("file not found in mock storage: %s", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// URL returns a fake link for a stored file
func (m *MockStorage) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.files[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("file not found in mock storage: %s", key)
	}

	return fmt.Sprintf("https://storage.test/%s?mock=true", key), nil
}

// Delete simulates removing a file
func (m *MockStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()

	return nil
}

// FileExists checks if a file exists in mock storage
func (m *MockStorage) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[key]
	return exists
}

// Count returns the number of stored files
func (m *MockStorage) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
