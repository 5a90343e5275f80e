package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"strings"

	appConfig "github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/utils"
)

// Storage folders
const (
	FolderPaymentProofs    = "payment-proofs"
	FolderRequestDocuments = "request-documents"
)

// FileStorage stores uploaded files behind opaque keys
type FileStorage interface {
	// Save stores the upload under folder and returns its key
	Save(ctx context.Context, folder string, fileHeader *multipart.FileHeader) (string, error)

	// Open streams a stored file
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns a link for reading a stored file
	URL(ctx context.Context, key string) (string, error)

	// Delete removes a stored file; missing files are not an error
	Delete(ctx context.Context, key string) error
}

var fileStorageInstance FileStorage

// InitFileStorage builds the backend selected by STORAGE_DRIVER
func InitFileStorage(cfg *appConfig.Config) (FileStorage, error) {
	switch cfg.StorageDriver {
	case "s3":
		s3Storage, err := NewS3Storage(cfg)
		if err != nil {
			return nil, err
		}
		fileStorageInstance = s3Storage
	default:
		fileStorageInstance = NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL)
	}
	return fileStorageInstance, nil
}

// GetFileStorage returns the initialized storage backend
func GetFileStorage() FileStorage {
	return fileStorageInstance
}

// SetFileStorage sets the storage backend (primarily for testing)
func SetFileStorage(storage FileStorage) {
	fileStorageInstance = storage
}

// fileURL resolves a key to a URL, returning "" when there is nothing to link
func fileURL(ctx context.Context, storage FileStorage, key string) string {
	if storage == nil || key == "" {
		return ""
	}
	url, err := storage.URL(ctx, key)
	if err != nil {
		return ""
	}
	return url
}

// LocalStorage keeps files on the local disk
type LocalStorage struct {
	baseDir       string
	publicBaseURL string
}

// NewLocalStorage creates a disk-backed storage rooted at baseDir
func NewLocalStorage(baseDir, publicBaseURL string) *LocalStorage {
	return &LocalStorage{baseDir: baseDir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Save writes the upload to disk
func (s *LocalStorage) Save(ctx context.Context, folder string, fileHeader *multipart.FileHeader) (string, error) {
	return utils.SaveUploadedFile(fileHeader, s.baseDir, folder)
}

// Open opens a stored file
func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := utils.SafeJoin(s.baseDir, key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stored file: %w", err)
	}
	return file, nil
}

// URL returns the public path that serves the file
func (s *LocalStorage) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return s.publicBaseURL + "/" + key, nil
}

// Delete removes a stored file
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	path, err := utils.SafeJoin(s.baseDir, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete stored file: %w", err)
	}
	return nil
}
