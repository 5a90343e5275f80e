package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxProofImageSize is 2MB in bytes
	MaxProofImageSize = 2 * 1024 * 1024
	// MaxDocumentSize is 5MB in bytes
	MaxDocumentSize = 5 * 1024 * 1024
)

var (
	// ProofImageRule accepts payment proof images
	ProofImageRule = FileRule{MaxSize: MaxProofImageSize, Extensions: []string{".jpg", ".jpeg", ".png"}}

	// DocumentRule accepts project request documents
	DocumentRule = FileRule{MaxSize: MaxDocumentSize, Extensions: []string{".pdf", ".jpg", ".jpeg", ".png", ".doc", ".docx"}}
)

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// FileRule is a size and extension constraint for one kind of upload
type FileRule struct {
	MaxSize    int64
	Extensions []string
}

// Validate checks the uploaded file against the rule
func (r FileRule) Validate(fileHeader *multipart.FileHeader) error {
	if fileHeader == nil {
		return &FileUploadError{Code: "FILE_REQUIRED", Message: "A file is required"}
	}

	if fileHeader.Size > r.MaxSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", r.MaxSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	for _, allowed := range r.Extensions {
		if ext == allowed {
			return nil
		}
	}

	return &FileUploadError{
		Code:    "INVALID_FILE_FORMAT",
		Message: fmt.Sprintf("Only %s files are allowed", strings.Join(r.Extensions, ", ")),
	}
}

// ContentType returns the MIME type for a stored file name
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// UniqueFilename builds a collision-free name that keeps the original extension
func UniqueFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return uuid.NewString() + ext
}

// SafeJoin joins a storage key onto baseDir, refusing keys that escape it
func SafeJoin(baseDir, key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.Contains(key, "\\") || filepath.IsAbs(key) {
		return "", &FileUploadError{Code: "INVALID_FILENAME", Message: "Invalid filename"}
	}
	return filepath.Join(baseDir, filepath.FromSlash(key)), nil
}

// SaveUploadedFile saves the uploaded file under uploadDir/folder
// Returns the storage key (folder/filename) of the saved file
func SaveUploadedFile(fileHeader *multipart.FileHeader, uploadDir, folder string) (key string, err error) {
	dir := filepath.Join(uploadDir, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename := UniqueFilename(fileHeader.Filename)
	fullPath := filepath.Join(dir, filename)

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			fmt.Printf("warning: failed to close source file: %v\n", closeErr)
		}
	}()

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return folder + "/" + filename, nil
}
