package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"basegraph.app/insight/common"
)

const (
	// DefaultMaxBlobSize caps a single stored upload.
	DefaultMaxBlobSize = 30 * 1024 * 1024 // 30MiB
)

var (
	ErrBlobTooLarge      = errors.New("blob exceeds maximum size")
	ErrBlobEmpty         = errors.New("blob content cannot be empty")
	ErrInvalidBlobPath   = errors.New("invalid blob path")
	ErrBlobPathTraversal = errors.New("path traversal not allowed")
)

// BlobStore provides read/write operations for uploaded document files.
type BlobStore interface {
	// Write stores data and returns the relative blob path recorded on
	// the document row.
	Write(ctx context.Context, documentID int64, filename string, data []byte) (relPath string, err error)

	// Read retrieves a blob by its relative path.
	Read(ctx context.Context, relPath string) ([]byte, error)

	// Path resolves a relative blob path to an absolute filesystem
	// path. Extractors that parse from disk use this instead of Read.
	Path(relPath string) (string, error)

	// Delete removes a blob. Missing files are not an error so a
	// cascade delete can be retried.
	Delete(ctx context.Context, relPath string) error
}

// LocalBlobStore implements BlobStore using the local filesystem.
type LocalBlobStore struct {
	rootDir string
	maxSize int64
}

// NewLocalBlobStore creates a LocalBlobStore with the given root directory.
func NewLocalBlobStore(rootDir string, maxSize int64) (*LocalBlobStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxBlobSize
	}

	// Ensure root directory exists
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}

	return &LocalBlobStore{rootDir: rootDir, maxSize: maxSize}, nil
}

// Write stores data under a content-addressed shard directory. The file
// name keeps a slug of the original filename so blobs stay identifiable
// on disk: {shard}/{documentID}_{slug}{ext}.
func (s *LocalBlobStore) Write(ctx context.Context, documentID int64, filename string, data []byte) (string, error) {
	if int64(len(data)) > s.maxSize {
		return "", ErrBlobTooLarge
	}
	if len(data) == 0 {
		return "", ErrBlobEmpty
	}

	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	slug, err := common.Slugify(base, "document")
	if err != nil {
		slug = "document"
	}

	hash := blobHash(data)
	relPath := filepath.Join(hash[:2], fmt.Sprintf("%d_%s%s", documentID, slug, ext))

	if err := s.validatePath(relPath); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.rootDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("creating blob shard directory: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing temp blob: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming blob: %w", err)
	}

	return relPath, nil
}

// Read retrieves a blob by its relative path.
func (s *LocalBlobStore) Read(ctx context.Context, relPath string) ([]byte, error) {
	fullPath, err := s.Path(relPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

// Path resolves a relative blob path to an absolute filesystem path.
func (s *LocalBlobStore) Path(relPath string) (string, error) {
	if err := s.validatePath(relPath); err != nil {
		return "", err
	}
	return filepath.Join(s.rootDir, relPath), nil
}

// Delete removes a blob; a missing file is treated as already deleted.
func (s *LocalBlobStore) Delete(ctx context.Context, relPath string) error {
	fullPath, err := s.Path(relPath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// validatePath ensures the path is safe (no traversal, stays under root).
func (s *LocalBlobStore) validatePath(path string) error {
	if path == "" {
		return ErrInvalidBlobPath
	}

	// Check for path traversal attempts
	if strings.Contains(path, "..") {
		return ErrBlobPathTraversal
	}

	// Ensure it's not an absolute path
	if filepath.IsAbs(path) {
		return ErrBlobPathTraversal
	}

	// Clean and verify the path stays under root
	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") {
		return ErrBlobPathTraversal
	}

	return nil
}

// blobHash computes the SHA256 hash of content.
func blobHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
