// Package blobstore provides object storage for treatment file attachments.
// It defines the ObjectStore interface, an in-memory implementation used in
// tests, a filesystem implementation for single-node deployments, and an
// HMAC signer for time-limited download URLs.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidPath        = errors.New("invalid object path")
)

// MaxFileSize is the maximum allowed object size in bytes (25 MB).
const MaxFileSize = 25 * 1024 * 1024

// AllowedContentTypes lists the MIME types accepted for treatment files:
// intraoral photos, radiographs, and scanned documents.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ObjectStore is the contract for treatment file storage backends.
type ObjectStore interface {
	Upload(ctx context.Context, path, contentType string, content io.Reader) (*ObjectInfo, error)
	Download(ctx context.Context, path string) (io.ReadCloser, *ObjectInfo, error)
	Remove(ctx context.Context, paths []string) error
}

// ValidatePath rejects empty paths and traversal attempts. Object paths are
// built by the application (tenant/treatment/file), never taken verbatim
// from user input, but uploads are still checked defensively.
func ValidatePath(path string) error {
	if path == "" || strings.HasPrefix(path, "/") {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidPath
		}
	}
	return nil
}

// ValidateContentType rejects MIME types outside the allow list.
func ValidateContentType(contentType string) error {
	// Strip parameters such as "; charset=binary"
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if !AllowedContentTypes[contentType] {
		return ErrInvalidContentType
	}
	return nil
}

type storedObject struct {
	info    ObjectInfo
	content []byte
}

// InMemoryStore is a thread-safe, in-memory ObjectStore for tests and
// development.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*storedObject
}

// NewInMemoryStore returns a ready-to-use InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		objects: make(map[string]*storedObject),
	}
}

// Upload validates inputs, reads the content, computes a SHA-256 hash, and
// stores the object in memory.
func (s *InMemoryStore) Upload(_ context.Context, path, contentType string, content io.Reader) (*ObjectInfo, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)
	info := ObjectInfo{
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", h),
		UploadedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.objects[path] = &storedObject{info: info, content: data}
	s.mu.Unlock()

	out := info
	return &out, nil
}

// Download returns an io.ReadCloser over the object content and its info.
func (s *InMemoryStore) Download(_ context.Context, path string) (io.ReadCloser, *ObjectInfo, error) {
	s.mu.RLock()
	obj, ok := s.objects[path]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrObjectNotFound
	}

	info := obj.info
	return io.NopCloser(bytes.NewReader(obj.content)), &info, nil
}

// Remove deletes the given objects. Missing paths are ignored so removal
// stays idempotent; treatment deletion must not fail because a file was
// already gone.
func (s *InMemoryStore) Remove(_ context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		delete(s.objects, p)
	}
	return nil
}

// Len returns the number of stored objects.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// FilesystemStore stores objects under a root directory. Object metadata
// is recomputed from the file on download; content types are persisted in
// a sidecar file next to the object.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates the root directory if needed and returns a
// FilesystemStore.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blobstore root: %w", err)
	}
	return &FilesystemStore{root: root}, nil
}

func (s *FilesystemStore) objectPath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func (s *FilesystemStore) Upload(_ context.Context, path, contentType string, content io.Reader) (*ObjectInfo, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	dst := s.objectPath(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return nil, fmt.Errorf("create object directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o640); err != nil {
		return nil, fmt.Errorf("write object: %w", err)
	}
	if err := os.WriteFile(dst+".ctype", []byte(contentType), 0o640); err != nil {
		return nil, fmt.Errorf("write object content type: %w", err)
	}

	h := sha256.Sum256(data)
	return &ObjectInfo{
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", h),
		UploadedAt:  time.Now().UTC(),
	}, nil
}

func (s *FilesystemStore) Download(_ context.Context, path string) (io.ReadCloser, *ObjectInfo, error) {
	if err := ValidatePath(path); err != nil {
		return nil, nil, ErrObjectNotFound
	}

	dst := s.objectPath(path)
	data, err := os.ReadFile(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("read object: %w", err)
	}

	contentType := "application/octet-stream"
	if ct, err := os.ReadFile(dst + ".ctype"); err == nil {
		contentType = string(ct)
	}

	st, err := os.Stat(dst)
	if err != nil {
		return nil, nil, fmt.Errorf("stat object: %w", err)
	}

	h := sha256.Sum256(data)
	info := ObjectInfo{
		Path:        path,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", h),
		UploadedAt:  st.ModTime().UTC(),
	}
	return io.NopCloser(bytes.NewReader(data)), &info, nil
}

func (s *FilesystemStore) Remove(_ context.Context, paths []string) error {
	for _, p := range paths {
		if err := ValidatePath(p); err != nil {
			continue
		}
		dst := s.objectPath(p)
		if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove object %s: %w", p, err)
		}
		_ = os.Remove(dst + ".ctype")
	}
	return nil
}
