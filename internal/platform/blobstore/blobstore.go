// Package blobstore abstracts file storage for patient document attachments.
// Two implementations exist: an in-memory store for development and tests,
// and an S3-compatible store for production.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrEmptyPath    = errors.New("empty file path")
)

// FileInfo describes a stored file.
type FileInfo struct {
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	StoredAt    time.Time `json:"stored_at"`
}

// FileStore is the storage contract used by document services. Delete is
// best-effort at call sites: record deletion proceeds even when the file
// removal fails.
type FileStore interface {
	Save(ctx context.Context, filePath string, content []byte, contentType string) (*FileInfo, error)
	Delete(ctx context.Context, filePath string) error
	SignedViewURL(ctx context.Context, filePath string, ttl time.Duration) (string, error)
}

// UploadPath builds the canonical storage path for a patient file. The uuid
// prefix keeps re-uploads of the same filename from colliding.
func UploadPath(patientID int64, fileName string) string {
	clean := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	return fmt.Sprintf("patients/%d/%s-%s", patientID, uuid.New().String(), clean)
}

type memoryObject struct {
	info    FileInfo
	content []byte
}

// InMemoryStore keeps files in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string]memoryObject)}
}

func (s *InMemoryStore) Save(ctx context.Context, filePath string, content []byte, contentType string) (*FileInfo, error) {
	if filePath == "" {
		return nil, ErrEmptyPath
	}

	info := FileInfo{
		Path:        filePath,
		Name:        path.Base(filePath),
		Size:        int64(len(content)),
		ContentType: contentType,
		StoredAt:    time.Now().UTC(),
	}

	buf := make([]byte, len(content))
	copy(buf, content)

	s.mu.Lock()
	s.objects[filePath] = memoryObject{info: info, content: buf}
	s.mu.Unlock()

	return &info, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[filePath]; !ok {
		return ErrFileNotFound
	}
	delete(s.objects, filePath)
	return nil
}

func (s *InMemoryStore) SignedViewURL(ctx context.Context, filePath string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[filePath]; !ok {
		return "", ErrFileNotFound
	}
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("/dev-files/%s?expires=%d", filePath, expires), nil
}

// Get returns a stored file's content, used by tests and the dev file route.
func (s *InMemoryStore) Get(filePath string) ([]byte, *FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[filePath]
	if !ok {
		return nil, nil, ErrFileNotFound
	}
	return obj.content, &obj.info, nil
}
