package blobstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetryDelays is the retry schedule clients should use between
// failed chunk uploads.
var DefaultRetryDelays = []time.Duration{
	0,
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
}

var (
	ErrSessionNotFound = errors.New("upload session not found")
	ErrOffsetMismatch  = errors.New("upload offset mismatch")
	ErrUploadTooLarge  = errors.New("upload exceeds maximum size")
	ErrLengthExceeded  = errors.New("upload exceeds declared length")
)

// UploadSession is a single resumable upload in flight. Chunks are appended
// strictly in order; the file is committed to the backing store once the
// declared length is reached.
type UploadSession struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Length      int64     `json:"length"`
	Offset      int64     `json:"offset"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`

	buf []byte
}

// SessionManager tracks in-flight resumable uploads in memory.
type SessionManager struct {
	mu       sync.Mutex
	store    FileStore
	sessions map[string]*UploadSession
	maxSize  int64
	ttl      time.Duration
}

func NewSessionManager(store FileStore, maxSize int64, ttl time.Duration) *SessionManager {
	return &SessionManager{
		store:    store,
		sessions: make(map[string]*UploadSession),
		maxSize:  maxSize,
		ttl:      ttl,
	}
}

// Create opens a session for a file of the declared length.
func (m *SessionManager) Create(filePath string, length int64, contentType string) (*UploadSession, error) {
	if filePath == "" {
		return nil, ErrEmptyPath
	}
	if length <= 0 || length > m.maxSize {
		return nil, ErrUploadTooLarge
	}

	s := &UploadSession{
		ID:          uuid.New().String(),
		Path:        filePath,
		Length:      length,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
		buf:         make([]byte, 0, length),
	}

	m.mu.Lock()
	m.evictExpiredLocked()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s, nil
}

// Offset reports how many bytes have been received so far.
func (m *SessionManager) Offset(id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return 0, ErrSessionNotFound
	}
	return s.Offset, nil
}

// Append accepts the next chunk at the given offset. A completed upload is
// committed to the store and the session removed; the returned FileInfo is
// non-nil only in that case.
func (m *SessionManager) Append(ctx context.Context, id string, offset int64, chunk []byte) (int64, *FileInfo, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return 0, nil, ErrSessionNotFound
	}
	if offset != s.Offset {
		current := s.Offset
		m.mu.Unlock()
		return current, nil, ErrOffsetMismatch
	}
	if s.Offset+int64(len(chunk)) > s.Length {
		m.mu.Unlock()
		return s.Offset, nil, ErrLengthExceeded
	}

	s.buf = append(s.buf, chunk...)
	s.Offset += int64(len(chunk))

	if s.Offset < s.Length {
		newOffset := s.Offset
		m.mu.Unlock()
		return newOffset, nil, nil
	}

	// Upload complete, commit outside the lock.
	delete(m.sessions, id)
	m.mu.Unlock()

	info, err := m.store.Save(ctx, s.Path, s.buf, s.ContentType)
	if err != nil {
		return s.Offset, nil, err
	}
	return s.Offset, info, nil
}

// evictExpiredLocked drops sessions older than the ttl. Caller holds the lock.
func (m *SessionManager) evictExpiredLocked() {
	if m.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
