package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps both tokens in one JSON document. Writes go to a temp file
// that is renamed over the original, so each mutation is all-or-nothing.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("token file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked().Token
}

func (s *FileStore) GetRefresh() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked().RefreshToken
}

func (s *FileStore) Set(token string) error {
	return s.update(func(doc *fileDocument) { doc.Token = token })
}

func (s *FileStore) SetRefresh(token string) error {
	return s.update(func(doc *fileDocument) { doc.RefreshToken = token })
}

func (s *FileStore) SetPair(token string, refresh string) error {
	return s.update(func(doc *fileDocument) {
		doc.Token = token
		if refresh != "" {
			doc.RefreshToken = refresh
		}
	})
}

func (s *FileStore) Replace(token string, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(fileDocument{Token: token, RefreshToken: refresh})
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (s *FileStore) update(mutate func(doc *fileDocument)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.readLocked()
	mutate(&doc)
	return s.writeLocked(doc)
}

func (s *FileStore) readLocked() fileDocument {
	var doc fileDocument

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("token file unreadable", "path", s.path, "error", err)
		}
		return doc
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("token file corrupt; treating as empty", "path", s.path, "error", err)
		return fileDocument{}
	}
	return doc
}

func (s *FileStore) writeLocked(doc fileDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp token file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
