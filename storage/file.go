package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Ahmed123sa/whatsapp-auto/contexthelper"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

var _ Storage = (*FileStorage)(nil)

// FileStorage keeps all records as one JSON array in a flat file.
// A single mutex makes this process the only writer; each write replaces the
// file atomically through a temporary file.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage returns a storage backed by path, creating its directory if needed.
func NewFileStorage(path string) (*FileStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("fail to create directory %s, err: %w", dir, err)
		}
	}
	return &FileStorage{path: path}, nil
}

func (s *FileStorage) AppendRecord(ctx context.Context, record model.GroupRecord) error {
	if contexthelper.CheckCancellation(ctx) != nil {
		return ctx.Err()
	}
	if err := validate(record); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.read()
	if err != nil {
		return err
	}
	records = append(records, record)
	return s.write(records)
}

func (s *FileStorage) ListRecords(ctx context.Context) ([]model.GroupRecord, error) {
	if contexthelper.CheckCancellation(ctx) != nil {
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStorage) GetRecord(ctx context.Context, groupID string) (*model.GroupRecord, error) {
	records, err := s.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	return findRecord(records, groupID)
}

func (s *FileStorage) Close() error {
	return nil
}

// read returns the stored records; a missing or empty file holds none.
func (s *FileStorage) read() ([]model.GroupRecord, error) {
	buf, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.GroupRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fail to read %s, err: %w", s.path, err)
	}
	records := []model.GroupRecord{}
	if len(buf) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(buf, &records); err != nil {
		return nil, fmt.Errorf("fail to decode %s, err: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStorage) write(records []model.GroupRecord) error {
	buf, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("fail to marshal records, err: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("fail to create temp file, err: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fail to write %s, err: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fail to close %s, err: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("fail to replace %s, err: %w", s.path, err)
	}
	return nil
}
