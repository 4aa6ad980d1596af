package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

// FileRegistryRepository keeps the registry as one indented JSON array on disk.
// Writes replace the file through a temp file and rename, so readers never
// observe a partially written document.
type FileRegistryRepository struct {
	mu   sync.RWMutex
	path string
}

// NewFileRegistryRepository uses path as the registry document, creating an
// empty one when it does not exist yet.
func NewFileRegistryRepository(path string) (*FileRegistryRepository, error) {
	r := &FileRegistryRepository{path: path}

	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
		if err := r.write(nil); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat registry: %w", err)
	}

	return r, nil
}

func (r *FileRegistryRepository) List(ctx context.Context) (domain.Snapshot, error) {
	_, span := tracer.Start(ctx, "Registry.Repository.File.List")
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	records, err := r.read()
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	return domain.Snapshot{Records: records, Version: domain.VersionOf(records)}, nil
}

func (r *FileRegistryRepository) Append(ctx context.Context, rec diamond.CollectionRecord, cond domain.AppendCondition) (string, error) {
	_, span := tracer.Start(ctx, "Registry.Repository.File.Append")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.read()
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := domain.CheckAppend(records, rec, cond); err != nil {
		return "", err
	}

	records = append(records, rec)
	if err := r.write(records); err != nil {
		span.RecordError(err)
		return "", err
	}

	return domain.VersionOf(records), nil
}

func (r *FileRegistryRepository) Delete(ctx context.Context, id, ownerID string) (int, error) {
	_, span := tracer.Start(ctx, "Registry.Repository.File.Delete")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.read()
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	kept, removed := domain.RemoveRecords(records, id, ownerID)
	if removed == 0 {
		return 0, domain.NotFoundError{Resource: "collection " + id}
	}

	if err := r.write(kept); err != nil {
		span.RecordError(err)
		return 0, err
	}

	return removed, nil
}

func (r *FileRegistryRepository) Close() error {
	return nil
}

func (r *FileRegistryRepository) read() ([]diamond.CollectionRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, domain.StorageUnavailableError{Op: "read", Err: err}
	}

	records, err := domain.DecodeRecords(data)
	if err != nil {
		return nil, domain.CorruptFormatError{Err: err}
	}

	return records, nil
}

// write replaces the registry document atomically (temp file + rename).
func (r *FileRegistryRepository) write(records []diamond.CollectionRecord) error {
	data, err := domain.EncodeRecords(records)
	if err != nil {
		return domain.StorageUnavailableError{Op: "write", Err: err}
	}

	dir := filepath.Dir(r.path)
	tmpFile, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return domain.StorageUnavailableError{Op: "write", Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return domain.StorageUnavailableError{Op: "write", Err: fmt.Errorf("failed to write data: %w", err)}
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return domain.StorageUnavailableError{Op: "write", Err: fmt.Errorf("failed to sync temp file: %w", err)}
	}

	if err := tmpFile.Close(); err != nil {
		return domain.StorageUnavailableError{Op: "write", Err: fmt.Errorf("failed to close temp file: %w", err)}
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		return domain.StorageUnavailableError{Op: "write", Err: fmt.Errorf("failed to rename temp file: %w", err)}
	}

	success = true
	return nil
}
