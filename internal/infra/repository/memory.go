package repository

import (
	"context"
	"sync"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

// MemoryRegistryRepository holds the registry in process memory.
type MemoryRegistryRepository struct {
	mu      sync.RWMutex
	records []diamond.CollectionRecord
}

func NewMemoryRegistryRepository(seed ...diamond.CollectionRecord) *MemoryRegistryRepository {
	return &MemoryRegistryRepository{records: cloneRecords(seed)}
}

func (r *MemoryRegistryRepository) List(ctx context.Context) (domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := cloneRecords(r.records)
	return domain.Snapshot{Records: records, Version: domain.VersionOf(records)}, nil
}

func (r *MemoryRegistryRepository) Append(ctx context.Context, rec diamond.CollectionRecord, cond domain.AppendCondition) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := domain.CheckAppend(r.records, rec, cond); err != nil {
		return "", err
	}

	r.records = append(r.records, rec)
	return domain.VersionOf(r.records), nil
}

func (r *MemoryRegistryRepository) Delete(ctx context.Context, id, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept, removed := domain.RemoveRecords(r.records, id, ownerID)
	if removed == 0 {
		return 0, domain.NotFoundError{Resource: "collection " + id}
	}
	r.records = kept
	return removed, nil
}

func (r *MemoryRegistryRepository) Close() error {
	return nil
}
