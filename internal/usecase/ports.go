package usecase

import (
	"context"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

// RegistryRepository defines storage operations for the collection registry.
type RegistryRepository interface {
	List(ctx context.Context) (domain.Snapshot, error)
	Append(ctx context.Context, rec diamond.CollectionRecord, cond domain.AppendCondition) (string, error)
	Delete(ctx context.Context, id, ownerID string) (int, error)
	Close() error
}

// EventPublisher fans registry changes out to realtime subscribers.
type EventPublisher interface {
	PublishRegistryEvent(ctx context.Context, event domain.RegistryEvent) error
}
