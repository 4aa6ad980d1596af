package usecase

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

var tracer = otel.Tracer("usecase")

type RegistryUsecase struct {
	repo      RegistryRepository
	publisher EventPublisher
	uniqueIDs bool
}

// NewRegistryUsecase wires the registry. publisher may be nil.
func NewRegistryUsecase(repo RegistryRepository, publisher EventPublisher, uniqueIDs bool) *RegistryUsecase {
	return &RegistryUsecase{
		repo:      repo,
		publisher: publisher,
		uniqueIDs: uniqueIDs,
	}
}

// List returns the registry in insertion order. A non-empty ownerID narrows the
// records, the returned version always describes the whole registry.
func (uc *RegistryUsecase) List(ctx context.Context, ownerID string) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.List")
	defer span.End()

	snapshot, err := uc.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	if ownerID != "" {
		span.SetAttributes(attribute.String("OwnerID", ownerID))
		snapshot.Records = domain.FilterOwned(snapshot.Records, ownerID)
	}

	return snapshot, nil
}

// Append stores rec at the end of the registry. A non-empty ifVersion makes the
// append conditional on the registry still being at that version.
func (uc *RegistryUsecase) Append(ctx context.Context, rec diamond.CollectionRecord, ifVersion string) (string, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Append")
	defer span.End()

	if uc.uniqueIDs && !rec.Addressable() {
		err := domain.InvalidRecordError{Reason: "id and owner_id are required"}
		span.RecordError(err)
		return "", err
	}

	version, err := uc.repo.Append(ctx, rec, domain.AppendCondition{
		IfVersion: ifVersion,
		UniqueIDs: uc.uniqueIDs,
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to append record"))
		return "", err
	}

	uc.publish(ctx, domain.RegistryEvent{
		Type:    domain.EventAppend,
		Record:  &rec,
		ID:      rec.ID,
		OwnerID: rec.OwnerID,
		Version: version,
	})

	return version, nil
}

// Delete removes every record with id owned by ownerID.
func (uc *RegistryUsecase) Delete(ctx context.Context, id, ownerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "Registry.Usecase.Delete")
	defer span.End()

	if id == "" || ownerID == "" {
		err := domain.InvalidRecordError{Reason: "id and owner_id are required"}
		span.RecordError(err)
		return 0, err
	}

	removed, err := uc.repo.Delete(ctx, id, ownerID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "failed to delete record"))
		return 0, err
	}

	uc.publish(ctx, domain.RegistryEvent{
		Type:    domain.EventDelete,
		ID:      id,
		OwnerID: ownerID,
	})

	return removed, nil
}

func (uc *RegistryUsecase) publish(ctx context.Context, event domain.RegistryEvent) {
	if uc.publisher == nil {
		return
	}
	err := uc.publisher.PublishRegistryEvent(ctx, event)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to publish registry event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
			slog.String("module", "registry"),
		)
	}
}
