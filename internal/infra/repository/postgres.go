package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/infra/database/models"
)

type PostgresRegistryRepository struct {
	db *gorm.DB
}

func NewPostgresRegistryRepository(db *gorm.DB) *PostgresRegistryRepository {
	return &PostgresRegistryRepository{db: db}
}

func (r *PostgresRegistryRepository) List(ctx context.Context) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.Postgres.List")
	defer span.End()

	records, err := r.list(r.db.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	return domain.Snapshot{Records: records, Version: domain.VersionOf(records)}, nil
}

func (r *PostgresRegistryRepository) Append(ctx context.Context, rec diamond.CollectionRecord, cond domain.AppendCondition) (string, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.Postgres.Append")
	defer span.End()

	row, err := recordToModel(rec)
	if err != nil {
		return "", domain.InvalidRecordError{Reason: err.Error()}
	}

	var version string
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serializes appends while leaving plain reads unblocked
		if err := tx.Exec("LOCK TABLE collections IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
			return domain.StorageUnavailableError{Op: "write", Err: err}
		}

		current, err := r.list(tx)
		if err != nil {
			return err
		}

		if err := domain.CheckAppend(current, rec, cond); err != nil {
			return err
		}

		if err := tx.Create(&row).Error; err != nil {
			return domain.StorageUnavailableError{Op: "write", Err: err}
		}

		version = domain.VersionOf(append(current, rec))
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	return version, nil
}

func (r *PostgresRegistryRepository) Delete(ctx context.Context, id, ownerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.Postgres.Delete")
	defer span.End()

	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.Collection{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, domain.StorageUnavailableError{Op: "write", Err: result.Error}
	}

	if result.RowsAffected == 0 {
		return 0, domain.NotFoundError{Resource: "collection " + id}
	}

	return int(result.RowsAffected), nil
}

func (r *PostgresRegistryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *PostgresRegistryRepository) list(db *gorm.DB) ([]diamond.CollectionRecord, error) {
	var rows []models.Collection
	err := db.Order("seq ASC").Find(&rows).Error
	if err != nil {
		return nil, domain.StorageUnavailableError{Op: "read", Err: err}
	}

	records, err := modelsToRecords(rows)
	if err != nil {
		return nil, domain.CorruptFormatError{Err: err}
	}

	return records, nil
}
