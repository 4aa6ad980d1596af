package repository

import (
	"context"
	"database/sql"
	"sync"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/infra/database/models"
)

// SQLiteRegistryRepository stores the registry in the collections table created
// by the embedded migrations.
type SQLiteRegistryRepository struct {
	db *sql.DB
	// sqlite allows a single writer; appends also need read-check-insert to be atomic
	writeMu sync.Mutex
}

func NewSQLiteRegistryRepository(db *sql.DB) *SQLiteRegistryRepository {
	return &SQLiteRegistryRepository{db: db}
}

const selectCollections = `SELECT id, owner_id, name, description, link, extra, absent FROM collections ORDER BY seq ASC`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SQLiteRegistryRepository) List(ctx context.Context) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.SQLite.List")
	defer span.End()

	records, err := r.list(ctx, r.db)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	return domain.Snapshot{Records: records, Version: domain.VersionOf(records)}, nil
}

func (r *SQLiteRegistryRepository) Append(ctx context.Context, rec diamond.CollectionRecord, cond domain.AppendCondition) (string, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.SQLite.Append")
	defer span.End()

	row, err := recordToModel(rec)
	if err != nil {
		return "", domain.InvalidRecordError{Reason: err.Error()}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return "", domain.StorageUnavailableError{Op: "write", Err: err}
	}
	defer tx.Rollback()

	current, err := r.list(ctx, tx)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := domain.CheckAppend(current, rec, cond); err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (id, owner_id, name, description, link, extra, absent) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.OwnerID, row.Name, row.Description, row.Link, row.Extra, row.Absent,
	)
	if err != nil {
		span.RecordError(err)
		return "", domain.StorageUnavailableError{Op: "write", Err: err}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return "", domain.StorageUnavailableError{Op: "write", Err: err}
	}

	return domain.VersionOf(append(current, rec)), nil
}

func (r *SQLiteRegistryRepository) Delete(ctx context.Context, id, ownerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.SQLite.Delete")
	defer span.End()

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	result, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		span.RecordError(err)
		return 0, domain.StorageUnavailableError{Op: "write", Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, domain.StorageUnavailableError{Op: "write", Err: err}
	}
	if affected == 0 {
		return 0, domain.NotFoundError{Resource: "collection " + id}
	}

	return int(affected), nil
}

func (r *SQLiteRegistryRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRegistryRepository) list(ctx context.Context, q queryer) ([]diamond.CollectionRecord, error) {
	rows, err := q.QueryContext(ctx, selectCollections)
	if err != nil {
		return nil, domain.StorageUnavailableError{Op: "read", Err: err}
	}
	defer rows.Close()

	var collected []models.Collection
	for rows.Next() {
		var m models.Collection
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Name, &m.Description, &m.Link, &m.Extra, &m.Absent); err != nil {
			return nil, domain.StorageUnavailableError{Op: "read", Err: err}
		}
		collected = append(collected, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageUnavailableError{Op: "read", Err: err}
	}

	records, err := modelsToRecords(collected)
	if err != nil {
		return nil, domain.CorruptFormatError{Err: err}
	}

	return records, nil
}
