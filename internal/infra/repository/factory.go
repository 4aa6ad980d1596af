package repository

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/totegamma/diamond-portal/internal/config"
	"github.com/totegamma/diamond-portal/internal/infra/database"
	"github.com/totegamma/diamond-portal/internal/usecase"
)

var tracer = otel.Tracer("repository")

var (
	_ usecase.RegistryRepository = (*FileRegistryRepository)(nil)
	_ usecase.RegistryRepository = (*MemoryRegistryRepository)(nil)
	_ usecase.RegistryRepository = (*PostgresRegistryRepository)(nil)
	_ usecase.RegistryRepository = (*SQLiteRegistryRepository)(nil)
	_ usecase.RegistryRepository = (*S3RegistryRepository)(nil)
)

// NewRegistryRepositoryFromConfig creates the registry backend named by cfg.Type.
func NewRegistryRepositoryFromConfig(ctx context.Context, cfg config.Store) (usecase.RegistryRepository, error) {
	switch cfg.Type {
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for file store")
		}
		return NewFileRegistryRepository(cfg.Path)
	case "memory":
		return NewMemoryRegistryRepository(), nil
	case "postgres":
		db, err := database.NewPostgres(cfg.PostgresDsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := database.MigratePostgres(db); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		return NewPostgresRegistryRepository(db), nil
	case "sqlite":
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteRegistryRepository(db), nil
	case "s3":
		client, err := database.NewS3(ctx, cfg.S3Region, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to configure s3: %w", err)
		}
		return NewS3RegistryRepository(client, cfg.S3Bucket, cfg.S3Key), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
