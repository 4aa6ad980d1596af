package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

// S3API is the subset of the S3 client the registry uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

const s3MaxAttempts = 3

// S3RegistryRepository keeps the registry document as a single object.
// Writes are conditional on the ETag that was read, so concurrent writers on
// different hosts never overwrite each other.
type S3RegistryRepository struct {
	client S3API
	bucket string
	key    string
}

func NewS3RegistryRepository(client S3API, bucket, key string) *S3RegistryRepository {
	return &S3RegistryRepository{
		client: client,
		bucket: bucket,
		key:    key,
	}
}

func (r *S3RegistryRepository) List(ctx context.Context) (domain.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.S3.List")
	defer span.End()

	records, _, err := r.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, err
	}

	return domain.Snapshot{Records: records, Version: domain.VersionOf(records)}, nil
}

func (r *S3RegistryRepository) Append(ctx context.Context, rec diamond.CollectionRecord, cond domain.AppendCondition) (string, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.S3.Append")
	defer span.End()

	for attempt := 1; attempt <= s3MaxAttempts; attempt++ {
		records, etag, err := r.fetch(ctx)
		if err != nil {
			span.RecordError(err)
			return "", err
		}

		if err := domain.CheckAppend(records, rec, cond); err != nil {
			return "", err
		}

		records = append(records, rec)
		err = r.put(ctx, records, etag)
		if err == nil {
			return domain.VersionOf(records), nil
		}
		if !isPreconditionFailed(err) {
			span.RecordError(err)
			return "", err
		}

		slog.DebugContext(
			ctx, "registry object changed during append, retrying",
			slog.Int("attempt", attempt),
			slog.String("module", "repository"),
		)
	}

	return "", domain.ConflictError{Reason: fmt.Sprintf("registry object kept changing after %d attempts", s3MaxAttempts)}
}

func (r *S3RegistryRepository) Delete(ctx context.Context, id, ownerID string) (int, error) {
	ctx, span := tracer.Start(ctx, "Registry.Repository.S3.Delete")
	defer span.End()

	for attempt := 1; attempt <= s3MaxAttempts; attempt++ {
		records, etag, err := r.fetch(ctx)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}

		kept, removed := domain.RemoveRecords(records, id, ownerID)
		if removed == 0 {
			return 0, domain.NotFoundError{Resource: "collection " + id}
		}

		err = r.put(ctx, kept, etag)
		if err == nil {
			return removed, nil
		}
		if !isPreconditionFailed(err) {
			span.RecordError(err)
			return 0, err
		}
	}

	return 0, domain.ConflictError{Reason: fmt.Sprintf("registry object kept changing after %d attempts", s3MaxAttempts)}
}

func (r *S3RegistryRepository) Close() error {
	return nil
}

// fetch returns the records and the object's ETag. A missing object is an empty
// registry with an empty ETag.
func (r *S3RegistryRepository) fetch(ctx context.Context) ([]diamond.CollectionRecord, string, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return []diamond.CollectionRecord{}, "", nil
		}
		return nil, "", domain.StorageUnavailableError{Op: "read", Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", domain.StorageUnavailableError{Op: "read", Err: err}
	}

	records, err := domain.DecodeRecords(data)
	if err != nil {
		return nil, "", domain.CorruptFormatError{Err: err}
	}

	return records, aws.ToString(out.ETag), nil
}

func (r *S3RegistryRepository) put(ctx context.Context, records []diamond.CollectionRecord, etag string) error {
	data, err := domain.EncodeRecords(records)
	if err != nil {
		return domain.StorageUnavailableError{Op: "write", Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if etag == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(etag)
	}

	_, err = r.client.PutObject(ctx, input)
	if err != nil {
		if isPreconditionFailed(err) {
			return err
		}
		return domain.StorageUnavailableError{Op: "write", Err: err}
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}
