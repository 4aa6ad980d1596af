package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/infra/database"
	"github.com/totegamma/diamond-portal/internal/usecase"
)

type fakeS3 struct {
	mu        sync.Mutex
	body      []byte
	exists    bool
	etagSeq   int
	beforePut func()
	puts      int
}

func (f *fakeS3) etag() string {
	return strconv.Quote(strconv.Itoa(f.etagSeq))
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(f.body)),
		ETag: aws.String(f.etag()),
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.beforePut != nil {
		hook := f.beforePut
		f.beforePut = nil
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++

	if params.IfNoneMatch != nil && f.exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "object exists"}
	}
	if params.IfMatch != nil && (!f.exists || aws.ToString(params.IfMatch) != f.etag()) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "etag mismatch"}
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	f.exists = true
	f.etagSeq++
	return &s3.PutObjectOutput{ETag: aws.String(f.etag())}, nil
}

type backend struct {
	name string
	open func(t *testing.T) usecase.RegistryRepository
}

func backends() []backend {
	return []backend{
		{"file", func(t *testing.T) usecase.RegistryRepository {
			repo, err := NewFileRegistryRepository(filepath.Join(t.TempDir(), "mockdb.json"))
			if err != nil {
				t.Fatalf("open file repo: %v", err)
			}
			return repo
		}},
		{"memory", func(t *testing.T) usecase.RegistryRepository {
			return NewMemoryRegistryRepository()
		}},
		{"sqlite", func(t *testing.T) usecase.RegistryRepository {
			db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "registry.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			return NewSQLiteRegistryRepository(db)
		}},
		{"s3", func(t *testing.T) usecase.RegistryRepository {
			return NewS3RegistryRepository(&fakeS3{}, "bucket", "registry.json")
		}},
	}
}

func TestRegistryRepositoryContract(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			repo := b.open(t)
			defer repo.Close()

			snapshot, err := repo.List(ctx)
			if err != nil {
				t.Fatalf("list empty failed: %v", err)
			}
			if len(snapshot.Records) != 0 {
				t.Fatalf("expected empty registry, got %+v", snapshot.Records)
			}

			first := diamond.CollectionRecord{ID: "c1", OwnerID: "u1", Name: "Alpha", Link: "https://a.example/x"}
			second := diamond.CollectionRecord{
				ID:      "c2",
				OwnerID: "u2",
				Name:    "Beta",
				Extra:   map[string]any{"tags": []any{"x"}, "size": "10"},
			}

			v1, err := repo.Append(ctx, first, domain.AppendCondition{})
			if err != nil {
				t.Fatalf("append first failed: %v", err)
			}
			if _, err := repo.Append(ctx, second, domain.AppendCondition{}); err != nil {
				t.Fatalf("append second failed: %v", err)
			}

			snapshot, err = repo.List(ctx)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(snapshot.Records) != 2 {
				t.Fatalf("expected 2 records, got %d", len(snapshot.Records))
			}
			if snapshot.Records[0].ID != "c1" || snapshot.Records[1].ID != "c2" {
				t.Fatalf("insertion order lost: %+v", snapshot.Records)
			}
			if snapshot.Records[1].Extra["size"] != "10" {
				t.Fatalf("extra fields lost: %+v", snapshot.Records[1].Extra)
			}
			if snapshot.Version != domain.VersionOf(snapshot.Records) {
				t.Fatalf("snapshot version does not describe its records")
			}

			if _, err := repo.Append(ctx, diamond.CollectionRecord{ID: "c3"}, domain.AppendCondition{IfVersion: v1}); !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("expected conflict for stale version, got %v", err)
			}
			if _, err := repo.Append(ctx, first, domain.AppendCondition{UniqueIDs: true}); !errors.Is(err, domain.ErrConflict) {
				t.Fatalf("expected duplicate conflict, got %v", err)
			}

			if _, err := repo.Delete(ctx, "c1", "someone-else"); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
			removed, err := repo.Delete(ctx, "c1", "u1")
			if err != nil || removed != 1 {
				t.Fatalf("expected 1 removed, got %d %v", removed, err)
			}

			snapshot, _ = repo.List(ctx)
			if len(snapshot.Records) != 1 || snapshot.Records[0].ID != "c2" {
				t.Fatalf("unexpected registry after delete: %+v", snapshot.Records)
			}
		})
	}
}

func TestRegistryRepositoryConcurrentAppends(t *testing.T) {
	for _, b := range backends() {
		if b.name == "s3" {
			// the fake serializes puts but cannot reproduce real interleavings
			continue
		}
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			repo := b.open(t)
			defer repo.Close()

			const writers = 16
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := repo.Append(ctx, diamond.CollectionRecord{ID: fmt.Sprintf("c%d", i), OwnerID: "u"}, domain.AppendCondition{})
					if err != nil {
						t.Errorf("append %d failed: %v", i, err)
					}
				}(i)
			}
			wg.Wait()

			snapshot, err := repo.List(ctx)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if len(snapshot.Records) != writers {
				t.Fatalf("expected %d records, got %d", writers, len(snapshot.Records))
			}

			seen := map[string]bool{}
			for _, rec := range snapshot.Records {
				seen[rec.ID] = true
			}
			if len(seen) != writers {
				t.Fatalf("lost appends: %v", seen)
			}
		})
	}
}

func TestRegistryRepositoryKeepsPartialRecords(t *testing.T) {
	input := `{"id":"c1","owner_id":"u1","tags":[1,2]}`

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			repo := b.open(t)
			defer repo.Close()

			var rec diamond.CollectionRecord
			if err := json.Unmarshal([]byte(input), &rec); err != nil {
				t.Fatal(err)
			}
			if _, err := repo.Append(ctx, rec, domain.AppendCondition{}); err != nil {
				t.Fatalf("append failed: %v", err)
			}

			snapshot, err := repo.List(ctx)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			out, _ := json.Marshal(snapshot.Records[0])
			if string(out) != input {
				t.Fatalf("got %s want %s", out, input)
			}
		})
	}
}

func TestS3RegistryRepositoryRetriesOnPreconditionFailure(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	repo := NewS3RegistryRepository(fake, "bucket", "registry.json")

	if _, err := repo.Append(ctx, diamond.CollectionRecord{ID: "c1"}, domain.AppendCondition{}); err != nil {
		t.Fatalf("seed append failed: %v", err)
	}

	// another writer slips in between our read and our write
	fake.beforePut = func() {
		other := NewS3RegistryRepository(fake, "bucket", "registry.json")
		if _, err := other.Append(ctx, diamond.CollectionRecord{ID: "c-other"}, domain.AppendCondition{}); err != nil {
			t.Errorf("concurrent append failed: %v", err)
		}
	}

	if _, err := repo.Append(ctx, diamond.CollectionRecord{ID: "c2"}, domain.AppendCondition{}); err != nil {
		t.Fatalf("append with retry failed: %v", err)
	}

	snapshot, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(snapshot.Records) != 3 {
		t.Fatalf("expected 3 records, got %+v", snapshot.Records)
	}
	if snapshot.Records[1].ID != "c-other" || snapshot.Records[2].ID != "c2" {
		t.Fatalf("unexpected order %+v", snapshot.Records)
	}
}

func TestS3RegistryRepositoryCorruptObject(t *testing.T) {
	fake := &fakeS3{body: []byte(`{"not":"an array"}`), exists: true}
	repo := NewS3RegistryRepository(fake, "bucket", "registry.json")

	if _, err := repo.List(context.Background()); !errors.Is(err, domain.ErrCorruptFormat) {
		t.Fatalf("expected corrupt format, got %v", err)
	}
}
