package portal

import (
	"context"

	"github.com/totegamma/diamond-portal"
)

// DataSource yields the registry snapshot. ownerID narrows it when set.
type DataSource interface {
	FetchAll(ctx context.Context, ownerID string) ([]diamond.CollectionRecord, error)
}

type RecordWriter interface {
	Append(ctx context.Context, rec diamond.CollectionRecord) error
	Delete(ctx context.Context, id, ownerID string) error
}

type EndpointSearcher interface {
	SearchEndpoints(ctx context.Context, q diamond.SearchQuery) ([]diamond.Endpoint, error)
}

type FileLister interface {
	ListFiles(ctx context.Context, collectionID, path string) ([]diamond.FileEntry, error)
}
