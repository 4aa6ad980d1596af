package portal

import (
	"context"
	"log/slog"
	"os"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/infra/watcher"
)

// FixtureSource serves the registry from a static JSON document.
type FixtureSource struct {
	path string
}

func NewFixtureSource(path string) *FixtureSource {
	return &FixtureSource{path: path}
}

func (s *FixtureSource) FetchAll(ctx context.Context, ownerID string) ([]diamond.CollectionRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, domain.StorageUnavailableError{Op: "read", Err: err}
	}

	records, err := domain.DecodeRecords(data)
	if err != nil {
		return nil, domain.CorruptFormatError{Err: err}
	}

	if ownerID != "" {
		records = domain.FilterOwned(records, ownerID)
	}
	return records, nil
}

// Watch calls onChange whenever the fixture file changes, until ctx is done.
func (s *FixtureSource) Watch(ctx context.Context, onChange func()) error {
	w, err := watcher.New(watcher.DefaultConfig(s.path))
	if err != nil {
		return err
	}

	changes, err := w.Start()
	if err != nil {
		w.Stop()
		return err
	}

	go func() {
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				slog.DebugContext(ctx, "fixture changed", slog.String("path", s.path), slog.String("module", "portal"))
				onChange()
			}
		}
	}()

	return nil
}
