package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/infra/repository"
	"github.com/totegamma/diamond-portal/internal/present/rest"
	"github.com/totegamma/diamond-portal/internal/usecase"
)

func newRegistryServer(t *testing.T, repo usecase.RegistryRepository) (*httptest.Server, *int32) {
	t.Helper()

	e := echo.New()
	rest.NewHandler(domain.Config{}, usecase.NewRegistryUsecase(repo, nil, false), nil).RegisterRoutes(e)

	var notModified int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != domain.UserAgent {
			t.Errorf("unexpected user agent %q", r.UserAgent())
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, r)
		if rec.Code == http.StatusNotModified {
			atomic.AddInt32(&notModified, 1)
		}
		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		w.Write(rec.Body.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv, &notModified
}

func TestClientRoundTrip(t *testing.T) {
	srv, notModified := newRegistryServer(t, repository.NewMemoryRegistryRepository())
	c := New(srv.URL)
	ctx := context.Background()

	records, err := c.FetchAll(ctx, "")
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty registry, got %v %v", records, err)
	}

	rec := diamond.CollectionRecord{ID: "c1", OwnerID: "u1", Name: "n", Extra: map[string]any{"note": "kept"}}
	if err := c.Append(ctx, rec); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := c.Append(ctx, diamond.CollectionRecord{ID: "c2", OwnerID: "u2"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	records, err = c.FetchAll(ctx, "")
	if err != nil || len(records) != 2 {
		t.Fatalf("expected 2 records, got %v %v", records, err)
	}
	if records[0].Extra["note"] != "kept" {
		t.Fatalf("extra field lost: %+v", records[0])
	}

	owned, err := c.FetchAll(ctx, "u2")
	if err != nil || len(owned) != 1 || owned[0].ID != "c2" {
		t.Fatalf("unexpected owned records %v %v", owned, err)
	}

	again, err := c.FetchAll(ctx, "")
	if err != nil || len(again) != 2 {
		t.Fatalf("unexpected cached records %v %v", again, err)
	}
	if atomic.LoadInt32(notModified) != 1 {
		t.Fatalf("expected the unchanged listing to be revalidated, got %d 304s", *notModified)
	}

	if err := c.Delete(ctx, "c1", "u1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := c.Delete(ctx, "c1", "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	records, _ = c.FetchAll(ctx, "")
	if len(records) != 1 || records[0].ID != "c2" {
		t.Fatalf("unexpected records after delete %+v", records)
	}
}

func TestClientMapsStorageErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mockdb.json")
	repo, err := repository.NewFileRegistryRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := newRegistryServer(t, repo)
	c := New(srv.URL)

	os.WriteFile(path, []byte("{not json"), 0644)

	if _, err := c.FetchAll(context.Background(), ""); !errors.Is(err, domain.ErrCorruptFormat) {
		t.Fatalf("expected corrupt format, got %v", err)
	}
	if err := c.Append(context.Background(), diamond.CollectionRecord{ID: "c1"}); !errors.Is(err, domain.ErrCorruptFormat) {
		t.Fatalf("expected corrupt format, got %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1")

	_, err := c.FetchAll(context.Background(), "")
	var unavailable domain.StorageUnavailableError
	if !errors.As(err, &unavailable) || unavailable.Op != "read" {
		t.Fatalf("expected read unavailable, got %v", err)
	}

	err = c.Append(context.Background(), diamond.CollectionRecord{})
	if !errors.As(err, &unavailable) || unavailable.Op != "write" {
		t.Fatalf("expected write unavailable, got %v", err)
	}
}

func TestClientSendsToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := New(srv.URL).WithToken("tok-u1")
	if _, err := c.FetchAll(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if got != "Bearer tok-u1" {
		t.Fatalf("unexpected authorization header %q", got)
	}
}

type fakeEventStream struct {
	events  chan domain.RegistryEvent
	stopped chan struct{}
}

func (f *fakeEventStream) Realtime(ctx context.Context, output chan<- domain.RegistryEvent) {
	defer close(f.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-f.events:
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func TestClientSubscribeReceivesOwnedEvents(t *testing.T) {
	stream := &fakeEventStream{
		events:  make(chan domain.RegistryEvent),
		stopped: make(chan struct{}),
	}

	e := echo.New()
	uc := usecase.NewRegistryUsecase(repository.NewMemoryRegistryRepository(), nil, false)
	rest.NewHandler(domain.Config{}, uc, stream).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan domain.RegistryEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- New(srv.URL).Subscribe(ctx, "u1", func(event domain.RegistryEvent) {
			received <- event
		})
	}()

	// each send completes only once the server side is forwarding
	stream.events <- domain.RegistryEvent{Type: domain.EventAppend, ID: "c0", OwnerID: "u2"}
	stream.events <- domain.RegistryEvent{Type: domain.EventAppend, ID: "c1", OwnerID: "u1"}

	select {
	case event := <-received:
		if event.ID != "c1" || event.OwnerID != "u1" || event.Type != domain.EventAppend {
			t.Fatalf("expected the owned event first, got %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected a clean return after cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}

	select {
	case <-stream.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("server side stream was not released")
	}

	select {
	case event := <-received:
		t.Fatalf("unexpected extra event %+v", event)
	default:
	}
}

func TestClientSubscribeWithoutRealtime(t *testing.T) {
	e := echo.New()
	uc := usecase.NewRegistryUsecase(repository.NewMemoryRegistryRepository(), nil, false)
	rest.NewHandler(domain.Config{}, uc, nil).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	err := New(srv.URL).Subscribe(context.Background(), "", func(domain.RegistryEvent) {})
	if err == nil {
		t.Fatal("expected an error when realtime is not configured")
	}
}
