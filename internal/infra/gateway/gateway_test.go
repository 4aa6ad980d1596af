package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/infra/cache"
)

func TestSearchEndpointsSendsQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`{"DATA":[{"id":"e1","display_name":"Lab Storage"}]}`))
	}))
	defer srv.Close()

	g := NewTransferGateway(srv.URL, "tok", nil)
	endpoints, err := g.SearchEndpoints(context.Background(), diamond.SearchQuery{
		FilterFullText: "lab",
		FilterOwnerID:  "u1",
		FilterScope:    diamond.ScopeHideNoPermissions,
		Limit:          20,
	})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(endpoints) != 1 || endpoints[0].DisplayName() != "Lab Storage" {
		t.Fatalf("unexpected endpoints %v", endpoints)
	}

	if got.URL.Path != "/endpoint_search" {
		t.Fatalf("unexpected path %s", got.URL.Path)
	}
	q := got.URL.Query()
	if q.Get("filter_fulltext") != "lab" || q.Get("filter_owner_id") != "u1" ||
		q.Get("filter_scope") != "hide-no-permissions" || q.Get("filter_non_functional") != "false" ||
		q.Get("limit") != "20" {
		t.Fatalf("unexpected query %v", q)
	}
	if got.Header.Get("Authorization") != "Bearer tok" {
		t.Fatalf("missing bearer token")
	}
	if got.Header.Get("User-Agent") != domain.UserAgent {
		t.Fatalf("unexpected user agent %q", got.Header.Get("User-Agent"))
	}
}

func TestSearchEndpointsWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"AuthenticationFailed"}`))
	}))
	defer srv.Close()

	g := NewTransferGateway(srv.URL, "", nil)
	_, err := g.SearchEndpoints(context.Background(), diamond.SearchQuery{FilterFullText: "x"})
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("expected search unavailable, got %v", err)
	}
}

func TestSearchEndpointsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewTransferGateway(srv.URL, "", nil)
	_, err := g.SearchEndpoints(context.Background(), diamond.SearchQuery{FilterFullText: "x"})
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("expected search unavailable, got %v", err)
	}
}

func TestSearchEndpointsUsesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"DATA":[]}`))
	}))
	defer srv.Close()

	g := NewTransferGateway(srv.URL, "", cache.NewMemorySearchCache(time.Minute))
	q := diamond.SearchQuery{FilterFullText: "x", Limit: 20}
	for i := 0; i < 3; i++ {
		if _, err := g.SearchEndpoints(context.Background(), q); err != nil {
			t.Fatalf("search failed: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
}

func TestListFiles(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("path")
		w.Write([]byte(`{"path":"/~/data/","DATA":[{"name":"a.txt","type":"file","size":12},{"name":"sub","type":"dir","size":0}]}`))
	}))
	defer srv.Close()

	g := NewTransferGateway(srv.URL, "", nil)
	entries, err := g.ListFiles(context.Background(), "e1", "/~/data/")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if gotPath != "/operation/endpoint/e1/ls" || gotQuery != "/~/data/" {
		t.Fatalf("unexpected request %s ?path=%s", gotPath, gotQuery)
	}
	if len(entries) != 2 || entries[0].Name != "a.txt" || entries[0].Size != 12 || entries[1].Type != "dir" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"sub":"u1","name":"Researcher"}`))
	}))
	defer srv.Close()

	g := NewIdentityGateway(srv.URL)
	user, err := g.UserInfo(context.Background(), "good")
	if err != nil || user.Sub != "u1" {
		t.Fatalf("unexpected user %+v %v", user, err)
	}

	if _, err := g.UserInfo(context.Background(), "bad"); err == nil {
		t.Fatalf("expected rejected token to fail")
	}
}
