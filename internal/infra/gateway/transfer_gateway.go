package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

var tracer = otel.Tracer("gateway")

const defaultTimeout = 10 * time.Second

// SearchCache memoizes endpoint search results.
type SearchCache interface {
	Get(ctx context.Context, q diamond.SearchQuery) ([]diamond.Endpoint, bool)
	Set(ctx context.Context, q diamond.SearchQuery, endpoints []diamond.Endpoint)
}

// TransferGateway talks to the transfer service REST API for endpoint search
// and directory listing.
type TransferGateway struct {
	client  *http.Client
	baseURL string
	token   string
	cache   SearchCache
}

// NewTransferGateway creates a gateway. cache may be nil.
func NewTransferGateway(baseURL, token string, cache SearchCache) *TransferGateway {
	g := &TransferGateway{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
		token:   token,
		cache:   cache,
	}
	g.client.Transport = g
	return g
}

func (g *TransferGateway) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", domain.UserAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// SearchEndpoints runs an endpoint search. Any transport failure, non-200
// status or response without a DATA envelope is a SearchUnavailableError.
func (g *TransferGateway) SearchEndpoints(ctx context.Context, q diamond.SearchQuery) ([]diamond.Endpoint, error) {
	ctx, span := tracer.Start(ctx, "Transfer.Gateway.SearchEndpoints")
	defer span.End()
	span.SetAttributes(attribute.String("Keyword", q.FilterFullText))

	if g.cache != nil {
		if cached, found := g.cache.Get(ctx, q); found {
			span.SetAttributes(attribute.Bool("CacheHit", true))
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("filter_fulltext", q.FilterFullText)
	params.Set("filter_scope", q.FilterScope)
	params.Set("filter_non_functional", strconv.FormatBool(q.FilterNonFunctional))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.FilterOwnerID != "" {
		params.Set("filter_owner_id", q.FilterOwnerID)
	}

	var envelope map[string]json.RawMessage
	err := g.get(ctx, "/endpoint_search?"+params.Encode(), &envelope)
	if err != nil {
		span.RecordError(err)
		return nil, domain.SearchUnavailableError{Reason: err.Error()}
	}

	raw, ok := envelope["DATA"]
	if !ok {
		err := domain.SearchUnavailableError{Reason: "response has no DATA envelope"}
		span.RecordError(err)
		return nil, err
	}

	endpoints := []diamond.Endpoint{}
	if err := json.Unmarshal(raw, &endpoints); err != nil {
		span.RecordError(err)
		return nil, domain.SearchUnavailableError{Reason: fmt.Sprintf("malformed DATA envelope: %v", err)}
	}
	if endpoints == nil {
		endpoints = []diamond.Endpoint{}
	}

	if g.cache != nil {
		g.cache.Set(ctx, q, endpoints)
	}

	return endpoints, nil
}

// ListFiles lists a directory of a collection.
func (g *TransferGateway) ListFiles(ctx context.Context, collectionID, path string) ([]diamond.FileEntry, error) {
	ctx, span := tracer.Start(ctx, "Transfer.Gateway.ListFiles")
	defer span.End()

	if collectionID == "" {
		return nil, domain.InvalidRecordError{Reason: "collection id is required"}
	}

	endpoint := "/operation/endpoint/" + url.PathEscape(collectionID) + "/ls"
	if path != "" {
		endpoint += "?path=" + url.QueryEscape(path)
	}

	var listing diamond.DirectoryListing
	err := g.get(ctx, endpoint, &listing)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if listing.Data == nil {
		listing.Data = []diamond.FileEntry{}
	}
	return listing.Data, nil
}

func (g *TransferGateway) get(ctx context.Context, path string, response any) error {
	target := g.baseURL + path
	slog.DebugContext(ctx, "transfer request", slog.String("url", target), slog.String("module", "gateway"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
