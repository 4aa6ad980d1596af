package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/patrickmn/go-cache"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/present/rest/presenter"
)

const (
	defaultTimeout = 3 * time.Second
)

type snapshot struct {
	etag    string
	records []diamond.CollectionRecord
}

// Client talks to a registry store over HTTP. Listings are cached by ETag,
// so an unchanged registry costs one 304 round trip.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	baseURL   string
	token     string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: domain.UserAgent,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
	httpClient.Transport = c
	return c
}

// WithToken makes the client authenticate as the bearer of token.
func (c *Client) WithToken(token string) *Client {
	c.token = token
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return http.DefaultTransport.RoundTrip(req)
}

// FetchAll returns the registry, or only ownerID's records when ownerID is set.
func (c *Client) FetchAll(ctx context.Context, ownerID string) ([]diamond.CollectionRecord, error) {
	target := c.baseURL + "/data"
	if ownerID != "" {
		target += "?" + url.Values{domain.OwnerIDQueryParam: {ownerID}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	cached, hit := c.cache.Get(target)
	if hit {
		req.Header.Set("If-None-Match", cached.(snapshot).etag)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.StorageUnavailableError{Op: "read", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && hit {
		return copyRecords(cached.(snapshot).records), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "read")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.StorageUnavailableError{Op: "read", Err: err}
	}

	records, err := domain.DecodeRecords(body)
	if err != nil {
		return nil, domain.CorruptFormatError{Err: err}
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		c.cache.Set(target, snapshot{etag: etag, records: copyRecords(records)}, cache.DefaultExpiration)
	}

	return records, nil
}

func (c *Client) Append(ctx context.Context, rec diamond.CollectionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return domain.InvalidRecordError{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/data", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.StorageUnavailableError{Op: "write", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "write")
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, id, ownerID string) error {
	target := c.baseURL + "/data/" + url.PathEscape(id) + "?" + url.Values{domain.OwnerIDQueryParam: {ownerID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.StorageUnavailableError{Op: "write", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "write")
	}
	return nil
}

// Subscribe streams registry events to fn until ctx is done or the
// connection drops.
func (c *Client) Subscribe(ctx context.Context, ownerID string, fn func(domain.RegistryEvent)) error {
	u, err := url.Parse(c.baseURL + "/realtime")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if ownerID != "" {
		u.RawQuery = url.Values{domain.OwnerIDQueryParam: {ownerID}}.Encode()
	}

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("failed to connect realtime: %w", err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var event domain.RegistryEvent
		err := conn.ReadJSON(&event)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.DebugContext(
				ctx, "realtime connection closed",
				slog.String("error", err.Error()),
				slog.String("module", "client"),
			)
			return err
		}
		fn(event)
	}
}

func statusError(resp *http.Response, op string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(raw))

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		message = envelope.Error
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return domain.InvalidRecordError{Reason: message}
	case http.StatusNotFound:
		return domain.NotFoundError{Resource: message}
	case http.StatusConflict, http.StatusPreconditionFailed:
		return domain.ConflictError{Reason: message}
	case http.StatusInternalServerError:
		switch message {
		case presenter.MessageCorrupt:
			return domain.CorruptFormatError{Err: fmt.Errorf("%s", message)}
		case presenter.MessageWriteFailed:
			return domain.StorageUnavailableError{Op: "write", Err: fmt.Errorf("%s", message)}
		case presenter.MessageReadFailed:
			return domain.StorageUnavailableError{Op: "read", Err: fmt.Errorf("%s", message)}
		}
	}
	return domain.StorageUnavailableError{Op: op, Err: fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, message)}
}

func copyRecords(records []diamond.CollectionRecord) []diamond.CollectionRecord {
	out := make([]diamond.CollectionRecord, len(records))
	copy(out, records)
	return out
}
