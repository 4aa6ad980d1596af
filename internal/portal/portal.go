package portal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

var tracer = otel.Tracer("portal")

type Mode string

const (
	// ModeManage shows the current user's own collections and searches their endpoints.
	ModeManage Mode = "manage"
	// ModeSearch matches every registry record and searches all visible endpoints.
	ModeSearch Mode = "search"
)

const (
	DefaultThrottle = 500 * time.Millisecond
	DefaultLimit    = 20
)

type Options struct {
	Mode       Mode
	UserID     string
	Scope      string
	Throttle   time.Duration
	Limit      int
	Validation Validation

	OnSelect func(diamond.Endpoint)
	OnUpdate func(Results)
}

// Results is what the portal currently shows for its keyword.
type Results struct {
	Keyword string
	Local   []diamond.CollectionRecord
	Remote  []diamond.Endpoint
	Pending bool
}

// searchRequest runs after the throttle window, so ctx keeps the caller's
// values but not its cancellation.
type searchRequest struct {
	ctx     context.Context
	id      string
	keyword string
	scope   string
}

// Portal reconciles the registry snapshot with live endpoint search results
// for one user and one keyword at a time.
type Portal struct {
	source   DataSource
	writer   RecordWriter
	searcher EndpointSearcher
	opts     Options
	throttle *Throttle[searchRequest]

	mu       sync.Mutex
	records  []diamond.CollectionRecord
	keyword  string
	scope    string
	local    []diamond.CollectionRecord
	remote   []diamond.Endpoint
	pending  bool
	selected diamond.Endpoint
	draft    CreateForm
}

// New creates a portal. writer may be nil for read-only sources.
func New(source DataSource, writer RecordWriter, searcher EndpointSearcher, opts Options) *Portal {
	if opts.Mode == "" {
		opts.Mode = ModeManage
	}
	if opts.Scope == "" {
		opts.Scope = diamond.ScopeHideNoPermissions
	}
	if opts.Throttle <= 0 {
		opts.Throttle = DefaultThrottle
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	p := &Portal{
		source:   source,
		writer:   writer,
		searcher: searcher,
		opts:     opts,
		scope:    opts.Scope,
		records:  []diamond.CollectionRecord{},
		local:    []diamond.CollectionRecord{},
		remote:   []diamond.Endpoint{},
	}
	p.throttle = NewThrottle(opts.Throttle, p.dispatch)
	return p
}

func (p *Portal) ownerScoped() bool {
	return p.opts.Mode == ModeManage
}

// Load replaces the registry snapshot. On failure the previous snapshot is kept.
func (p *Portal) Load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Portal.Load")
	defer span.End()

	owner := ""
	if p.ownerScoped() {
		owner = p.opts.UserID
	}

	records, err := p.source.FetchAll(ctx, owner)
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(
			ctx, "failed to load registry",
			slog.String("error", err.Error()),
			slog.String("module", "portal"),
		)
		return err
	}

	p.mu.Lock()
	p.records = records
	p.local = FilterRecords(p.records, p.keyword, p.opts.UserID, FilterOptions{OwnerScoped: p.ownerScoped()})
	res := p.resultsLocked()
	p.mu.Unlock()

	p.notify(res)
	return nil
}

// SetKeyword recomputes the local matches right away and schedules a remote
// search through the throttle.
func (p *Portal) SetKeyword(ctx context.Context, keyword string) {
	p.mu.Lock()
	p.keyword = keyword
	p.local = FilterRecords(p.records, keyword, p.opts.UserID, FilterOptions{OwnerScoped: p.ownerScoped()})
	if keyword == "" {
		p.remote = []diamond.Endpoint{}
		p.pending = false
	} else {
		p.pending = true
	}
	scope := p.scope
	res := p.resultsLocked()
	p.mu.Unlock()

	p.notify(res)

	if keyword != "" {
		p.throttle.Call(searchRequest{ctx: context.WithoutCancel(ctx), id: uuid.NewString(), keyword: keyword, scope: scope})
	}
}

// SetScope switches between ScopeAll and ScopeHideNoPermissions and searches again.
func (p *Portal) SetScope(ctx context.Context, scope string) {
	p.mu.Lock()
	p.scope = scope
	keyword := p.keyword
	if keyword != "" {
		p.pending = true
	}
	p.mu.Unlock()

	if keyword != "" {
		p.throttle.Call(searchRequest{ctx: context.WithoutCancel(ctx), id: uuid.NewString(), keyword: keyword, scope: scope})
	}
}

func (p *Portal) Scope() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scope
}

func (p *Portal) Results() Results {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resultsLocked()
}

func (p *Portal) resultsLocked() Results {
	local := make([]diamond.CollectionRecord, len(p.local))
	copy(local, p.local)
	remote := make([]diamond.Endpoint, len(p.remote))
	copy(remote, p.remote)
	return Results{
		Keyword: p.keyword,
		Local:   local,
		Remote:  remote,
		Pending: p.pending,
	}
}

// Select hands an endpoint to the selection callback, whichever list it came from.
func (p *Portal) Select(ep diamond.Endpoint) {
	p.mu.Lock()
	p.selected = ep
	p.mu.Unlock()

	if p.opts.OnSelect != nil {
		p.opts.OnSelect(ep)
	}
}

func (p *Portal) SelectRecord(rec diamond.CollectionRecord) {
	p.Select(rec.Endpoint())
}

func (p *Portal) Selected() diamond.Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Delete removes the current user's records with id from the registry and
// from the local snapshot.
func (p *Portal) Delete(ctx context.Context, id string) error {
	if p.writer == nil {
		return errors.New("registry source is read-only")
	}

	err := p.writer.Delete(ctx, id, p.opts.UserID)
	if err != nil {
		slog.ErrorContext(
			ctx, "failed to delete record",
			slog.String("id", id),
			slog.String("error", err.Error()),
			slog.String("module", "portal"),
		)
		return err
	}

	p.mu.Lock()
	p.records, _ = domain.RemoveRecords(p.records, id, p.opts.UserID)
	p.local = FilterRecords(p.records, p.keyword, p.opts.UserID, FilterOptions{OwnerScoped: p.ownerScoped()})
	res := p.resultsLocked()
	p.mu.Unlock()

	p.notify(res)
	return nil
}

// Close drops any pending search.
func (p *Portal) Close() {
	p.throttle.Stop()
}

func (p *Portal) dispatch(req searchRequest) {
	query := diamond.SearchQuery{
		FilterFullText:      diamond.NormalizeKeyword(req.keyword),
		FilterScope:         req.scope,
		FilterNonFunctional: false,
		Limit:               p.opts.Limit,
	}
	if p.ownerScoped() {
		query.FilterOwnerID = p.opts.UserID
	}

	go p.search(req, query)
}

func (p *Portal) search(req searchRequest, query diamond.SearchQuery) {
	ctx, span := tracer.Start(req.ctx, "Portal.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("DispatchID", req.id),
		attribute.String("Keyword", req.keyword),
	)

	endpoints, err := p.searcher.SearchEndpoints(ctx, query)
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(
			ctx, "endpoint search failed",
			slog.String("dispatch", req.id),
			slog.String("error", err.Error()),
			slog.String("module", "portal"),
		)
		endpoints = []diamond.Endpoint{}
	}
	if endpoints == nil {
		endpoints = []diamond.Endpoint{}
	}

	p.mu.Lock()
	if req.keyword != p.keyword || req.scope != p.scope {
		p.mu.Unlock()
		slog.DebugContext(
			ctx, "discarding stale search response",
			slog.String("dispatch", req.id),
			slog.String("keyword", req.keyword),
			slog.String("module", "portal"),
		)
		return
	}
	p.remote = endpoints
	p.pending = false
	res := p.resultsLocked()
	p.mu.Unlock()

	p.notify(res)
}

func (p *Portal) notify(res Results) {
	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(res)
	}
}
