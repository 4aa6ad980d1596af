package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/totegamma/diamond-portal"
	"github.com/totegamma/diamond-portal/internal/domain"
)

type Validation string

const (
	// ValidateNone submits the form as entered.
	ValidateNone Validation = "none"
	// ValidateStrict requires a name, an http(s) link and both context ids.
	ValidateStrict Validation = "strict"
)

// CreateForm is the user-editable part of a new record.
type CreateForm struct {
	Name        string
	Description string
	Link        string
}

// CreateContext is supplied by the caller and never edited by the user.
type CreateContext struct {
	OwnerID      string
	CollectionID string
}

// ContextFromEndpoint derives the creation context for a selected endpoint:
// the endpoint's id, owned by the current user.
func (p *Portal) ContextFromEndpoint(ep diamond.Endpoint) CreateContext {
	owner := p.opts.UserID
	if owner == "" {
		owner = ep.OwnerID()
	}
	return CreateContext{
		OwnerID:      owner,
		CollectionID: ep.ID(),
	}
}

// Create submits a new record. On success the form is cleared and the record
// joins the local snapshot; on failure the form is kept for another attempt.
func (p *Portal) Create(ctx context.Context, cctx CreateContext, form CreateForm) (diamond.CollectionRecord, error) {
	ctx, span := tracer.Start(ctx, "Portal.Create")
	defer span.End()

	p.mu.Lock()
	p.draft = form
	p.mu.Unlock()

	if p.writer == nil {
		return diamond.CollectionRecord{}, errors.New("registry source is read-only")
	}

	if err := validate(p.opts.Validation, cctx, form); err != nil {
		span.RecordError(err)
		return diamond.CollectionRecord{}, err
	}

	rec := diamond.CollectionRecord{
		ID:          cctx.CollectionID,
		OwnerID:     cctx.OwnerID,
		Name:        form.Name,
		Description: form.Description,
		Link:        form.Link,
	}

	err := p.writer.Append(ctx, rec)
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(
			ctx, "failed to create record",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()),
			slog.String("module", "portal"),
		)
		return diamond.CollectionRecord{}, err
	}

	p.mu.Lock()
	p.draft = CreateForm{}
	p.records = append(p.records, rec)
	p.local = FilterRecords(p.records, p.keyword, p.opts.UserID, FilterOptions{OwnerScoped: p.ownerScoped()})
	res := p.resultsLocked()
	p.mu.Unlock()

	p.notify(res)
	return rec, nil
}

// Draft returns the form input retained from the last failed Create.
func (p *Portal) Draft() CreateForm {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

func validate(policy Validation, cctx CreateContext, form CreateForm) error {
	if policy != ValidateStrict {
		return nil
	}

	switch {
	case cctx.OwnerID == "":
		return domain.InvalidRecordError{Reason: "owner_id is required"}
	case cctx.CollectionID == "":
		return domain.InvalidRecordError{Reason: "collection id is required"}
	case form.Name == "":
		return domain.InvalidRecordError{Reason: "name is required"}
	case form.Link == "":
		return domain.InvalidRecordError{Reason: "link is required"}
	case !diamond.IsLinkQuery(form.Link):
		return domain.InvalidRecordError{Reason: "link must be an http or https URL"}
	}

	if u, err := url.Parse(form.Link); err != nil || u.Host == "" {
		return domain.InvalidRecordError{Reason: "link is not a valid URL"}
	}

	return nil
}
