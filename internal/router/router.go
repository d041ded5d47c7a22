// Package router dispatches entity CRUD operations to the primary or
// secondary store and normalizes both paths into the uniform result envelope.
// It is the containment boundary: no error raised beneath it ever reaches the
// caller as anything but a failed envelope.
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/crmbridge/internal/docstore"
	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/internal/observability/metrics"
	"github.com/yourorg/crmbridge/internal/transform"
)

// Backend identifies which store serves an entity.
type Backend string

const (
	BackendPrimary   Backend = "primary"
	BackendSecondary Backend = "secondary"
)

// Routes maps entity names to backends. Entities not listed route to the
// primary store. Adding a backend for an entity is a one-line table edit.
type Routes map[string]Backend

// DefaultRoutes returns the shipped routing table.
func DefaultRoutes() Routes {
	return Routes{
		"client": BackendSecondary,
		"ticket": BackendSecondary,
	}
}

// PrimaryStore is the generic CRUD client for the primary backend.
type PrimaryStore interface {
	List(ctx context.Context, entity string, opts domain.ListOptions) (domain.Envelope, error)
	Read(ctx context.Context, entity, id string) (domain.Envelope, error)
	Create(ctx context.Context, entity string, data domain.Record) (domain.Envelope, error)
	Update(ctx context.Context, entity, id string, data domain.Record) (domain.Envelope, error)
	Delete(ctx context.Context, entity, id string) (domain.Envelope, error)
	Search(ctx context.Context, entity string, opts domain.SearchOptions) (domain.Envelope, error)
	Filter(ctx context.Context, entity string, opts domain.FilterOptions) (domain.Envelope, error)
}

// SecondaryStore is the slice of the document store client the router uses.
type SecondaryStore interface {
	ListDocuments(ctx context.Context, collectionID string, queries []docstore.Query) (*docstore.DocumentList, error)
	CreateDocument(ctx context.Context, collectionID, documentID string, data map[string]any) (domain.Document, error)
	GetDocument(ctx context.Context, collectionID, documentID string) (domain.Document, error)
	UpdateDocument(ctx context.Context, collectionID, documentID string, data map[string]any) (domain.Document, error)
	DeleteDocument(ctx context.Context, collectionID, documentID string) error
}

// AuthGuard ensures a secondary-store session before an operation.
type AuthGuard interface {
	EnsureAuth(ctx context.Context) error
}

// CollectionResolver resolves a logical entity name to a collection id.
type CollectionResolver interface {
	Resolve(ctx context.Context, logicalName string) (string, error)
}

// Router routes CRUD verbs by entity name.
type Router struct {
	routes       Routes
	primary      PrimaryStore
	secondary    SecondaryStore
	guard        AuthGuard
	resolver     CollectionResolver
	transformers map[string]transform.Transformer
	defaultItems int
	searchItems  int
	logger       *slog.Logger
}

// Options configures a Router.
type Options struct {
	Routes       Routes
	Primary      PrimaryStore
	Secondary    SecondaryStore
	Guard        AuthGuard
	Resolver     CollectionResolver
	Transformers map[string]transform.Transformer
	Piggybacks   map[string]Piggyback
	DefaultItems int
	SearchItems  int
	Logger       *slog.Logger
}

// New creates an entity router
func New(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	routes := opts.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}
	transformers := opts.Transformers
	if transformers == nil {
		transformers = map[string]transform.Transformer{
			"client": transform.Customer{},
			"ticket": transform.Ticket{},
		}
	}
	piggybacks := opts.Piggybacks
	if piggybacks == nil {
		piggybacks = DefaultPiggybacks()
	}
	defaultItems := opts.DefaultItems
	if defaultItems <= 0 {
		defaultItems = 10
	}
	searchItems := opts.SearchItems
	if searchItems <= 0 {
		searchItems = 50
	}
	return &Router{
		routes:       routes,
		primary:      newPiggybackStore(opts.Primary, piggybacks),
		secondary:    opts.Secondary,
		guard:        opts.Guard,
		resolver:     opts.Resolver,
		transformers: transformers,
		defaultItems: defaultItems,
		searchItems:  searchItems,
		logger:       logger,
	}
}

// backendFor returns the backend serving an entity.
func (r *Router) backendFor(entity string) Backend {
	if b, ok := r.routes[entity]; ok {
		return b
	}
	return BackendPrimary
}

// List returns a page of an entity listing, newest-created first.
func (r *Router) List(ctx context.Context, entity string, opts domain.ListOptions) domain.Envelope {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Items <= 0 {
		opts.Items = r.defaultItems
	}
	return r.dispatch(ctx, entity, "list", readFailure(emptyRecords),
		func(ctx context.Context) (domain.Envelope, error) {
			return r.primary.List(ctx, entity, opts)
		},
		func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error) {
			queries := []docstore.Query{
				docstore.Limit(opts.Items),
				docstore.Offset((opts.Page - 1) * opts.Items),
				docstore.OrderDesc(docstore.CreatedAtField),
			}
			listing, err := r.secondary.ListDocuments(ctx, collectionID, queries)
			if err != nil {
				return domain.Envelope{}, err
			}
			return domain.OKPaged(canonicalize(listing.Documents, tr), opts.Page, listing.Total, opts.Items), nil
		})
}

// Read fetches a single entity record.
func (r *Router) Read(ctx context.Context, entity, id string) domain.Envelope {
	return r.dispatch(ctx, entity, "read", readFailure(nilResult),
		func(ctx context.Context) (domain.Envelope, error) {
			return r.primary.Read(ctx, entity, id)
		},
		func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error) {
			doc, err := r.secondary.GetDocument(ctx, collectionID, id)
			if err != nil {
				return domain.Envelope{}, err
			}
			return domain.OK(tr.ToCanonical(doc)), nil
		})
}

// Create stores a new entity record.
func (r *Router) Create(ctx context.Context, entity string, data domain.Record) domain.Envelope {
	return r.dispatch(ctx, entity, "create", writeFailure,
		func(ctx context.Context) (domain.Envelope, error) {
			return r.primary.Create(ctx, entity, data)
		},
		func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error) {
			doc, err := r.secondary.CreateDocument(ctx, collectionID, docstore.UniqueID, tr.ToStoreShape(data))
			if err != nil {
				return domain.Envelope{}, err
			}
			return domain.OK(tr.ToCanonical(doc)), nil
		})
}

// Update applies changes to an entity record.
func (r *Router) Update(ctx context.Context, entity, id string, data domain.Record) domain.Envelope {
	return r.dispatch(ctx, entity, "update", writeFailure,
		func(ctx context.Context) (domain.Envelope, error) {
			return r.primary.Update(ctx, entity, id, data)
		},
		func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error) {
			doc, err := r.secondary.UpdateDocument(ctx, collectionID, id, tr.ToStoreShape(data))
			if err != nil {
				return domain.Envelope{}, err
			}
			return domain.OK(tr.ToCanonical(doc)), nil
		})
}

// Delete removes an entity record.
func (r *Router) Delete(ctx context.Context, entity, id string) domain.Envelope {
	return r.dispatch(ctx, entity, "delete", writeFailure,
		func(ctx context.Context) (domain.Envelope, error) {
			return r.primary.Delete(ctx, entity, id)
		},
		func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error) {
			if err := r.secondary.DeleteDocument(ctx, collectionID, id); err != nil {
				return domain.Envelope{}, err
			}
			return domain.OK(domain.Record{"_id": id}), nil
		})
}

// Search runs a substring search on the entity's designated field.
func (r *Router) Search(ctx context.Context, entity string, opts domain.SearchOptions) domain.Envelope {
	if opts.Items <= 0 {
		opts.Items = r.searchItems
	}
	return r.dispatch(ctx, entity, "search", readFailure(emptyRecords),
		func(ctx context.Context) (domain.Envelope, error) {
			return r.primary.Search(ctx, entity, opts)
		},
		func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error) {
			queries := []docstore.Query{
				docstore.Limit(opts.Items),
				docstore.OrderDesc(docstore.CreatedAtField),
			}
			if opts.Query != "" {
				queries = append(queries, docstore.Search(tr.SearchField(), opts.Query))
			}
			listing, err := r.secondary.ListDocuments(ctx, collectionID, queries)
			if err != nil {
				return domain.Envelope{}, err
			}
			return domain.OK(canonicalize(listing.Documents, tr)), nil
		})
}

// Filter selects entity records by field equality.
func (r *Router) Filter(ctx context.Context, entity string, opts domain.FilterOptions) domain.Envelope {
	return r.dispatch(ctx, entity, "filter", readFailure(emptyRecords),
		func(ctx context.Context) (domain.Envelope, error) {
			return r.primary.Filter(ctx, entity, opts)
		},
		func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error) {
			queries := []docstore.Query{
				docstore.OrderDesc(docstore.CreatedAtField),
			}
			if opts.Field != "" && opts.Value != "" {
				queries = append(queries, docstore.Equal(opts.Field, opts.Value))
			}
			listing, err := r.secondary.ListDocuments(ctx, collectionID, queries)
			if err != nil {
				return domain.Envelope{}, err
			}
			return domain.OK(canonicalize(listing.Documents, tr)), nil
		})
}

type failurePolicy func(err error) domain.Envelope

// readFailure degrades to an empty but renderable result so list and search
// screens render an empty state instead of crashing.
func readFailure(result func() any) failurePolicy {
	return func(err error) domain.Envelope {
		return domain.Fail(result(), err.Error())
	}
}

// writeFailure always surfaces a human-readable message; writes never
// silently no-op.
func writeFailure(err error) domain.Envelope {
	return domain.Fail(nil, err.Error())
}

func emptyRecords() any { return []domain.Record{} }

func nilResult() any { return nil }

// dispatch runs one verb against the entity's backend and contains every
// failure beneath it.
func (r *Router) dispatch(
	ctx context.Context,
	entity, verb string,
	onFailure failurePolicy,
	primaryOp func(ctx context.Context) (domain.Envelope, error),
	secondaryOp func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error),
) domain.Envelope {
	backend := r.backendFor(entity)
	start := time.Now()

	envelope, err := r.run(ctx, entity, backend, primaryOp, secondaryOp)
	if err != nil {
		r.logger.Warn("entity operation failed",
			slog.String("entity", entity),
			slog.String("verb", verb),
			slog.String("backend", string(backend)),
			slog.String("error", err.Error()),
		)
		metrics.ObserveStoreRequest(string(backend), entity, verb, "error", time.Since(start))
		return onFailure(err)
	}

	result := "ok"
	if !envelope.Success {
		result = "failed"
	}
	metrics.ObserveStoreRequest(string(backend), entity, verb, result, time.Since(start))
	return envelope
}

func (r *Router) run(
	ctx context.Context,
	entity string,
	backend Backend,
	primaryOp func(ctx context.Context) (domain.Envelope, error),
	secondaryOp func(ctx context.Context, collectionID string, tr transform.Transformer) (domain.Envelope, error),
) (domain.Envelope, error) {
	if backend != BackendSecondary {
		// Primary path: the generic CRUD client already yields envelopes,
		// returned unchanged.
		return primaryOp(ctx)
	}

	tr, ok := r.transformers[entity]
	if !ok {
		return domain.Envelope{}, &domain.NotFoundError{Kind: "transformer", Name: entity}
	}
	if err := r.guard.EnsureAuth(ctx); err != nil {
		return domain.Envelope{}, err
	}
	collectionID, err := r.resolver.Resolve(ctx, entity)
	if err != nil {
		return domain.Envelope{}, err
	}
	return secondaryOp(ctx, collectionID, tr)
}

func canonicalize(docs []domain.Document, tr transform.Transformer) []domain.Record {
	out := make([]domain.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, tr.ToCanonical(doc))
	}
	return out
}
