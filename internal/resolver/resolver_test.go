package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/yourorg/crmbridge/internal/docstore"
	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/pkg/cache"
)

type memLister struct {
	collections []docstore.Collection
	calls       int
	err         error
}

func (m *memLister) ListCollections(_ context.Context) (*docstore.CollectionList, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &docstore.CollectionList{Total: len(m.collections), Collections: m.collections}, nil
}

func TestResolveExactAlias(t *testing.T) {
	lister := &memLister{collections: []docstore.Collection{
		{ID: "col-a", Name: "tickets"},
		{ID: "col-b", Name: "customers"},
	}}
	r := New(lister, cache.New(), nil)

	id, err := r.Resolve(context.Background(), "client")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "col-b" {
		t.Fatalf("expected col-b, got %s", id)
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	lister := &memLister{collections: []docstore.Collection{
		{ID: "col-a", Name: "Tickets"},
	}}
	r := New(lister, cache.New(), nil)

	id, err := r.Resolve(context.Background(), "ticket")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "col-a" {
		t.Fatalf("expected col-a, got %s", id)
	}
}

func TestResolveFallbackToFirst(t *testing.T) {
	lister := &memLister{collections: []docstore.Collection{
		{ID: "col-x", Name: "unrelated"},
		{ID: "col-y", Name: "other"},
	}}
	r := New(lister, cache.New(), nil)

	id, err := r.Resolve(context.Background(), "client")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "col-x" {
		t.Fatalf("expected first collection fallback, got %s", id)
	}
}

func TestResolveEmptyStore(t *testing.T) {
	r := New(&memLister{}, cache.New(), nil)

	_, err := r.Resolve(context.Background(), "client")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolveMemoized(t *testing.T) {
	lister := &memLister{collections: []docstore.Collection{
		{ID: "col-a", Name: "customers"},
	}}
	r := New(lister, cache.New(), nil)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "client"); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
	}
	if lister.calls != 1 {
		t.Fatalf("expected a single store listing, got %d", lister.calls)
	}

	// Memoized result survives a store change; only a restart invalidates.
	lister.collections = nil
	id, err := r.Resolve(context.Background(), "client")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "col-a" {
		t.Fatalf("expected memoized col-a, got %s", id)
	}
}

func TestResolveListError(t *testing.T) {
	lister := &memLister{err: errors.New("store down")}
	r := New(lister, cache.New(), nil)

	if _, err := r.Resolve(context.Background(), "client"); err == nil {
		t.Fatal("expected listing error to propagate")
	}
}
