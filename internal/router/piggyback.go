package router

import (
	"context"

	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/internal/transform"
)

// Piggyback maps a virtual entity onto a host entity of the primary store.
// Writes are packed into the host's shape and reads unpacked back, so the
// virtual entity needs no collection or endpoint of its own.
type Piggyback struct {
	Host   string
	Pack   func(domain.Record) domain.Record
	Unpack func(domain.Record) domain.Record
	Filter func([]domain.Record) []domain.Record
}

// DefaultPiggybacks returns the shipped virtual entity table. Interactions
// ride on the taxes entity with their extra fields packed into a JSON
// sidecar in the notes field.
func DefaultPiggybacks() map[string]Piggyback {
	return map[string]Piggyback{
		"interaction": {
			Host:   "taxes",
			Pack:   transform.InteractionToHostEntity,
			Unpack: transform.InteractionFromHostEntity,
			Filter: transform.FilterInteractions,
		},
	}
}

// piggybackStore decorates a PrimaryStore, rewriting virtual entities to
// their host entity and running the codec over payloads and results.
// Entities without an entry pass through untouched.
type piggybackStore struct {
	inner      PrimaryStore
	piggybacks map[string]Piggyback
}

func newPiggybackStore(inner PrimaryStore, piggybacks map[string]Piggyback) PrimaryStore {
	if len(piggybacks) == 0 {
		return inner
	}
	return &piggybackStore{inner: inner, piggybacks: piggybacks}
}

func (s *piggybackStore) List(ctx context.Context, entity string, opts domain.ListOptions) (domain.Envelope, error) {
	pb, ok := s.piggybacks[entity]
	if !ok {
		return s.inner.List(ctx, entity, opts)
	}
	// The page window is the host listing's; host rows that do not decode
	// as the virtual entity are dropped from the page.
	env, err := s.inner.List(ctx, pb.Host, opts)
	if err != nil || !env.Success {
		return env, err
	}
	env.Result = pb.Filter(asRecords(env.Result))
	return env, nil
}

func (s *piggybackStore) Read(ctx context.Context, entity, id string) (domain.Envelope, error) {
	pb, ok := s.piggybacks[entity]
	if !ok {
		return s.inner.Read(ctx, entity, id)
	}
	env, err := s.inner.Read(ctx, pb.Host, id)
	if err != nil || !env.Success {
		return env, err
	}
	record := pb.Unpack(asRecord(env.Result))
	if record == nil {
		// A real host row shares the id space but is not this entity.
		return domain.Envelope{}, &domain.NotFoundError{Kind: entity, Name: id}
	}
	env.Result = record
	return env, nil
}

func (s *piggybackStore) Create(ctx context.Context, entity string, data domain.Record) (domain.Envelope, error) {
	pb, ok := s.piggybacks[entity]
	if !ok {
		return s.inner.Create(ctx, entity, data)
	}
	env, err := s.inner.Create(ctx, pb.Host, pb.Pack(data))
	return unpackWrite(env, err, pb)
}

func (s *piggybackStore) Update(ctx context.Context, entity, id string, data domain.Record) (domain.Envelope, error) {
	pb, ok := s.piggybacks[entity]
	if !ok {
		return s.inner.Update(ctx, entity, id, data)
	}
	env, err := s.inner.Update(ctx, pb.Host, id, pb.Pack(data))
	return unpackWrite(env, err, pb)
}

func (s *piggybackStore) Delete(ctx context.Context, entity, id string) (domain.Envelope, error) {
	if pb, ok := s.piggybacks[entity]; ok {
		entity = pb.Host
	}
	return s.inner.Delete(ctx, entity, id)
}

func (s *piggybackStore) Search(ctx context.Context, entity string, opts domain.SearchOptions) (domain.Envelope, error) {
	pb, ok := s.piggybacks[entity]
	if !ok {
		return s.inner.Search(ctx, entity, opts)
	}
	env, err := s.inner.Search(ctx, pb.Host, opts)
	if err != nil || !env.Success {
		return env, err
	}
	env.Result = pb.Filter(asRecords(env.Result))
	return env, nil
}

func (s *piggybackStore) Filter(ctx context.Context, entity string, opts domain.FilterOptions) (domain.Envelope, error) {
	pb, ok := s.piggybacks[entity]
	if !ok {
		return s.inner.Filter(ctx, entity, opts)
	}
	env, err := s.inner.Filter(ctx, pb.Host, opts)
	if err != nil || !env.Success {
		return env, err
	}
	env.Result = pb.Filter(asRecords(env.Result))
	return env, nil
}

func unpackWrite(env domain.Envelope, err error, pb Piggyback) (domain.Envelope, error) {
	if err != nil || !env.Success {
		return env, err
	}
	if record := pb.Unpack(asRecord(env.Result)); record != nil {
		env.Result = record
	}
	return env, nil
}

// asRecord coerces an envelope result back into a record. Results decoded
// from the wire arrive as map[string]any rather than domain.Record.
func asRecord(v any) domain.Record {
	switch t := v.(type) {
	case domain.Record:
		return t
	case map[string]any:
		return domain.Record(t)
	default:
		return nil
	}
}

func asRecords(v any) []domain.Record {
	switch t := v.(type) {
	case []domain.Record:
		return t
	case []any:
		out := make([]domain.Record, 0, len(t))
		for _, item := range t {
			if rec := asRecord(item); rec != nil {
				out = append(out, rec)
			}
		}
		return out
	default:
		return nil
	}
}
