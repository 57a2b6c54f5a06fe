// Package resource holds the protected resources previews are issued for
// and fans out change events to the preview engine.
package resource

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/previewshare-go/internal/core/domain"
	"github.com/yndnr/previewshare-go/pkg/cmap"
)

// Listener receives resource change events.
type Listener func(ctx context.Context, ev domain.ResourceEvent) error

// Registry is an in-memory resource repository.
type Registry struct {
	resources *cmap.Map[int64, *domain.Resource]

	mu        sync.RWMutex
	listeners []Listener

	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		resources: cmap.New[int64, *domain.Resource](),
		now:       time.Now,
	}
}

// Subscribe registers a listener for change events.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// Load stores resources without emitting events.
func (r *Registry) Load(resources []domain.Resource) error {
	for i := range resources {
		res := &resources[i]
		if err := res.Validate(); err != nil {
			return err
		}
		r.resources.Set(res.ID, res.Clone())
	}
	return nil
}

// Get returns the resource with id.
func (r *Registry) Get(_ context.Context, id int64) (*domain.Resource, error) {
	res, ok := r.resources.Get(id)
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	return res.Clone(), nil
}

// List returns every resource ordered by ID.
func (r *Registry) List(_ context.Context) []*domain.Resource {
	all := r.resources.Values()
	out := make([]*domain.Resource, 0, len(all))
	for _, res := range all {
		out = append(out, res.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Upsert stores res and emits an updated event if it replaced an existing
// resource.
func (r *Registry) Upsert(ctx context.Context, res *domain.Resource) (created bool, err error) {
	if err := res.Validate(); err != nil {
		return false, err
	}
	_, existed := r.resources.Get(res.ID)
	r.resources.Set(res.ID, res.Clone())
	if !existed {
		return true, nil
	}
	return false, r.emit(ctx, domain.ResourceUpdated, res.ID)
}

// Delete removes the resource and emits a deleted event.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	if _, ok := r.resources.Pop(id); !ok {
		return domain.ErrResourceNotFound
	}
	return r.emit(ctx, domain.ResourceDeleted, id)
}

// Count returns the number of resources.
func (r *Registry) Count() int {
	return r.resources.Count()
}

func (r *Registry) emit(ctx context.Context, kind domain.ResourceEventKind, id int64) error {
	ev := domain.ResourceEvent{Kind: kind, ResourceID: id, At: r.now().UnixMilli()}

	r.mu.RLock()
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
