package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

func TestRegistry_GetClone(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	if _, err := r.Get(ctx, 1); !errors.Is(err, domain.ErrResourceNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}

	created, err := r.Upsert(ctx, &domain.Resource{ID: 1, State: domain.StateDraft, Editors: []string{"a"}})
	if err != nil || !created {
		t.Fatalf("Upsert() = %v, %v", created, err)
	}
	got, _ := r.Get(ctx, 1)
	got.Editors[0] = "mutated"
	again, _ := r.Get(ctx, 1)
	if again.Editors[0] != "a" {
		t.Error("Get() must return a copy")
	}
}

func TestRegistry_Events(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	var events []domain.ResourceEvent
	r.Subscribe(func(_ context.Context, ev domain.ResourceEvent) error {
		events = append(events, ev)
		return nil
	})

	res := &domain.Resource{ID: 42, State: domain.StatePublish}
	if _, err := r.Upsert(ctx, res); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("create emitted %v", events)
	}
	res.State = domain.StatePrivate
	if created, err := r.Upsert(ctx, res); err != nil || created {
		t.Fatalf("Upsert(update) = %v, %v", created, err)
	}
	if err := r.Delete(ctx, 42); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("events = %v, want 2", events)
	}
	if events[0].Kind != domain.ResourceUpdated || events[1].Kind != domain.ResourceDeleted {
		t.Errorf("event kinds = %s, %s", events[0].Kind, events[1].Kind)
	}
	if events[1].ResourceID != 42 || events[1].At == 0 {
		t.Errorf("delete event = %+v", events[1])
	}

	if err := r.Delete(ctx, 42); !errors.Is(err, domain.ErrResourceNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestRegistry_ListenerError(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	boom := errors.New("boom")
	r.Subscribe(func(context.Context, domain.ResourceEvent) error { return boom })

	_ = r.Load([]domain.Resource{{ID: 5, State: domain.StateDraft}})
	if err := r.Delete(ctx, 5); !errors.Is(err, boom) {
		t.Errorf("Delete() error = %v, want listener error", err)
	}
}

func TestRegistry_LoadValidates(t *testing.T) {
	r := NewRegistry()
	err := r.Load([]domain.Resource{{ID: 1, State: domain.StateDraft}, {ID: 0, State: domain.StateDraft}})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Load() error = %v, want ErrInvalidArgument", err)
	}
	list := r.List(context.Background())
	if len(list) != 1 || list[0].ID != 1 {
		t.Errorf("List() = %v", list)
	}
}
