package domain

import "fmt"

// ResourceEventKind is the kind of resource change.
type ResourceEventKind string

// Resource event kinds.
const (
	ResourceUpdated ResourceEventKind = "updated"
	ResourceDeleted ResourceEventKind = "deleted"
)

// ResourceEvent notifies the preview engine that a resource changed.
type ResourceEvent struct {
	Kind       ResourceEventKind `json:"kind"`
	ResourceID int64             `json:"resource_id"`
	// At is the event timestamp (Unix milliseconds).
	At int64 `json:"at"`
}

// Validate checks the event.
func (e ResourceEvent) Validate() error {
	if e.Kind != ResourceUpdated && e.Kind != ResourceDeleted {
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown event kind %q", e.Kind))
	}
	if e.ResourceID <= 0 {
		return ErrInvalidArgument.WithDetails("resource_id must be positive")
	}
	return nil
}
