package domain

import "slices"

// ResourceState is the publication state of a resource.
type ResourceState string

// Known resource states.
const (
	StatePublish ResourceState = "publish"
	StateDraft   ResourceState = "draft"
	StatePending ResourceState = "pending"
	StateFuture  ResourceState = "future"
	StatePrivate ResourceState = "private"
	StateTrash   ResourceState = "trash"
)

// PreviewableStates lists the states for which tokens may be issued.
var PreviewableStates = []ResourceState{StatePublish, StateDraft, StatePending, StateFuture}

// Resource is a protected content record.
type Resource struct {
	ID      int64         `json:"id" yaml:"id" koanf:"id"`
	Type    string        `json:"type" yaml:"type" koanf:"type"`
	Title   string        `json:"title" yaml:"title" koanf:"title"`
	State   ResourceState `json:"state" yaml:"state" koanf:"state"`
	OwnerID string        `json:"owner_id,omitempty" yaml:"owner_id,omitempty" koanf:"owner_id"`

	// Editors may manage previews besides the owner.
	Editors []string `json:"editors,omitempty" yaml:"editors,omitempty" koanf:"editors"`

	// PreviewTTLHours overrides the global default TTL when set.
	// 0 means tokens never expire.
	PreviewTTLHours *int `json:"preview_ttl_hours,omitempty" yaml:"preview_ttl_hours,omitempty" koanf:"preview_ttl_hours"`
}

// Previewable reports whether tokens may be issued for the resource.
func (r *Resource) Previewable() bool {
	return slices.Contains(PreviewableStates, r.State)
}

// Editable reports whether principalID owns or edits the resource.
func (r *Resource) Editable(principalID string) bool {
	if principalID == "" {
		return false
	}
	return r.OwnerID == principalID || slices.Contains(r.Editors, principalID)
}

// Validate checks the resource before it is stored.
func (r *Resource) Validate() error {
	if r.ID <= 0 {
		return ErrInvalidArgument.WithDetails("resource id must be positive")
	}
	if r.State == "" {
		return ErrMissingArgument.WithDetails("state")
	}
	if r.PreviewTTLHours != nil {
		if err := CheckTTLHours("preview_ttl_hours", *r.PreviewTTLHours); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the resource.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	c.Editors = slices.Clone(r.Editors)
	if r.PreviewTTLHours != nil {
		v := *r.PreviewTTLHours
		c.PreviewTTLHours = &v
	}
	return &c
}
