package deliverynote

import (
	"context"
	"time"

	"albaran/internal/core/id"
)

// Repository defines persistence operations for delivery notes.
//
// All owner-scoped lookups collapse "missing" and "owned by someone else"
// into the same NotFound error. GetByID is the single unscoped lookup,
// reserved for the download path where company guests may be authorized.
type Repository interface {
	Create(ctx context.Context, note *DeliveryNote) error

	// GetByID loads a note regardless of owner. Items included.
	GetByID(ctx context.Context, noteID id.ID) (*DeliveryNote, error)

	// GetOwned loads a note only if owned by ownerID. Items included.
	GetOwned(ctx context.Context, noteID, ownerID id.ID) (*DeliveryNote, error)

	// GetOwnedForUpdate is GetOwned with a row lock, serializing
	// concurrent signing attempts on the same note.
	GetOwnedForUpdate(ctx context.Context, noteID, ownerID id.ID) (*DeliveryNote, error)

	Update(ctx context.Context, note *DeliveryNote) error

	// Delete removes the note and its items permanently.
	Delete(ctx context.Context, noteID, ownerID id.ID) error

	// List returns the owner's notes ordered by date descending.
	List(ctx context.Context, ownerID id.ID, filter ListFilter) ([]*DeliveryNote, error)

	// NumberExists reports whether the owner already uses the note number,
	// excluding excludeID when non-nil (for update self-checks).
	NumberExists(ctx context.Context, ownerID id.ID, number string, excludeID *id.ID) (bool, error)
}

// ListFilter narrows List results.
type ListFilter struct {
	ProjectID *id.ID
	ClientID  *id.ID
	Signed    *bool
	DateFrom  *time.Time
	DateTo    *time.Time
}
