package entity

import (
	"context"

	"albaran/internal/core/apperror"
	"albaran/internal/core/id"
)

// Owned is a trait for entities bound to the identity that created them.
// The owner is set once at creation and never mutated afterwards.
type Owned struct {
	OwnerID id.ID `db:"owner_id" json:"ownerId"`
}

// ValidateOwner ensures an owner is set.
func (o *Owned) ValidateOwner(ctx context.Context) error {
	if id.IsNil(o.OwnerID) {
		return apperror.NewValidation("owner is required").
			WithDetail("field", "ownerId")
	}
	return nil
}

// IsOwnedBy reports whether the entity belongs to the given identity.
func (o *Owned) IsOwnedBy(userID id.ID) bool {
	return o.OwnerID == userID
}

// GetOwnerID returns the owner ID (useful for interfaces).
func (o *Owned) GetOwnerID() id.ID {
	return o.OwnerID
}

// CompanyScoped is a trait for entities that carry a company affiliation.
// Company membership drives guest access to archived documents.
type CompanyScoped struct {
	CompanyID string `db:"company_id" json:"companyId,omitempty"`
}

// SameCompany reports whether both entities belong to the same, non-empty
// company.
func (c *CompanyScoped) SameCompany(other *CompanyScoped) bool {
	return c.CompanyID != "" && other != nil && c.CompanyID == other.CompanyID
}

// Archivable is a trait for entities supporting soft archival.
// Archived entities are hidden from lookups but never hard-deleted.
type Archivable struct {
	Archived bool `db:"archived" json:"archived"`
}

// Archive marks the entity as archived.
func (a *Archivable) Archive() {
	a.Archived = true
}

// Restore clears the archived flag.
func (a *Archivable) Restore() {
	a.Archived = false
}

// IsArchived reports whether the entity is archived.
func (a *Archivable) IsArchived() bool {
	return a.Archived
}
