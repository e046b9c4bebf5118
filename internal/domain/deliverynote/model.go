// Package deliverynote provides the DeliveryNote document: an itemized
// record of hours or materials delivered against a project, signable once
// and archived as a PDF in content-addressed storage.
package deliverynote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"albaran/internal/core/apperror"
	"albaran/internal/core/entity"
	"albaran/internal/core/id"
	"albaran/internal/core/types"
	"albaran/internal/domain/directory"
)

// DeliveryNote is the central document of the service.
//
// The client reference is derived state: it is recomputed from the project
// whenever the note is created or its project changes, and is never settable
// by callers. Once signed, the note is immutable through every public
// operation.
type DeliveryNote struct {
	entity.BaseEntity
	entity.Owned

	// Number is the note number, unique per owner (not globally).
	Number string `db:"number" json:"number"`

	// ProjectID is the referenced project; source of truth for ClientID.
	ProjectID id.ID `db:"project_id" json:"projectId"`

	// ClientID is derived from the project at creation or project change.
	ClientID id.ID `db:"client_id" json:"clientId"`

	// Date is the business date of the note (defaults to creation time).
	Date time.Time `db:"date" json:"date"`

	// Notes is optional free text.
	Notes string `db:"notes" json:"notes,omitempty"`

	// Signed transitions one way: once true it never reverts.
	Signed bool `db:"signed" json:"isSigned"`

	// SignedAt is set when the note is signed, nil before.
	SignedAt *time.Time `db:"signed_at" json:"signedAt,omitempty"`

	// SignatureCID references the signature artifact, set on signing.
	SignatureCID string `db:"signature_cid" json:"-"`

	// PDFCID references the archived PDF, set as part of the signing
	// workflow only.
	PDFCID string `db:"pdf_cid" json:"-"`

	// Items is the ordered table part.
	Items []Item `db:"-" json:"items"`
}

// Item is a single delivered line: hours or materials.
type Item struct {
	LineNo      int            `db:"line_no" json:"lineNo"`
	Description string         `db:"description" json:"description"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice   *types.Money   `db:"unit_price" json:"unitPrice,omitempty"`
	Person      string         `db:"person" json:"person,omitempty"`
}

// LineTotal returns quantity × unit price, zero when no price is set.
func (i Item) LineTotal() types.Money {
	if i.UnitPrice == nil {
		return decimal.Zero
	}
	return i.Quantity.Mul(*i.UnitPrice)
}

// New creates a draft delivery note for the given owner.
// ClientID is left unset; the service derives it from the project.
func New(ownerID id.ID, number string, projectID id.ID) *DeliveryNote {
	return &DeliveryNote{
		BaseEntity: entity.NewBaseEntity(),
		Owned:      entity.Owned{OwnerID: ownerID},
		Number:     number,
		ProjectID:  projectID,
		Date:       time.Now().UTC(),
		Items:      make([]Item, 0),
	}
}

// AddItem appends a line item, renumbering line positions.
func (n *DeliveryNote) AddItem(description string, quantity types.Quantity, unitPrice *types.Money, person string) {
	n.Items = append(n.Items, Item{
		LineNo:      len(n.Items) + 1,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Person:      person,
	})
}

// SetItems replaces the table part, renumbering line positions.
func (n *DeliveryNote) SetItems(items []Item) {
	n.Items = make([]Item, len(items))
	for i, item := range items {
		item.LineNo = i + 1
		n.Items[i] = item
	}
}

// TotalAmount is derived on demand: sum of quantity × (unit price or 0).
// Never stored, so it cannot drift from the items.
func (n *DeliveryNote) TotalAmount() types.Money {
	total := decimal.Zero
	for _, item := range n.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// HasPricedItems reports whether any item carries a unit price.
// The rendered PDF shows a grand total only in that case.
func (n *DeliveryNote) HasPricedItems() bool {
	for _, item := range n.Items {
		if item.UnitPrice != nil {
			return true
		}
	}
	return false
}

// Validate implements entity.Validatable.
func (n *DeliveryNote) Validate(ctx context.Context) error {
	if err := n.ValidateOwner(ctx); err != nil {
		return err
	}

	if n.Number == "" {
		return apperror.NewValidation("note number is required").
			WithDetail("field", "number")
	}

	if id.IsNil(n.ProjectID) {
		return apperror.NewValidation("project is required").
			WithDetail("field", "projectId")
	}

	if n.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	if len(n.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for i, item := range n.Items {
		if item.Description == "" {
			return apperror.NewValidation("item description is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return apperror.NewValidation("item unit price must not be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// CanModify checks whether the note accepts updates or deletion.
// Signed notes are permanently immutable.
func (n *DeliveryNote) CanModify() error {
	if n.Signed {
		return apperror.NewNoteSigned("cannot update a signed delivery note").
			WithDetail("note_id", n.ID.String())
	}
	return nil
}

// DeriveClient recomputes the client reference from the given project.
// Called on creation and whenever the project reference changes; this is
// the only way ClientID is ever set.
func (n *DeliveryNote) DeriveClient(project *directory.Project) {
	n.ProjectID = project.ID
	n.ClientID = project.ClientID
}

// MarkSigned flips the one-way signed flag and records the signature
// artifact. Callers must complete the PDF pipeline within the same
// transaction or roll the flip back. Version and UpdatedAt are managed by
// the repository on persist.
func (n *DeliveryNote) MarkSigned(signatureCID string, at time.Time) {
	n.Signed = true
	n.SignedAt = &at
	n.SignatureCID = signatureCID
}
