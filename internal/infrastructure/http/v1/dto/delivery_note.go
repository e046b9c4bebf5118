package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"albaran/internal/domain/deliverynote"
)

// ItemRequest is a single line item in a create or update request.
type ItemRequest struct {
	Description string           `json:"description" binding:"required"`
	Quantity    decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	Person      string           `json:"person"`
}

// CreateDeliveryNoteRequest creates a draft note. Signature and PDF state
// is server-managed: those fields do not exist here, so clients cannot
// submit them.
type CreateDeliveryNoteRequest struct {
	Number    string        `json:"number" binding:"required"`
	ProjectID string        `json:"projectId" binding:"required"`
	Date      *time.Time    `json:"date"`
	Items     []ItemRequest `json:"items" binding:"required"`
	Notes     string        `json:"notes"`
}

// UpdateDeliveryNoteRequest applies a partial update; nil fields stay
// unchanged. A nil items slice leaves the table part untouched.
type UpdateDeliveryNoteRequest struct {
	Number    *string       `json:"number"`
	ProjectID *string       `json:"projectId"`
	Date      *time.Time    `json:"date"`
	Items     []ItemRequest `json:"items"`
	Notes     *string       `json:"notes"`
}

// SignDeliveryNoteRequest signs a note with an already-uploaded signature
// artifact.
type SignDeliveryNoteRequest struct {
	SignatureURL string     `json:"signatureUrl" binding:"required"`
	SignedDate   *time.Time `json:"signedDate"`
}

// ListDeliveryNotesQuery narrows the list endpoint.
type ListDeliveryNotesQuery struct {
	ProjectID string     `form:"projectId"`
	ClientID  string     `form:"clientId"`
	Signed    *bool      `form:"isSigned"`
	DateFrom  *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo    *time.Time `form:"dateTo" time_format:"2006-01-02"`
}

// ItemResponse is a line item in a response.
type ItemResponse struct {
	LineNo      int              `json:"lineNo"`
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unitPrice,omitempty"`
	Person      string           `json:"person,omitempty"`
	Total       decimal.Decimal  `json:"total"`
}

// DeliveryNoteResponse is the API shape of a delivery note. Artifact
// references surface as gateway URLs, never as raw storage identifiers.
type DeliveryNoteResponse struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	ProjectID    string          `json:"projectId"`
	ClientID     string          `json:"clientId"`
	Date         time.Time       `json:"date"`
	Notes        string          `json:"notes,omitempty"`
	Items        []ItemResponse  `json:"items"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	IsSigned     bool            `json:"isSigned"`
	SignedAt     *time.Time      `json:"signedAt,omitempty"`
	SignatureURL string          `json:"signatureUrl,omitempty"`
	PDFURL       string          `json:"pdfUrl,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ToDeliveryNoteResponse maps a populated view to its API shape.
func ToDeliveryNoteResponse(view *deliverynote.NoteView) DeliveryNoteResponse {
	note := view.Note

	items := make([]ItemResponse, 0, len(note.Items))
	for _, item := range note.Items {
		items = append(items, ItemResponse{
			LineNo:      item.LineNo,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Person:      item.Person,
			Total:       item.LineTotal(),
		})
	}

	return DeliveryNoteResponse{
		ID:           note.ID.String(),
		Number:       note.Number,
		ProjectID:    note.ProjectID.String(),
		ClientID:     note.ClientID.String(),
		Date:         note.Date,
		Notes:        note.Notes,
		Items:        items,
		TotalAmount:  note.TotalAmount(),
		IsSigned:     note.Signed,
		SignedAt:     note.SignedAt,
		SignatureURL: view.SignatureURL,
		PDFURL:       view.PDFURL,
		CreatedAt:    note.CreatedAt,
		UpdatedAt:    note.UpdatedAt,
	}
}

// AuditEntryResponse is one lifecycle transition in a note's audit trail.
type AuditEntryResponse struct {
	Action    string          `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ToAuditEntries maps audit trail entries to their API shape.
func ToAuditEntries(entries []deliverynote.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			Action:    e.Action,
			UserID:    e.UserID,
			Snapshot:  e.Snapshot,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// ToItems maps request items to domain items. Line numbers are assigned
// by the domain model.
func ToItems(in []ItemRequest) []deliverynote.Item {
	items := make([]deliverynote.Item, 0, len(in))
	for _, item := range in {
		items = append(items, deliverynote.Item{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Person:      item.Person,
		})
	}
	return items
}
