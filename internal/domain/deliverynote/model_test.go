package deliverynote

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albaran/internal/core/apperror"
	"albaran/internal/core/entity"
	"albaran/internal/core/id"
	"albaran/internal/core/types"
	"albaran/internal/domain/directory"
)

func validNote() *DeliveryNote {
	note := New(id.New(), "DN-001", id.New())
	note.ClientID = id.New()
	note.AddItem("backend development", decimal.NewFromInt(8), nil, "")
	return note
}

func TestNew_Defaults(t *testing.T) {
	ownerID := id.New()
	projectID := id.New()
	note := New(ownerID, "DN-001", projectID)

	assert.Equal(t, ownerID, note.OwnerID)
	assert.Equal(t, "DN-001", note.Number)
	assert.Equal(t, projectID, note.ProjectID)
	assert.False(t, note.Signed)
	assert.Nil(t, note.SignedAt)
	assert.False(t, note.Date.IsZero())
	assert.Equal(t, 1, note.Version)
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validNote().Validate(context.Background()))
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *DeliveryNote)
	}{
		{"missing number", func(n *DeliveryNote) { n.Number = "" }},
		{"missing project", func(n *DeliveryNote) { n.ProjectID = id.Nil() }},
		{"zero date", func(n *DeliveryNote) { n.Date = time.Time{} }},
		{"no items", func(n *DeliveryNote) { n.Items = nil }},
		{"empty description", func(n *DeliveryNote) { n.Items[0].Description = "" }},
		{"zero quantity", func(n *DeliveryNote) { n.Items[0].Quantity = decimal.Zero }},
		{"negative quantity", func(n *DeliveryNote) { n.Items[0].Quantity = decimal.NewFromInt(-1) }},
		{"negative unit price", func(n *DeliveryNote) {
			price := decimal.NewFromInt(-10)
			n.Items[0].UnitPrice = &price
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note := validNote()
			tt.mutate(note)

			err := note.Validate(context.Background())
			require.Error(t, err)

			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestSetItems_Renumbers(t *testing.T) {
	note := validNote()
	note.SetItems([]Item{
		{LineNo: 99, Description: "first", Quantity: decimal.NewFromInt(1)},
		{LineNo: 0, Description: "second", Quantity: decimal.NewFromInt(2)},
	})

	require.Len(t, note.Items, 2)
	assert.Equal(t, 1, note.Items[0].LineNo)
	assert.Equal(t, 2, note.Items[1].LineNo)
}

func TestTotalAmount_MixedPricing(t *testing.T) {
	note := New(id.New(), "DN-002", id.New())
	price := decimal.NewFromInt(50)
	note.AddItem("development", decimal.NewFromInt(8), &price, "")
	note.AddItem("travel", decimal.NewFromInt(2), nil, "")

	// Unpriced items contribute zero.
	assert.True(t, note.TotalAmount().Equal(decimal.NewFromInt(400)))
	assert.True(t, note.HasPricedItems())
}

func TestHasPricedItems_AllUnpriced(t *testing.T) {
	note := validNote()
	assert.False(t, note.HasPricedItems())
}

func TestLineTotal(t *testing.T) {
	price := types.MustMoney("12.50")
	item := Item{Quantity: decimal.NewFromInt(4), UnitPrice: &price}
	assert.True(t, item.LineTotal().Equal(decimal.NewFromInt(50)))

	unpriced := Item{Quantity: decimal.NewFromInt(4)}
	assert.True(t, unpriced.LineTotal().IsZero())
}

func TestCanModify_Signed(t *testing.T) {
	note := validNote()
	require.NoError(t, note.CanModify())

	note.MarkSigned("cid-sig", time.Now().UTC())

	err := note.CanModify()
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNoteSigned, appErr.Code)
	assert.Equal(t, 403, appErr.HTTPStatus)
}

func TestMarkSigned(t *testing.T) {
	note := validNote()
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	note.MarkSigned("cid-sig", at)

	assert.True(t, note.Signed)
	require.NotNil(t, note.SignedAt)
	assert.Equal(t, at, *note.SignedAt)
	assert.Equal(t, "cid-sig", note.SignatureCID)
}

func TestDeriveClient(t *testing.T) {
	note := validNote()
	project := &directory.Project{
		ID:       id.New(),
		ClientID: id.New(),
		Owned:    entity.Owned{OwnerID: note.OwnerID},
	}

	note.DeriveClient(project)

	assert.Equal(t, project.ID, note.ProjectID)
	assert.Equal(t, project.ClientID, note.ClientID)
}
