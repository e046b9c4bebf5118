package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albaran/internal/core/entity"
	"albaran/internal/core/id"
	"albaran/internal/core/types"
	"albaran/internal/domain/deliverynote"
	"albaran/internal/domain/directory"
)

func sampleView() *deliverynote.NoteView {
	note := deliverynote.New(id.New(), "DN-042", id.New())
	note.Date = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	price := types.MustMoney("75.00")
	note.AddItem("API integration", decimal.NewFromInt(8), &price, "Alice")
	note.AddItem("travel time", decimal.NewFromInt(2), nil, "")
	note.Notes = "delivered on site"

	return &deliverynote.NoteView{
		Note: note,
		Owner: &directory.User{
			Name:          "Alice Provider",
			Email:         "alice@provider.test",
			PersonalTaxID: "12345678Z",
		},
		Client: &directory.Client{
			Name:    "Big Corp",
			Email:   "billing@bigcorp.test",
			TaxID:   "B-9876",
			Address: "1 Main St",
		},
		Project: &directory.Project{
			Name:        "Platform Rework",
			Description: "Q1 modernization effort",
		},
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	out, err := NewRenderer().Render(context.Background(), sampleView())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Greater(t, len(out), 500)
}

func TestRender_NilView(t *testing.T) {
	r := NewRenderer()

	_, err := r.Render(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRender)

	_, err = r.Render(context.Background(), &deliverynote.NoteView{})
	assert.ErrorIs(t, err, ErrRender)
}

func TestRender_DoesNotMutateView(t *testing.T) {
	view := sampleView()
	itemsBefore := len(view.Note.Items)
	numberBefore := view.Note.Number

	_, err := NewRenderer().Render(context.Background(), view)
	require.NoError(t, err)

	assert.Len(t, view.Note.Items, itemsBefore)
	assert.Equal(t, numberBefore, view.Note.Number)
	assert.False(t, view.Note.Signed)
}

func TestRender_MissingDirectoryReferences(t *testing.T) {
	// Archived project, removed client, unknown owner: all render as
	// placeholders, never as errors.
	view := sampleView()
	view.Owner = nil
	view.Client = nil
	view.Project = nil

	out, err := NewRenderer().Render(context.Background(), view)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRender_CompanyProvider(t *testing.T) {
	view := sampleView()
	view.Owner.CompanyScoped = entity.CompanyScoped{CompanyID: "acme"}
	view.Owner.Company = &directory.Company{
		Name:    "ACME Consulting",
		TaxID:   "B-1234",
		Address: "2 Office Park",
	}

	out, err := NewRenderer().Render(context.Background(), view)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRender_SignedNote(t *testing.T) {
	view := sampleView()
	view.Note.MarkSigned("cid-sig", time.Date(2026, 3, 11, 16, 45, 0, 0, time.UTC))
	view.SignatureURL = "https://gateway.test/ipfs/cid-sig"

	out, err := NewRenderer().Render(context.Background(), view)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRender_UnpricedOnly(t *testing.T) {
	view := sampleView()
	view.Note.SetItems([]deliverynote.Item{
		{Description: "support hours", Quantity: decimal.NewFromInt(4)},
	})

	out, err := NewRenderer().Render(context.Background(), view)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
