package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"albaran/internal/core/entity"
	"albaran/internal/core/id"
)

type mockEntity struct {
	entity.BaseEntity
	entity.Owned
	Number string `db:"number" json:"number"`
	Hidden string `db:"-" json:"hidden"`
	NoTag  string
}

func TestExtractDBColumns_EmbeddedTraits(t *testing.T) {
	cols := ExtractDBColumns[mockEntity]()

	expected := []string{"id", "version", "created_at", "updated_at", "owner_id", "number"}
	for _, col := range expected {
		assert.Contains(t, cols, col)
	}
	assert.NotContains(t, cols, "-")
	assert.NotContains(t, cols, "Hidden")
	assert.NotContains(t, cols, "NoTag")
}

func TestStructToMap_EmbeddedTraits(t *testing.T) {
	ownerID := id.New()
	e := mockEntity{
		BaseEntity: entity.NewBaseEntity(),
		Owned:      entity.Owned{OwnerID: ownerID},
		Number:     "DN-007",
		Hidden:     "nope",
	}
	e.Version = 3

	m := StructToMap(e)

	assert.Equal(t, e.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, ownerID, m["owner_id"])
	assert.Equal(t, "DN-007", m["number"])
	_, hasHidden := m["hidden"]
	assert.False(t, hasHidden)
}

func TestStructToMap_Pointer(t *testing.T) {
	e := &mockEntity{Number: "DN-008"}
	m := StructToMap(e)
	assert.Equal(t, "DN-008", m["number"])
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
