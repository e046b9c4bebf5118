// Package directory defines the identity, client and project collaborators
// the delivery-note core consumes. Full CRUD over these entities lives in a
// separate service; only the lookups the lifecycle needs are specified here.
package directory

import (
	"albaran/internal/core/entity"
	"albaran/internal/core/id"
)

// Company holds the fiscal data of a provider's company.
type Company struct {
	Name    string `db:"company_name" json:"name"`
	TaxID   string `db:"company_tax_id" json:"taxId"`
	Address string `db:"company_address" json:"address"`
}

// User is a provider identity. A user may act personally (PersonalTaxID) or
// on behalf of a company (Company set, CompanyID non-empty).
type User struct {
	ID            id.ID  `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Email         string `db:"email" json:"email"`
	PersonalTaxID string `db:"personal_tax_id" json:"personalTaxId,omitempty"`

	entity.CompanyScoped
	Company *Company `db:"-" json:"company,omitempty"`
}

// HasCompany reports whether the user carries company fiscal data.
func (u *User) HasCompany() bool {
	return u.Company != nil && u.Company.Name != ""
}

// Client is a billed party. Soft-archived via the Archivable trait.
type Client struct {
	ID      id.ID  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Email   string `db:"email" json:"email,omitempty"`
	TaxID   string `db:"tax_id" json:"taxId,omitempty"`
	Address string `db:"address" json:"address,omitempty"`

	entity.Owned
	entity.Archivable
}

// Project groups delivery notes under a client. The project is the single
// source of truth for which client a note bills.
type Project struct {
	ID          id.ID  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	ClientID    id.ID  `db:"client_id" json:"clientId"`

	entity.Owned
	entity.Archivable

	// Client is populated by FindOwnedActive for convenience.
	Client *Client `db:"-" json:"client,omitempty"`
}
