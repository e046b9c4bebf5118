package directory

import (
	"context"

	"albaran/internal/core/id"
)

// Projects resolves project references for the delivery-note lifecycle.
type Projects interface {
	// FindOwnedActive returns the project only if it exists, is owned by
	// ownerID and is not archived. Anything else is a NotFound — archived
	// and foreign projects are indistinguishable from missing ones.
	FindOwnedActive(ctx context.Context, projectID, ownerID id.ID) (*Project, error)
}

// Clients resolves client references when repopulating stored notes.
type Clients interface {
	FindByID(ctx context.Context, clientID id.ID) (*Client, error)
}

// Users resolves provider identities for rendering and company-guest
// authorization.
type Users interface {
	FindByID(ctx context.Context, userID id.ID) (*User, error)
}
