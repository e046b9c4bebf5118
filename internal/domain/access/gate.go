// Package access implements the download gate for delivery notes.
//
// Ownership for reads and mutations is enforced by the repository's
// owner-scoped lookups, which collapse foreign notes into NotFound. The
// gate covers the one rule that needs directory data: download access for
// guests sharing the owner's company. Guests never see note contents and
// never mutate.
package access

import (
	"context"

	"albaran/internal/core/apperror"
	"albaran/internal/core/id"
	"albaran/internal/domain/directory"
)

// Gate decides whether a requester may act on a note owned by someone.
type Gate struct {
	users directory.Users
}

// NewGate creates a new access gate.
func NewGate(users directory.Users) *Gate {
	return &Gate{users: users}
}

// CanDownload allows the owner, or a guest whose company matches the
// owner's. Company membership is resolved through the identity directory.
func (g *Gate) CanDownload(ctx context.Context, requesterID, ownerID id.ID) error {
	if requesterID == ownerID {
		return nil
	}

	requester, err := g.users.FindByID(ctx, requesterID)
	if err != nil {
		return apperror.NewForbidden("no permission to download this document")
	}

	owner, err := g.users.FindByID(ctx, ownerID)
	if err != nil {
		return apperror.NewForbidden("no permission to download this document")
	}

	if requester.SameCompany(&owner.CompanyScoped) {
		return nil
	}

	return apperror.NewForbidden("no permission to download this document")
}
