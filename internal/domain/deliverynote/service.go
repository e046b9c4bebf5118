package deliverynote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"albaran/internal/core/apperror"
	"albaran/internal/core/id"
	"albaran/internal/core/tx"
	"albaran/internal/domain/access"
	"albaran/internal/domain/directory"
	"albaran/pkg/logger"
)

// Renderer produces the fixed-template PDF for a fully populated note.
// Implementations must not mutate the view.
type Renderer interface {
	Render(ctx context.Context, view *NoteView) ([]byte, error)
}

// Pinner uploads byte blobs to content-addressed storage.
type Pinner interface {
	// Pin uploads data and returns its content identifier.
	Pin(ctx context.Context, name string, data []byte) (string, error)

	// Unpin removes a pinned blob; used as compensation when a signing
	// transaction fails after the upload succeeded.
	Unpin(ctx context.Context, cid string) error

	// GatewayURL resolves a CID to a retrievable URL, "" for an empty CID.
	GatewayURL(cid string) string
}

// AuditLog records lifecycle transitions. Implementations must never fail
// the business operation: errors are logged and swallowed internally.
type AuditLog interface {
	Record(ctx context.Context, action string, noteID id.ID, changes any)
}

// AuditEntry is one recorded lifecycle transition of a note.
type AuditEntry struct {
	Action    string
	UserID    string
	Snapshot  json.RawMessage
	CreatedAt time.Time
}

// AuditReader exposes the recorded trail. An optional capability of an
// AuditLog implementation; sinks that only write need not provide it.
type AuditReader interface {
	History(ctx context.Context, noteID id.ID, limit int) ([]AuditEntry, error)
}

// NoteView is a fully populated note: the document plus the resolved
// provider, client and project, and gateway URLs for pinned artifacts.
// Directory lookups that no longer resolve leave nil references; the
// renderer is blank-safe.
type NoteView struct {
	Note    *DeliveryNote
	Owner   *directory.User
	Client  *directory.Client
	Project *directory.Project

	SignatureURL string
	PDFURL       string
}

// CreateInput carries caller-settable fields for Create.
// Signature and PDF state is server-managed and deliberately absent.
type CreateInput struct {
	Number    string
	ProjectID id.ID
	Date      *time.Time
	Items     []Item
	Notes     string
}

// UpdateInput carries caller-settable fields for Update; nil means
// unchanged. A nil Items slice leaves the table part untouched.
type UpdateInput struct {
	Number    *string
	ProjectID *id.ID
	Date      *time.Time
	Items     []Item
	Notes     *string
}

// Download is the result of the PDF download operation: either a redirect
// to the storage gateway or, on the recovery path, the regenerated bytes.
type Download struct {
	RedirectURL string
	Data        []byte
	Filename    string
}

// Service orchestrates the delivery-note lifecycle: create, read, update,
// sign, delete and PDF download. Sign is the only multi-step operation; it
// runs as a single transaction whose staged state is discarded whenever the
// render or upload step fails.
type Service struct {
	repo     Repository
	projects directory.Projects
	clients  directory.Clients
	users    directory.Users
	gate     *access.Gate
	renderer Renderer
	pins     Pinner
	txm      tx.Manager
	audit    AuditLog // optional
}

// NewService creates a new delivery note service.
func NewService(
	repo Repository,
	projects directory.Projects,
	clients directory.Clients,
	users directory.Users,
	gate *access.Gate,
	renderer Renderer,
	pins Pinner,
	txm tx.Manager,
	audit AuditLog,
) *Service {
	return &Service{
		repo:     repo,
		projects: projects,
		clients:  clients,
		users:    users,
		gate:     gate,
		renderer: renderer,
		pins:     pins,
		txm:      txm,
		audit:    audit,
	}
}

// Create validates the input, resolves the project (owned and active, or
// NotFound), derives the client from it and persists the note. The number
// must be unused by this owner.
func (s *Service) Create(ctx context.Context, ownerID id.ID, in CreateInput) (*NoteView, error) {
	note := New(ownerID, in.Number, in.ProjectID)
	if in.Date != nil {
		note.Date = in.Date.UTC()
	}
	note.SetItems(in.Items)
	note.Notes = in.Notes

	if err := note.Validate(ctx); err != nil {
		return nil, err
	}

	project, err := s.projects.FindOwnedActive(ctx, in.ProjectID, ownerID)
	if err != nil {
		return nil, err
	}
	note.DeriveClient(project)

	taken, err := s.repo.NumberExists(ctx, ownerID, note.Number, nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperror.NewDuplicate("delivery note", "number", note.Number)
	}

	// The unique index on (owner_id, number) closes the race left by the
	// pre-check; the repository maps the violation to the same error.
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, note)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "create", note)
	logger.Info(ctx, "delivery note created", "id", note.ID, "number", note.Number)

	return s.populate(ctx, note)
}

// Get returns the owner's note with derived gateway URLs.
func (s *Service) Get(ctx context.Context, ownerID, noteID id.ID) (*NoteView, error) {
	note, err := s.repo.GetOwned(ctx, noteID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.populate(ctx, note)
}

// List returns all of the owner's notes, date descending.
func (s *Service) List(ctx context.Context, ownerID id.ID, filter ListFilter) ([]*NoteView, error) {
	notes, err := s.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	views := make([]*NoteView, 0, len(notes))
	for _, note := range notes {
		view, err := s.populate(ctx, note)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Update applies partial changes to an unsigned note. Signature and PDF
// state is not representable in UpdateInput, so it can never be set here.
// A project change re-derives the client; a number change re-checks
// uniqueness excluding the note itself.
func (s *Service) Update(ctx context.Context, ownerID, noteID id.ID, in UpdateInput) (*NoteView, error) {
	var updated *DeliveryNote

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		note, err := s.repo.GetOwnedForUpdate(ctx, noteID, ownerID)
		if err != nil {
			return err
		}

		if err := note.CanModify(); err != nil {
			return err
		}

		if in.Number != nil && *in.Number != note.Number {
			taken, err := s.repo.NumberExists(ctx, ownerID, *in.Number, &note.ID)
			if err != nil {
				return err
			}
			if taken {
				return apperror.NewDuplicate("delivery note", "number", *in.Number)
			}
			note.Number = *in.Number
		}

		if in.ProjectID != nil && *in.ProjectID != note.ProjectID {
			project, err := s.projects.FindOwnedActive(ctx, *in.ProjectID, ownerID)
			if err != nil {
				return err
			}
			note.DeriveClient(project)
		}

		if in.Date != nil {
			note.Date = in.Date.UTC()
		}
		if in.Notes != nil {
			note.Notes = *in.Notes
		}
		if in.Items != nil {
			note.SetItems(in.Items)
		}

		if err := note.Validate(ctx); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, note); err != nil {
			return err
		}

		updated = note
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "update", updated)
	return s.populate(ctx, updated)
}

// Sign transitions the note to its terminal signed state.
//
// Idempotent: signing an already-signed note returns the current state
// unchanged, without rendering or uploading again — regardless of the
// signature reference supplied.
//
// Otherwise one transaction stages the signed flags, renders the PDF, pins
// it and persists both CIDs. The row lock taken by GetOwnedForUpdate
// serializes concurrent attempts: the loser observes the signed fast path.
// Any render or upload failure discards everything, so a note is never
// left signed without its archived PDF. If the upload succeeded but the
// commit did not, the orphaned pin is removed best-effort.
func (s *Service) Sign(ctx context.Context, ownerID, noteID id.ID, signatureCID string, signedAt *time.Time) (*NoteView, error) {
	if signatureCID == "" {
		return nil, apperror.NewValidation("signatureUrl is required").
			WithDetail("field", "signatureUrl")
	}

	var (
		signed    *DeliveryNote
		pinnedCID string
	)

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		note, err := s.repo.GetOwnedForUpdate(ctx, noteID, ownerID)
		if err != nil {
			return err
		}

		if note.Signed {
			signed = note
			return nil
		}

		at := time.Now().UTC()
		if signedAt != nil {
			at = signedAt.UTC()
		}
		note.MarkSigned(signatureCID, at)

		view, err := s.populate(ctx, note)
		if err != nil {
			return err
		}

		pdf, err := s.renderer.Render(ctx, view)
		if err != nil {
			return dependencyError("pdf rendering", err)
		}

		cid, err := s.pins.Pin(ctx, pdfFilename(note), pdf)
		if err != nil {
			return dependencyError("pdf upload", err)
		}
		pinnedCID = cid
		note.PDFCID = cid

		if err := s.repo.Update(ctx, note); err != nil {
			return err
		}

		s.recordAudit(ctx, "sign", note)
		signed = note
		return nil
	})
	if err != nil {
		s.compensatePin(pinnedCID)
		return nil, err
	}

	logger.Info(ctx, "delivery note signed", "id", signed.ID, "pdf_cid", signed.PDFCID)
	return s.populate(ctx, signed)
}

// Delete hard-deletes an unsigned note. Signed notes are permanent.
func (s *Service) Delete(ctx context.Context, ownerID, noteID id.ID) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		note, err := s.repo.GetOwnedForUpdate(ctx, noteID, ownerID)
		if err != nil {
			return err
		}

		if note.Signed {
			return apperror.NewNoteSigned("cannot delete a signed delivery note").
				WithDetail("note_id", note.ID.String())
		}

		if err := s.repo.Delete(ctx, noteID, ownerID); err != nil {
			return err
		}

		s.recordAudit(ctx, "delete", note)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "delivery note deleted", "id", noteID)
	return nil
}

// DownloadPDF resolves the archived PDF for a note.
//
// The lookup is unscoped: company guests of the owner are authorized for
// download only. An unsigned note, like a missing one, is a NotFound — the
// API does not distinguish "no such note" from "no PDF yet".
//
// When the note is signed but its PDF reference is missing (data written
// before the atomicity contract, or manual intervention), the PDF is
// regenerated from current data and streamed directly.
func (s *Service) DownloadPDF(ctx context.Context, requesterID, noteID id.ID) (*Download, error) {
	note, err := s.repo.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if err := s.gate.CanDownload(ctx, requesterID, note.OwnerID); err != nil {
		return nil, err
	}

	if !note.Signed {
		return nil, apperror.NewNotFound("delivery note PDF", noteID.String())
	}

	if note.PDFCID != "" {
		return &Download{RedirectURL: s.pins.GatewayURL(note.PDFCID)}, nil
	}

	view, err := s.populate(ctx, note)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.Render(ctx, view)
	if err != nil {
		return nil, dependencyError("pdf rendering", err)
	}

	logger.Warn(ctx, "regenerated pdf for signed note without stored cid", "id", note.ID)
	return &Download{Data: pdf, Filename: pdfFilename(note)}, nil
}

// AuditHistory returns the note's recorded lifecycle transitions, newest
// first. Owner only — the trail includes full snapshots, so company guests
// do not get it.
func (s *Service) AuditHistory(ctx context.Context, ownerID, noteID id.ID, limit int) ([]AuditEntry, error) {
	if _, err := s.repo.GetOwned(ctx, noteID, ownerID); err != nil {
		return nil, err
	}

	reader, ok := s.audit.(AuditReader)
	if !ok {
		return nil, apperror.NewNotConfigured("audit trail")
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return reader.History(ctx, noteID, limit)
}

// populate resolves directory references and gateway URLs for a note.
// Lookups that no longer resolve (archived project, removed client) leave
// nil references rather than failing the read.
func (s *Service) populate(ctx context.Context, note *DeliveryNote) (*NoteView, error) {
	view := &NoteView{
		Note:         note,
		SignatureURL: s.pins.GatewayURL(note.SignatureCID),
		PDFURL:       s.pins.GatewayURL(note.PDFCID),
	}

	owner, err := s.users.FindByID(ctx, note.OwnerID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	view.Owner = owner

	if !id.IsNil(note.ClientID) {
		client, err := s.clients.FindByID(ctx, note.ClientID)
		if err != nil && !apperror.IsNotFound(err) {
			return nil, err
		}
		view.Client = client
	}

	project, err := s.projects.FindOwnedActive(ctx, note.ProjectID, note.OwnerID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	view.Project = project

	return view, nil
}

// compensatePin removes an orphaned upload after a failed signing
// transaction. Best effort: a leaked pin is harmless, a half-signed note
// is not.
func (s *Service) compensatePin(cid string) {
	if cid == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.pins.Unpin(ctx, cid); err != nil {
		logger.Warn(ctx, "failed to unpin orphaned pdf", "cid", cid, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, note *DeliveryNote) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, action, note.ID, note)
}

// dependencyError tags render/upload failures unless the cause is already
// a structured error (e.g. the pinner's "not configured").
func dependencyError(step string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewDependencyFailure(step, err)
}

func pdfFilename(note *DeliveryNote) string {
	return fmt.Sprintf("deliverynote-%s.pdf", note.Number)
}
