package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albaran/internal/core/apperror"
	appctx "albaran/internal/core/context"
	"albaran/internal/core/id"
	"albaran/internal/domain/access"
	"albaran/internal/domain/deliverynote"
	"albaran/internal/domain/directory"
	"albaran/pkg/logger"
)

// --- stubs ---

type stubValidator struct {
	userID string
}

func (s stubValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "valid-token" {
		return nil, errors.New("invalid token")
	}
	return &appctx.UserContext{UserID: s.userID}, nil
}

type stubTx struct{}

func (stubTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memNoteRepo struct {
	notes map[id.ID]*deliverynote.DeliveryNote
}

func (r *memNoteRepo) Create(ctx context.Context, note *deliverynote.DeliveryNote) error {
	r.notes[note.ID] = note
	return nil
}

func (r *memNoteRepo) GetByID(ctx context.Context, noteID id.ID) (*deliverynote.DeliveryNote, error) {
	note, ok := r.notes[noteID]
	if !ok {
		return nil, apperror.NewNotFound("delivery note", noteID.String())
	}
	return note, nil
}

func (r *memNoteRepo) GetOwned(ctx context.Context, noteID, ownerID id.ID) (*deliverynote.DeliveryNote, error) {
	note, ok := r.notes[noteID]
	if !ok || note.OwnerID != ownerID {
		return nil, apperror.NewNotFound("delivery note", noteID.String())
	}
	return note, nil
}

func (r *memNoteRepo) GetOwnedForUpdate(ctx context.Context, noteID, ownerID id.ID) (*deliverynote.DeliveryNote, error) {
	return r.GetOwned(ctx, noteID, ownerID)
}

func (r *memNoteRepo) Update(ctx context.Context, note *deliverynote.DeliveryNote) error {
	note.SetVersion(note.Version + 1)
	r.notes[note.ID] = note
	return nil
}

func (r *memNoteRepo) Delete(ctx context.Context, noteID, ownerID id.ID) error {
	delete(r.notes, noteID)
	return nil
}

func (r *memNoteRepo) List(ctx context.Context, ownerID id.ID, filter deliverynote.ListFilter) ([]*deliverynote.DeliveryNote, error) {
	return nil, nil
}

func (r *memNoteRepo) NumberExists(ctx context.Context, ownerID id.ID, number string, excludeID *id.ID) (bool, error) {
	return false, nil
}

type stubProjects struct {
	project *directory.Project
}

func (s stubProjects) FindOwnedActive(ctx context.Context, projectID, ownerID id.ID) (*directory.Project, error) {
	if s.project != nil && s.project.ID == projectID && s.project.OwnerID == ownerID {
		return s.project, nil
	}
	return nil, apperror.NewNotFound("project", projectID.String())
}

type stubClients struct{}

func (stubClients) FindByID(ctx context.Context, clientID id.ID) (*directory.Client, error) {
	return nil, apperror.NewNotFound("client", clientID.String())
}

type stubUsers struct{}

func (stubUsers) FindByID(ctx context.Context, userID id.ID) (*directory.User, error) {
	return nil, apperror.NewNotFound("user", userID.String())
}

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, view *deliverynote.NoteView) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}

type stubPinner struct{}

func (stubPinner) Pin(ctx context.Context, name string, data []byte) (string, error) {
	return "cid-test", nil
}

func (stubPinner) Unpin(ctx context.Context, cid string) error { return nil }

func (stubPinner) GatewayURL(cid string) string {
	if cid == "" {
		return ""
	}
	return "https://gateway.test/ipfs/" + cid
}

// --- fixture ---

type routerFixture struct {
	router http.Handler
	repo   *memNoteRepo

	ownerID id.ID
	note    *deliverynote.DeliveryNote
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	ownerID := id.New()
	repo := &memNoteRepo{notes: map[id.ID]*deliverynote.DeliveryNote{}}

	note := deliverynote.New(ownerID, "DN-100", id.New())
	note.AddItem("support hours", decimal.NewFromInt(4), nil, "")
	repo.notes[note.ID] = note

	svc := deliverynote.NewService(
		repo,
		stubProjects{},
		stubClients{},
		stubUsers{},
		access.NewGate(stubUsers{}),
		stubRenderer{},
		stubPinner{},
		stubTx{},
		nil,
	)

	router := NewRouter(RouterConfig{
		Logger:        logger.Default(),
		JWTValidator:  stubValidator{userID: ownerID.String()},
		DeliveryNotes: svc,
		Version:       "test",
	})

	return &routerFixture{
		router:  router,
		repo:    repo,
		ownerID: ownerID,
		note:    note,
	}
}

func (f *routerFixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestDelete_ReturnsOK(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(http.MethodDelete, "/api/v1/deliverynote/"+f.note.ID.String())

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Message)

	_, exists := f.repo.notes[f.note.ID]
	assert.False(t, exists)
}

func TestDelete_SignedNoteForbidden(t *testing.T) {
	f := newRouterFixture(t)
	f.note.MarkSigned("cid-sig", time.Now().UTC())

	rec := f.do(http.MethodDelete, "/api/v1/deliverynote/"+f.note.ID.String())

	require.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeNoteSigned, body.Code)

	_, exists := f.repo.notes[f.note.ID]
	assert.True(t, exists)
}

func TestDelete_MissingTokenUnauthorized(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/deliverynote/"+f.note.ID.String(), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
