package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"albaran/internal/core/apperror"
	"albaran/internal/core/id"
	"albaran/internal/domain/deliverynote"
	"albaran/internal/infrastructure/http/v1/dto"
)

// DeliveryNoteHandler exposes the delivery note lifecycle over HTTP.
type DeliveryNoteHandler struct {
	*BaseHandler
	service *deliverynote.Service
}

// NewDeliveryNoteHandler creates a new delivery note handler.
func NewDeliveryNoteHandler(base *BaseHandler, service *deliverynote.Service) *DeliveryNoteHandler {
	return &DeliveryNoteHandler{BaseHandler: base, service: service}
}

// Create handles POST /deliverynote.
func (h *DeliveryNoteHandler) Create(c *gin.Context) {
	ownerID, ok := h.RequesterID(c)
	if !ok {
		return
	}

	var req dto.CreateDeliveryNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	projectID, err := id.Parse(req.ProjectID)
	if err != nil {
		h.Error(c, invalidField("projectId"))
		return
	}

	view, err := h.service.Create(c.Request.Context(), ownerID, deliverynote.CreateInput{
		Number:    req.Number,
		ProjectID: projectID,
		Date:      req.Date,
		Items:     dto.ToItems(req.Items),
		Notes:     req.Notes,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.ToDeliveryNoteResponse(view))
}

// List handles GET /deliverynote.
func (h *DeliveryNoteHandler) List(c *gin.Context) {
	ownerID, ok := h.RequesterID(c)
	if !ok {
		return
	}

	var query dto.ListDeliveryNotesQuery
	if !h.BindQuery(c, &query) {
		return
	}

	filter := deliverynote.ListFilter{
		Signed:   query.Signed,
		DateFrom: query.DateFrom,
		DateTo:   query.DateTo,
	}
	if query.ProjectID != "" {
		projectID, err := id.Parse(query.ProjectID)
		if err != nil {
			h.Error(c, invalidField("projectId"))
			return
		}
		filter.ProjectID = &projectID
	}
	if query.ClientID != "" {
		clientID, err := id.Parse(query.ClientID)
		if err != nil {
			h.Error(c, invalidField("clientId"))
			return
		}
		filter.ClientID = &clientID
	}

	views, err := h.service.List(c.Request.Context(), ownerID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.DeliveryNoteResponse, 0, len(views))
	for _, view := range views {
		items = append(items, dto.ToDeliveryNoteResponse(view))
	}
	h.OK(c, gin.H{"items": items, "count": len(items)})
}

// Get handles GET /deliverynote/:id.
func (h *DeliveryNoteHandler) Get(c *gin.Context) {
	ownerID, ok := h.RequesterID(c)
	if !ok {
		return
	}
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), ownerID, noteID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ToDeliveryNoteResponse(view))
}

// Update handles PUT and PATCH /deliverynote/:id. Both apply the same
// partial-update semantics: absent fields stay unchanged.
func (h *DeliveryNoteHandler) Update(c *gin.Context) {
	ownerID, ok := h.RequesterID(c)
	if !ok {
		return
	}
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateDeliveryNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	input := deliverynote.UpdateInput{
		Number: req.Number,
		Date:   req.Date,
		Notes:  req.Notes,
	}
	if req.ProjectID != nil {
		projectID, err := id.Parse(*req.ProjectID)
		if err != nil {
			h.Error(c, invalidField("projectId"))
			return
		}
		input.ProjectID = &projectID
	}
	if req.Items != nil {
		input.Items = dto.ToItems(req.Items)
	}

	view, err := h.service.Update(c.Request.Context(), ownerID, noteID, input)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ToDeliveryNoteResponse(view))
}

// Sign handles PATCH /deliverynote/sign/:id.
func (h *DeliveryNoteHandler) Sign(c *gin.Context) {
	ownerID, ok := h.RequesterID(c)
	if !ok {
		return
	}
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	var req dto.SignDeliveryNoteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	view, err := h.service.Sign(c.Request.Context(), ownerID, noteID, req.SignatureURL, req.SignedDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ToDeliveryNoteResponse(view))
}

// Delete handles DELETE /deliverynote/:id.
func (h *DeliveryNoteHandler) Delete(c *gin.Context) {
	ownerID, ok := h.RequesterID(c)
	if !ok {
		return
	}
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), ownerID, noteID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "delivery note deleted")
}

// DownloadPDF handles GET /deliverynote/pdf/:id. Normally redirects to the
// storage gateway; on the recovery path it streams regenerated bytes.
func (h *DeliveryNoteHandler) DownloadPDF(c *gin.Context) {
	requesterID, ok := h.RequesterID(c)
	if !ok {
		return
	}
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	download, err := h.service.DownloadPDF(c.Request.Context(), requesterID, noteID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if download.RedirectURL != "" {
		c.Redirect(http.StatusFound, download.RedirectURL)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Data(http.StatusOK, "application/pdf", download.Data)
}

// AuditTrail handles GET /deliverynote/audit/:id. Owner only.
func (h *DeliveryNoteHandler) AuditTrail(c *gin.Context) {
	ownerID, ok := h.RequesterID(c)
	if !ok {
		return
	}
	noteID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		h.Error(c, invalidField("limit"))
		return
	}

	entries, err := h.service.AuditHistory(c.Request.Context(), ownerID, noteID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": dto.ToAuditEntries(entries), "count": len(entries)})
}

func invalidField(field string) error {
	return apperror.NewValidation("invalid " + field).WithDetail("field", field)
}
