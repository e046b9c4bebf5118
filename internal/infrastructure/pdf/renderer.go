// Package pdf renders delivery notes into a fixed-template PDF document.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"

	"albaran/internal/domain/deliverynote"
	"albaran/internal/domain/directory"
)

// Sentinel errors let callers distinguish template construction failures
// from output serialization failures. Both leave committed state untouched:
// rendering runs before the signing transaction commits.
var (
	ErrRender = errors.New("pdf rendering failed")
	ErrOutput = errors.New("pdf output failed")
)

const (
	pageMargin  = 15.0
	lineHeight  = 6.0
	fontFamily  = "Helvetica"
	placeholder = "N/A"
)

// Renderer implements deliverynote.Renderer with a fixed A4 template.
type Renderer struct{}

// NewRenderer creates a new PDF renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

var _ deliverynote.Renderer = (*Renderer)(nil)

// Render produces the PDF for a fully populated note. The view is read
// only; missing directory references render as placeholders, never errors.
func (r *Renderer) Render(ctx context.Context, view *deliverynote.NoteView) ([]byte, error) {
	if view == nil || view.Note == nil {
		return nil, fmt.Errorf("%w: empty document", ErrRender)
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetTitle(fmt.Sprintf("Delivery Note %s", view.Note.Number), true)
	doc.AddPage()

	r.header(doc, view)
	r.providerBlock(doc, view.Owner)
	r.clientBlock(doc, view.Client)
	r.projectBlock(doc, view.Project)
	r.itemsTable(doc, view.Note)
	r.notesSection(doc, view.Note)
	r.signatureBlock(doc, view)

	if doc.Err() {
		return nil, fmt.Errorf("%w: %v", ErrRender, doc.Error())
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutput, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) header(doc *fpdf.Fpdf, view *deliverynote.NoteView) {
	doc.SetFont(fontFamily, "B", 16)
	doc.CellFormat(0, 10, "DELIVERY NOTE", "", 1, "C", false, 0, "")

	doc.SetFont(fontFamily, "", 10)
	doc.CellFormat(0, lineHeight, fmt.Sprintf("Number: %s", orNA(view.Note.Number)), "", 1, "L", false, 0, "")
	doc.CellFormat(0, lineHeight, fmt.Sprintf("Date: %s", view.Note.Date.Format("02 Jan 2006")), "", 1, "L", false, 0, "")
	doc.Ln(4)
}

func (r *Renderer) providerBlock(doc *fpdf.Fpdf, owner *directory.User) {
	r.sectionTitle(doc, "Provider")
	doc.SetFont(fontFamily, "", 10)

	if owner == nil {
		doc.CellFormat(0, lineHeight, placeholder, "", 1, "L", false, 0, "")
		doc.Ln(4)
		return
	}

	doc.CellFormat(0, lineHeight, fmt.Sprintf("%s <%s>", orNA(owner.Name), orNA(owner.Email)), "", 1, "L", false, 0, "")

	if owner.HasCompany() {
		doc.CellFormat(0, lineHeight, fmt.Sprintf("Company: %s", orNA(owner.Company.Name)), "", 1, "L", false, 0, "")
		doc.CellFormat(0, lineHeight, fmt.Sprintf("Tax ID: %s", orNA(owner.Company.TaxID)), "", 1, "L", false, 0, "")
		doc.CellFormat(0, lineHeight, fmt.Sprintf("Address: %s", orNA(owner.Company.Address)), "", 1, "L", false, 0, "")
	} else {
		doc.CellFormat(0, lineHeight, fmt.Sprintf("Tax ID: %s", orNA(owner.PersonalTaxID)), "", 1, "L", false, 0, "")
	}
	doc.Ln(4)
}

func (r *Renderer) clientBlock(doc *fpdf.Fpdf, client *directory.Client) {
	r.sectionTitle(doc, "Client")
	doc.SetFont(fontFamily, "", 10)

	if client == nil {
		doc.CellFormat(0, lineHeight, placeholder, "", 1, "L", false, 0, "")
		doc.Ln(4)
		return
	}

	doc.CellFormat(0, lineHeight, fmt.Sprintf("Name: %s", orNA(client.Name)), "", 1, "L", false, 0, "")
	doc.CellFormat(0, lineHeight, fmt.Sprintf("Email: %s", orNA(client.Email)), "", 1, "L", false, 0, "")
	doc.CellFormat(0, lineHeight, fmt.Sprintf("Tax ID: %s", orNA(client.TaxID)), "", 1, "L", false, 0, "")
	doc.CellFormat(0, lineHeight, fmt.Sprintf("Address: %s", orNA(client.Address)), "", 1, "L", false, 0, "")
	doc.Ln(4)
}

func (r *Renderer) projectBlock(doc *fpdf.Fpdf, project *directory.Project) {
	r.sectionTitle(doc, "Project")
	doc.SetFont(fontFamily, "", 10)

	if project == nil {
		doc.CellFormat(0, lineHeight, placeholder, "", 1, "L", false, 0, "")
		doc.Ln(4)
		return
	}

	doc.CellFormat(0, lineHeight, orNA(project.Name), "", 1, "L", false, 0, "")
	if project.Description != "" {
		doc.SetFont(fontFamily, "I", 9)
		doc.MultiCell(0, 5, project.Description, "", "L", false)
	}
	doc.Ln(4)
}

func (r *Renderer) itemsTable(doc *fpdf.Fpdf, note *deliverynote.DeliveryNote) {
	r.sectionTitle(doc, "Items")

	colWidths := []float64{70, 35, 20, 25, 30}
	headers := []string{"Description", "Person", "Qty", "Unit Price", "Total"}

	doc.SetFont(fontFamily, "B", 9)
	doc.SetFillColor(230, 230, 230)
	for i, h := range headers {
		doc.CellFormat(colWidths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont(fontFamily, "", 9)
	for _, item := range note.Items {
		unitPrice := "-"
		if item.UnitPrice != nil {
			unitPrice = item.UnitPrice.StringFixed(2)
		}
		doc.CellFormat(colWidths[0], 6, item.Description, "1", 0, "L", false, 0, "")
		doc.CellFormat(colWidths[1], 6, orDash(item.Person), "1", 0, "L", false, 0, "")
		doc.CellFormat(colWidths[2], 6, item.Quantity.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(colWidths[3], 6, unitPrice, "1", 0, "R", false, 0, "")
		doc.CellFormat(colWidths[4], 6, item.LineTotal().StringFixed(2), "1", 0, "R", false, 0, "")
		doc.Ln(-1)
	}

	if note.HasPricedItems() {
		doc.SetFont(fontFamily, "B", 10)
		label := colWidths[0] + colWidths[1] + colWidths[2] + colWidths[3]
		doc.CellFormat(label, 7, "Total", "1", 0, "R", false, 0, "")
		doc.CellFormat(colWidths[4], 7, note.TotalAmount().StringFixed(2), "1", 1, "R", false, 0, "")
	}
	doc.Ln(4)
}

func (r *Renderer) notesSection(doc *fpdf.Fpdf, note *deliverynote.DeliveryNote) {
	if note.Notes == "" {
		return
	}
	r.sectionTitle(doc, "Notes")
	doc.SetFont(fontFamily, "", 9)
	doc.MultiCell(0, 5, note.Notes, "", "L", false)
	doc.Ln(4)
}

func (r *Renderer) signatureBlock(doc *fpdf.Fpdf, view *deliverynote.NoteView) {
	r.sectionTitle(doc, "Signature")
	doc.SetFont(fontFamily, "", 10)

	note := view.Note
	if !note.Signed {
		doc.Ln(10)
		doc.CellFormat(80, lineHeight, "", "T", 1, "L", false, 0, "")
		doc.SetFont(fontFamily, "I", 8)
		doc.CellFormat(80, 5, "Signature", "", 1, "L", false, 0, "")
		return
	}

	signedAt := placeholder
	if note.SignedAt != nil {
		signedAt = note.SignedAt.Format("02 Jan 2006 15:04 MST")
	}
	doc.CellFormat(0, lineHeight, fmt.Sprintf("Signed at: %s", signedAt), "", 1, "L", false, 0, "")

	if view.SignatureURL != "" {
		doc.SetTextColor(0, 0, 200)
		doc.CellFormat(0, lineHeight, "Signature artifact", "", 1, "L", false, 0, view.SignatureURL)
		doc.SetTextColor(0, 0, 0)
	} else {
		doc.SetFont(fontFamily, "I", 9)
		doc.CellFormat(0, lineHeight, "Signature link unavailable", "", 1, "L", false, 0, "")
	}
}

func (r *Renderer) sectionTitle(doc *fpdf.Fpdf, title string) {
	doc.SetFont(fontFamily, "B", 11)
	doc.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
}

func orNA(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
