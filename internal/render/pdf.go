// Package render draws export documents for offer lists.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"college-predictor/internal/cutoff"
)

const (
	DefaultTitle    = "List of Matched Colleges"
	DefaultFilename = "CollegesList.pdf"

	rowsPerPage = 10
	rowHeight   = 40.0
	cellPadding = 6.0
	lineHeight  = 12.0
	margin      = 30.0

	ellipsis = "..."
)

// ExportDocument is what gets drawn: the ordered export set of one query.
type ExportDocument struct {
	Title    string
	Category string
	Offers   []cutoff.ReconciledOffer
}

type column struct {
	header string
	x      float64
	width  float64
	value  func(n int, o cutoff.ReconciledOffer) string
}

func columns(category string) []column {
	return []column{
		{"Sl. No.", 30, 30, func(n int, _ cutoff.ReconciledOffer) string { return strconv.Itoa(n) }},
		{"College Name", 70, 180, func(_ int, o cutoff.ReconciledOffer) string { return o.Institution }},
		{"Course Name", 250, 100, func(_ int, o cutoff.ReconciledOffer) string { return o.Program }},
		{fmt.Sprintf("Cutoff Rank (%s)", category), 350, 100, func(_ int, o cutoff.ReconciledOffer) string { return strconv.Itoa(o.CategoryRank) }},
		{"Round", 450, 50, func(_ int, o cutoff.ReconciledOffer) string { return strconv.Itoa(int(o.WinningRound)) }},
		{"Chance", 500, 70, func(_ int, o cutoff.ReconciledOffer) string { return fmt.Sprintf("%d%%", o.Likelihood) }},
	}
}

// PDFRenderer draws the offer table ten rows per page with the header repeated.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) ContentType() string {
	return "application/pdf"
}

func (r *PDFRenderer) Filename() string {
	return DefaultFilename
}

// PageCount is the number of pages Render emits for n offers.
func PageCount(n int) int {
	if n <= rowsPerPage {
		return 1
	}
	return (n + rowsPerPage - 1) / rowsPerPage
}

func (r *PDFRenderer) Render(w io.Writer, doc ExportDocument) error {
	title := doc.Title
	if title == "" {
		title = DefaultTitle
	}

	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.SetTitle(title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	cols := columns(doc.Category)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 25)
	pdf.CellFormat(0, 40, tr(title), "", 1, "C", false, 0, "")
	y := pdf.GetY() + 10
	y = drawHeader(pdf, tr, cols, y)

	for i, offer := range doc.Offers {
		if i > 0 && i%rowsPerPage == 0 {
			pdf.AddPage()
			y = drawHeader(pdf, tr, cols, margin)
		}
		pdf.SetFont("Helvetica", "", 10)
		for _, c := range cols {
			drawCell(pdf, tr(c.value(i+1, offer)), c.x, y, c.width)
		}
		y += rowHeight
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawHeader(pdf *fpdf.Fpdf, tr func(string) string, cols []column, y float64) float64 {
	pdf.SetFont("Helvetica", "B", 12)
	for _, c := range cols {
		drawCell(pdf, tr(c.header), c.x, y, c.width)
	}
	return y + rowHeight
}

// drawCell boxes one cell and centers wrapped text inside the padding.
func drawCell(pdf *fpdf.Fpdf, text string, x, y, width float64) {
	pdf.Rect(x, y, width, rowHeight, "D")
	avail := float64(rowHeight - 2*cellPadding)
	maxLines := int(avail / lineHeight)
	for i, line := range fitLines(pdf, text, width-2*cellPadding, maxLines) {
		pdf.SetXY(x+cellPadding, y+cellPadding+float64(i)*lineHeight)
		pdf.CellFormat(width-2*cellPadding, lineHeight, line, "", 0, "C", false, 0, "")
	}
}

// fitLines wraps cp1252 text to width. When it needs more than maxLines the
// last kept line is shortened to end in an ellipsis.
func fitLines(pdf *fpdf.Fpdf, text string, width float64, maxLines int) []string {
	if maxLines < 1 {
		return nil
	}
	// SplitText measures runes, so each byte is widened to the rune of the same ordinal.
	wrapped := pdf.SplitText(widen(text), width)
	lines := make([]string, 0, min(len(wrapped), maxLines))
	for _, line := range wrapped {
		lines = append(lines, narrow(line))
	}
	if len(lines) <= maxLines {
		return lines
	}

	lines = lines[:maxLines]
	limit := width - 2*pdf.GetCellMargin()
	last := strings.TrimRight(lines[maxLines-1], " ")
	for last != "" && pdf.GetStringWidth(last+ellipsis) > limit {
		last = strings.TrimRight(last[:len(last)-1], " ")
	}
	lines[maxLines-1] = last + ellipsis
	return lines
}

func widen(s string) string {
	runes := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		runes[i] = rune(s[i])
	}
	return string(runes)
}

func narrow(s string) string {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	return string(b)
}
