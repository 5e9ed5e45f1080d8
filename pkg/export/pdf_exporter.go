package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// MimePDF is the content type of PDF exports.
const MimePDF = "application/pdf"

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct {
	// Landscape switches the page to A4 landscape for wide tables.
	Landscape bool
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title, subtitle lines and table body.
func (e *PDFExporter) Render(data Dataset, title string, subtitles ...string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	orientation, usable := "P", 190.0
	if e.Landscape {
		orientation, usable = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
	}
	if len(subtitles) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, line := range subtitles {
			pdf.CellFormat(0, 6, tr(line), "", 1, "C", false, 0, "")
		}
	}
	if title != "" || len(subtitles) > 0 {
		pdf.Ln(5)
	}

	widths := e.columnWidths(data, usable)
	pdf.SetFont("Arial", "B", 9)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			value := tr(row[header])
			align := ""
			if data.Numeric[header] {
				align = "C"
			}
			for len(value) > 0 && pdf.GetStringWidth(value) > widths[i]-2 {
				value = value[:len(value)-1]
			}
			pdf.CellFormat(widths[i], 7, value, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths spreads the usable page width proportionally to Dataset.Widths,
// falling back to equal columns.
func (e *PDFExporter) columnWidths(data Dataset, usable float64) []float64 {
	widths := make([]float64, len(data.Headers))
	total := 0.0
	for i, header := range data.Headers {
		w := data.Widths[header]
		if w <= 0 {
			w = 10
		}
		widths[i] = w
		total += w
	}
	for i := range widths {
		widths[i] = usable * widths[i] / total
	}
	return widths
}
