package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfMargin          = 10.0
	landscapeThreshold = 8
)

// PDFExporter renders datasets into a paginated table.
type PDFExporter struct {
	// Footer is printed on every page next to the page number.
	Footer string
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays the table out on A4, switching to landscape for wide datasets.
// Header cells repeat on every page.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	orientation := "P"
	if len(data.Columns) > landscapeThreshold {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pdfMargin, 15, pdfMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  %d/{nb}", e.Footer, pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pageWidth, _ := pdf.GetPageSize()
	widths := columnWidths(data.Columns, pageWidth-2*pdfMargin)
	fontSize := 8.0
	if len(data.Columns) > 12 {
		fontSize = 6.5
	}

	header := func() {
		pdf.SetFont("Arial", "B", fontSize)
		pdf.SetFillColor(230, 230, 230)
		for i, column := range data.Columns {
			pdf.CellFormat(widths[i], 8, column.Header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", fontSize)
	}
	pdf.SetHeaderFunc(func() {
		if data.Title != "" {
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 8, data.Title, "", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		header()
	})
	pdf.AddPage()

	writeRow := func(cells []string) {
		for i, cell := range cells {
			align := "L"
			if data.Columns[i].Numeric {
				align = "R"
			}
			pdf.CellFormat(widths[i], 6, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, row := range data.Rows {
		writeRow(row)
	}
	if data.Totals != nil {
		pdf.SetFont("Arial", "B", fontSize)
		writeRow(data.Totals)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []Column, available float64) []float64 {
	total := 0.0
	for _, column := range columns {
		total += weightOf(column)
	}
	widths := make([]float64, len(columns))
	for i, column := range columns {
		widths[i] = available * weightOf(column) / total
	}
	return widths
}

func weightOf(column Column) float64 {
	if column.Weight <= 0 {
		return 1
	}
	return column.Weight
}
