package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/kilianp07/caresched/core/model"
)

// WritePDF renders tables on landscape A4 pages, one table per page.
func WritePDF(w io.Writer, tables []Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("pdf requires at least one table")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	for _, t := range tables {
		if len(t.Headers) == 0 {
			return fmt.Errorf("table %q has no headers", t.Title)
		}
		pdf.AddPage()
		if t.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 10, t.Title, "", 1, "C", false, 0, "")
			pdf.Ln(4)
		}
		timeCol := 32.0
		dayCol := (277.0 - timeCol) / float64(len(t.Headers)-1)
		width := func(i int) float64 {
			if i == 0 {
				return timeCol
			}
			return dayCol
		}
		pdf.SetFont("Arial", "B", 10)
		for i, h := range t.Headers {
			pdf.CellFormat(width(i), 8, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, r := range t.Rows {
			for i, cell := range r {
				fill := cell != FreeCell && i > 0
				if fill {
					pdf.SetFillColor(220, 235, 250)
				}
				pdf.CellFormat(width(i), 7, cell, "1", 0, "", fill, 0, "")
			}
			pdf.Ln(-1)
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// WriteSchedulePDF renders the table of every scheduled client.
func WriteSchedulePDF(w io.Writer, ds model.Dataset, s *model.Schedule) error {
	if s == nil {
		return fmt.Errorf("no schedule to render")
	}
	return WritePDF(w, ClientTables(ds, s, WithCategory))
}

// WriteClientPDF renders the weekly table of one client.
func WriteClientPDF(w io.Writer, ds model.Dataset, s *model.Schedule, c model.Client) error {
	return WritePDF(w, []Table{ClientTable(ds, s, c, WithCategory)})
}
