// Package export renders a form's submissions as downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/mbolis/leadform/analytics"
	"github.com/mbolis/leadform/model"
)

const SheetName = "Submissions"

var ErrUnknownFormat = errors.New("unknown export format")

type Format struct {
	ContentType string
	Extension   string
}

var Formats = map[string]Format{
	"csv":  {"text/csv; charset=utf-8", "csv"},
	"xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"},
	"pdf":  {"application/pdf", "pdf"},
}

var fixedColumns = []string{"Submission ID", "Submitted At", "IP Address", "User Agent"}

// Table lays submissions out as rows, one column per question in form order.
func Table(form model.Form, submissions []model.Submission) (header []string, rows [][]string) {
	header = append(header, fixedColumns...)
	for _, q := range form.Questions {
		label := q.Label
		if label == "" {
			label = q.ID
		}
		header = append(header, label)
	}

	rows = make([][]string, 0, len(submissions))
	for _, s := range submissions {
		row := []string{
			s.PublicID,
			s.SubmittedAt.UTC().Format(time.RFC3339),
			s.IPAddress,
			s.UserAgent,
		}
		for _, q := range form.Questions {
			row = append(row, model.AnswerText(s.Data[q.ID]))
		}
		rows = append(rows, row)
	}
	return header, rows
}

// spreadsheetTable is Table with every cell made safe for spreadsheet apps.
func spreadsheetTable(form model.Form, submissions []model.Submission) (header []string, rows [][]string) {
	header, rows = Table(form, submissions)
	escapeCells(header)
	for _, row := range rows {
		escapeCells(row)
	}
	return header, rows
}

// escapeCells quotes values a spreadsheet would evaluate as a formula.
// Plain numbers, negative ones included, are left alone.
func escapeCells(cells []string) {
	for i, v := range cells {
		if v == "" || !strings.ContainsRune("=+-@\t\r", rune(v[0])) {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			continue
		}
		cells[i] = "'" + v
	}
}

// Write dispatches to the writer for format.
func Write(w io.Writer, format string, form model.Form, submissions []model.Submission, funnel analytics.Funnel) error {
	switch format {
	case "csv":
		return CSV(w, form, submissions)
	case "xlsx":
		return XLSX(w, form, submissions)
	case "pdf":
		return PDF(w, form, submissions, funnel)
	}
	return errors.Wrap(ErrUnknownFormat, format)
}

func CSV(w io.Writer, form model.Form, submissions []model.Submission) error {
	header, rows := spreadsheetTable(form, submissions)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "csv header")
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "csv rows")
	}
	return nil
}

func XLSX(w io.Writer, form model.Form, submissions []model.Submission) (err error) {
	header, rows := spreadsheetTable(form, submissions)

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err = f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return errors.Wrap(err, "xlsx sheet")
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "xlsx style")
	}

	if err = setRow(f, 1, header); err != nil {
		return err
	}
	if err = f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return errors.Wrap(err, "xlsx header style")
	}
	for i, row := range rows {
		if err = setRow(f, i+2, row); err != nil {
			return err
		}
	}

	return errors.Wrap(f.Write(w), "xlsx write")
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return errors.Wrap(err, "xlsx cell")
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return errors.Wrapf(f.SetSheetRow(SheetName, cell, &row), "xlsx row %d", n)
}

// PDF writes a printable summary: funnel numbers then every submission.
func PDF(w io.Writer, form model.Form, submissions []model.Submission, funnel analytics.Funnel) error {
	header, rows := Table(form, submissions)

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(form.Title), false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(form.Title), "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("%d submissions", len(submissions)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Funnel")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range [][2]string{
		{"Views", fmt.Sprint(funnel.Views)},
		{"Starts", fmt.Sprint(funnel.Starts)},
		{"Completes", fmt.Sprint(funnel.Completes)},
		{"Abandons", fmt.Sprint(funnel.Abandons)},
		{"Start rate", percent(funnel.StartRate)},
		{"Completion rate", percent(funnel.CompletionRate)},
		{"Conversion rate", percent(funnel.ConversionRate)},
		{"Abandon rate", percent(funnel.AbandonRate)},
	} {
		pdf.CellFormat(50, 6, line[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, line[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	for i, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, fmt.Sprintf("Submission %d", i+1))
		pdf.Ln(8)
		for c, value := range row {
			pdf.SetFont("Helvetica", "B", 9)
			pdf.MultiCell(0, 5, tr(header[c]), "", "L", false)
			pdf.SetFont("Helvetica", "", 9)
			if value == "" {
				value = "-"
			}
			pdf.MultiCell(0, 5, tr(value), "", "L", false)
		}
		pdf.Ln(4)
	}

	if err := pdf.Error(); err != nil {
		return errors.Wrap(err, "pdf render")
	}
	return errors.Wrap(pdf.Output(w), "pdf write")
}

func percent(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}
