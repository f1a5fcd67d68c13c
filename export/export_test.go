package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mbolis/leadform/analytics"
	"github.com/mbolis/leadform/model"
)

var form = model.Form{
	Title: "Café leads",
	Questions: []model.Question{
		{ID: "name", Type: model.TypeText, Label: "Name"},
		{ID: "topics", Type: model.TypeCheckbox, Label: "Topics", Options: []string{"a", "b", "c"}},
		{ID: "budget", Type: model.TypeNumber},
	},
}

var submissions = []model.Submission{
	{
		PublicID:    "s-1",
		SubmittedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		IPAddress:   "10.0.0.1",
		UserAgent:   "curl/8",
		Data:        map[string]any{"name": "Ada", "topics": []any{"a", "c"}, "budget": 1200.5},
	},
	{
		PublicID:    "s-2",
		SubmittedAt: time.Date(2026, 5, 2, 11, 0, 0, 0, time.UTC),
		IPAddress:   "10.0.0.2",
		Data:        map[string]any{"name": "Grace"},
	},
}

func TestTable(t *testing.T) {
	header, rows := Table(form, submissions)

	assert.Equal(t, []string{"Submission ID", "Submitted At", "IP Address", "User Agent", "Name", "Topics", "budget"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"s-1", "2026-05-01T10:00:00Z", "10.0.0.1", "curl/8", "Ada", "a, c", "1200.5"}, rows[0])
	assert.Equal(t, []string{"s-2", "2026-05-02T11:00:00Z", "10.0.0.2", "", "Grace", "", ""}, rows[1])
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, form, submissions))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Submission ID", records[0][0])
	assert.Equal(t, "a, c", records[1][5])
}

func TestCSVWithoutSubmissions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, form, nil))
	assert.Equal(t, "Submission ID,Submitted At,IP Address,User Agent,Name,Topics,budget\n", buf.String())
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX(&buf, form, submissions))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name", rows[0][4])
	assert.Equal(t, "Ada", rows[1][4])
	assert.Equal(t, "a, c", rows[1][5])
}

func TestSpreadsheetFormulasAreEscaped(t *testing.T) {
	hostile := []model.Submission{{
		PublicID:    "s-3",
		SubmittedAt: time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC),
		UserAgent:   "@SUM(A1)",
		Data:        map[string]any{"name": "=HYPERLINK(\"http://evil\")", "topics": "+cmd", "budget": -42.0},
	}}

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, form, hostile))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "'@SUM(A1)", records[1][3])
	assert.Equal(t, `'=HYPERLINK("http://evil")`, records[1][4])
	assert.Equal(t, "'+cmd", records[1][5])
	assert.Equal(t, "-42", records[1][6], "negative numbers stay numbers")

	buf.Reset()
	require.NoError(t, XLSX(&buf, form, hostile))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, `'=HYPERLINK("http://evil")`, rows[1][4])

	header, rows2 := Table(form, hostile)
	assert.Equal(t, "Name", header[4])
	assert.Equal(t, `=HYPERLINK("http://evil")`, rows2[0][4], "Table keeps raw values for the PDF")
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	funnel := analytics.NewFunnel(map[model.EventType]int{model.EventView: 10, model.EventComplete: 2}, 2)
	require.NoError(t, PDF(&buf, form, submissions, funnel))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, "docx", form, submissions, analytics.Funnel{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
