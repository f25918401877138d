// Package bulkimport turns CSV and Excel sheets into school records.
package bulkimport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/simonmuehling/educafric-app-sub019/core"
	"github.com/simonmuehling/educafric-app-sub019/core/academic"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	// MaxRows bounds the data rows of one import.
	MaxRows = 2000

	templateSheet = "Sheet1"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("the file has no data rows")
	ErrTooManyRows       = errors.Errorf("the file has more than %d data rows", MaxRows)

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

type (
	// Creator is the part of academic.Service an import needs.
	Creator interface {
		Create(ctx context.Context, schoolID, module string, data academic.Data, clientTempID string) (academic.Record, bool, error)
	}

	// RowError reports why a row was not imported. Row is the 1-based line number in the sheet.
	RowError struct {
		Row    int               `json:"row"`
		Fields map[string]string `json:"fields,omitempty"`
		Error  string            `json:"error"`
	}

	Result struct {
		Total   int        `json:"total"`
		Created int        `json:"created"`
		Errors  []RowError `json:"errors"`
	}

	Importer struct {
		creator Creator
		logger  core.Logger
	}
)

func NewImporter(creator Creator, logger core.Logger) *Importer {
	return &Importer{creator: creator, logger: logger}
}

// FormatOf guesses the format from a file name, "" when unsupported.
func FormatOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".xlsx", ".xlsm":
		return FormatXLSX
	}
	return ""
}

// Template writes an empty sheet for module with headers in lang.
func Template(w io.Writer, module, format, lang string) error {
	fields := academic.Fields(module)
	if fields == nil {
		return academic.ErrUnknownModule
	}
	headers := make([]string, len(fields))
	for i, fld := range fields {
		headers[i] = fld.Label.In(lang)
		if fld.Required {
			headers[i] += " *"
		}
	}

	switch format {
	case FormatCSV:
		if _, err := w.Write(utf8BOM); err != nil {
			return errors.Wrap(err, "writing template")
		}
		cw := csv.NewWriter(w)
		if err := cw.Write(headers); err != nil {
			return errors.Wrap(err, "writing template")
		}
		cw.Flush()
		return errors.Wrap(cw.Error(), "writing template")
	case FormatXLSX:
		return xlsxTemplate(w, headers)
	default:
		return ErrUnsupportedFormat
	}
}

func xlsxTemplate(w io.Writer, headers []string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetRow(templateSheet, "A1", &headers); err != nil {
		return errors.Wrap(err, "writing template headers")
	}
	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return errors.Wrap(err, "writing template headers")
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "styling template headers")
	}
	if err = f.SetCellStyle(templateSheet, "A1", lastCol+"1", style); err != nil {
		return errors.Wrap(err, "styling template headers")
	}
	if err = f.SetColWidth(templateSheet, "A", lastCol, 22); err != nil {
		return errors.Wrap(err, "styling template headers")
	}
	if _, err = f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing template")
	}
	return nil
}

// Parse reads every row of r, the first one holding the headers.
// Only the first sheet of a workbook is read.
func Parse(r io.Reader, format string) ([][]string, error) {
	switch format {
	case FormatCSV:
		return parseCSV(r)
	case FormatXLSX:
		return parseXLSX(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func parseCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	// spreadsheets set to French locales export with ';'
	first, _ := br.Peek(4096)
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}

	cr := csv.NewReader(br)
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		cr.Comma = ';'
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	return rows, nil
}

func parseXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "reading worksheet")
	}
	return rows, nil
}

// columnKeys maps the header row to record keys. A header may be the key itself or its
// label in either language, a trailing "*" is ignored. Unknown headers are kept as typed.
func columnKeys(module string, header []string) []string {
	known := make(map[string]string)
	for _, fld := range academic.Fields(module) {
		known[strings.ToLower(fld.Key)] = fld.Key
		known[strings.ToLower(fld.Label.EN)] = fld.Key
		known[strings.ToLower(fld.Label.FR)] = fld.Key
	}

	keys := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(h), "*"))
		if key, ok := known[strings.ToLower(h)]; ok {
			keys[i] = key
		} else {
			keys[i] = h
		}
	}
	return keys
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Records converts parsed rows into record data. Blank rows are skipped and rows that do not
// validate are reported instead of returned.
func Records(module string, rows [][]string) ([]academic.Data, []int, []RowError, error) {
	if !academic.IsModule(module) {
		return nil, nil, nil, academic.ErrUnknownModule
	}
	if len(rows) < 2 {
		return nil, nil, nil, ErrEmptyFile
	}
	if len(rows)-1 > MaxRows {
		return nil, nil, nil, ErrTooManyRows
	}

	keys := columnKeys(module, rows[0])
	var (
		data    []academic.Data
		lines   []int
		rowErrs []RowError
	)
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		d := make(academic.Data, len(keys))
		for col, key := range keys {
			if key == "" || col >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[col]); v != "" {
				d[key] = v
			}
		}
		if err := d.Validate(module, false); err != nil {
			rowErrs = append(rowErrs, newRowError(line, err))
			continue
		}
		data = append(data, d)
		lines = append(lines, line)
	}
	if len(data) == 0 && len(rowErrs) == 0 {
		return nil, nil, nil, ErrEmptyFile
	}
	return data, lines, rowErrs, nil
}

func newRowError(line int, err error) RowError {
	re := RowError{Row: line, Error: err.Error()}
	if verr, ok := errors.Cause(err).(*core.ValidationError); ok {
		re.Fields = verr.FieldMap()
	}
	return re
}

// Import parses r and creates one record per valid row. Rows rejected by validation or by
// the plan limits are reported in the result; any other failure stops the import.
func (imp *Importer) Import(ctx context.Context, schoolID, module, format string, r io.Reader) (Result, error) {
	rows, err := Parse(r, format)
	if err != nil {
		return Result{}, err
	}
	data, lines, rowErrs, err := Records(module, rows)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(data) + len(rowErrs), Errors: rowErrs}
	for i, d := range data {
		_, _, err = imp.creator.Create(ctx, schoolID, module, d, "")
		if err != nil {
			if core.IsValidationError(err) {
				res.Errors = append(res.Errors, newRowError(lines[i], err))
				continue
			}
			return res, errors.Wrap(err, fmt.Sprintf("importing row %d", lines[i]))
		}
		res.Created++
	}
	if res.Errors == nil {
		res.Errors = []RowError{}
	}
	sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Row < res.Errors[j].Row })
	imp.logger.Info(fmt.Sprintf("import %s for school %s: %d/%d rows created", module, schoolID, res.Created, res.Total))
	return res, nil
}
