package datasets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/tiknep/tiknep/util/fileutil"
)

// ErrMissingColumn is returned when a required column is not in the table header.
var ErrMissingColumn = errors.New("missing column")

// Table is an in-memory annotated table: an ordered header and rows of string cells.
// A table is never modified after it has been loaded.
type Table struct {
	header []string
	rows   [][]string
	index  map[string]int
}

// NewTable builds a table, checking that header names are unique and that
// every row has exactly one cell per column.
func NewTable(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("table has no header")
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, ok := index[name]; ok {
			return nil, fmt.Errorf("duplicate column %q in header", name)
		}
		index[name] = i
	}
	for i, row := range rows {
		if len(row) != len(header) {
			// +2: one for the header line, one for 1-based numbering
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
	}
	return &Table{header: header, rows: rows, index: index}, nil
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Column returns the position of name in the header.
func (t *Table) Column(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return i, nil
}

func (t *Table) Columns(names ...string) ([]int, error) {
	positions := make([]int, len(names))
	var missing []string
	for i, name := range names {
		pos, ok := t.index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		positions[i] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return positions, nil
}

// Values returns a copy of the named column.
func (t *Table) Values(name string) ([]string, error) {
	pos, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		values[i] = row[pos]
	}
	return values, nil
}

// Cell returns the value at row i of the named column.
func (t *Table) Cell(i int, name string) (string, error) {
	pos, err := t.Column(name)
	if err != nil {
		return "", err
	}
	return t.rows[i][pos], nil
}

// Select returns a new table made of the given rows, in the given order, and
// only the given columns.
func (t *Table) Select(rows []int, columns []string) (*Table, error) {
	positions, err := t.Columns(columns...)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		if r < 0 || r >= len(t.rows) {
			return nil, fmt.Errorf("row index %d out of range [0, %d)", r, len(t.rows))
		}
		cells := make([]string, len(positions))
		for j, pos := range positions {
			cells[j] = t.rows[r][pos]
		}
		out[i] = cells
	}
	return NewTable(append([]string(nil), columns...), out)
}

// LoadTable reads a .csv or .xlsx table from a local path or any URL the
// afs file system understands (e.g. s3://).
func LoadTable(ctx context.Context, path string) (*Table, error) {
	content, err := fileutil.ReadFileBytes(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var table *Table
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		table, err = ReadTable(bytes.NewReader(content))
	case ".xlsx":
		table, err = readXLSX(bytes.NewReader(content))
	default:
		return nil, fmt.Errorf("unsupported table format %q for %s", ext, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return table, nil
}

// ReadTable parses a CSV table whose first record is the header.
func ReadTable(r io.Reader) (*Table, error) {
	records, err := gocsv.DefaultCSVReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty CSV input")
	}
	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	return NewTable(header, records[1:])
}

func readXLSX(r io.Reader) (table *Table, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}
	header := rows[0]
	data := rows[1:]
	// excelize drops trailing empty cells
	for i, row := range data {
		for len(row) < len(header) {
			row = append(row, "")
		}
		data[i] = row
	}
	return NewTable(header, data)
}
