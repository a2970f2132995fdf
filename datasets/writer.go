package datasets

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/tiknep/tiknep/util/fileutil"
)

// WriteTable writes the table with its header row to path. format is the
// file extension, "csv" or "xlsx".
func WriteTable(ctx context.Context, path string, format string, table *Table) error {
	var encode func(io.Writer, *Table) error
	switch format {
	case "csv":
		encode = EncodeCSV
	case "xlsx":
		encode = EncodeXLSX
	default:
		return fmt.Errorf("unsupported table format %q", format)
	}
	if err := fileutil.WriteFile(ctx, path, func(w io.Writer) error {
		return encode(w, table)
	}); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func EncodeCSV(w io.Writer, table *Table) error {
	writer := gocsv.DefaultCSVWriter(w)
	if err := writer.Write(table.header); err != nil {
		return err
	}
	for _, row := range table.rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func EncodeXLSX(w io.Writer, table *Table) (err error) {
	f := excelize.NewFile()
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	sheet := f.GetSheetName(0)
	write := func(line int, cells []string) error {
		cell, err := excelize.CoordinatesToCellName(1, line)
		if err != nil {
			return err
		}
		return f.SetSheetRow(sheet, cell, &cells)
	}
	if err = write(1, table.header); err != nil {
		return err
	}
	for i, row := range table.rows {
		if err = write(i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}
