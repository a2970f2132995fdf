package datasets

import (
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

// Record is one row of the cleaned TikNep annotation, in file column order.
type Record struct {
	SN     int    `csv:"SN"`
	TextID string `csv:"Text ID"`
	Text   string `csv:"Text"`
	SEN    int    `csv:"SEN"`
	HAO    int    `csv:"HAO"`
	POL    int    `csv:"POL"`
	PGS    int    `csv:"PGS"`
	FT     int    `csv:"FT"`
	EYE    int    `csv:"EYE"`
	HBF    int    `csv:"HBF"`
	FR     int    `csv:"FR"`
	EMP    int    `csv:"EMP"`
	BF     int    `csv:"BF"`
	SW     int    `csv:"SW"`
	DO     int    `csv:"DO"`
}

// Topics returns the nine topic flags in TopicColumns order.
func (r Record) Topics() []int {
	return []int{r.PGS, r.FT, r.EYE, r.HBF, r.FR, r.EMP, r.BF, r.SW, r.DO}
}

// RecordsTable renders records as a table with the annotated file header.
func RecordsTable(records []Record) (*Table, error) {
	content, err := gocsv.MarshalString(&records)
	if err != nil {
		return nil, fmt.Errorf("encoding records: %w", err)
	}
	return ReadTable(strings.NewReader(content))
}

// Records decodes a table holding the annotated columns into records. Extra
// columns are ignored; a label cell that is not an integer is an error.
func Records(table *Table) ([]Record, error) {
	var b strings.Builder
	if err := EncodeCSV(&b, table); err != nil {
		return nil, err
	}
	var records []Record
	if err := gocsv.UnmarshalString(b.String(), &records); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return records, nil
}

// annotationColumns are the label columns of a Record.
func annotationColumns() []string {
	return append([]string{"SEN", "HAO", "POL"}, TopicColumns...)
}

// HasAnnotation reports whether table carries every TikNep label column.
func HasAnnotation(table *Table) bool {
	_, err := table.Columns(annotationColumns()...)
	return err == nil
}

// CheckAnnotation decodes the TikNep label columns and reports the first
// label code that is not an integer, or topic flag that is not 0 or 1.
func CheckAnnotation(table *Table) error {
	rows := make([]int, table.Len())
	for i := range rows {
		rows[i] = i
	}
	labels, err := table.Select(rows, annotationColumns())
	if err != nil {
		return err
	}
	records, err := Records(labels)
	if err != nil {
		return err
	}
	for i, r := range records {
		for j, flag := range r.Topics() {
			if flag != 0 && flag != 1 {
				return fmt.Errorf("row %d: topic %s must be 0 or 1, got %d", i+2, TopicColumns[j], flag)
			}
		}
	}
	return nil
}
