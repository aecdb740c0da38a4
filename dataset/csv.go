// Package dataset loads the light-curve tables, cleans missing cells, separates
// the label column and recovers the original train/test partition.
//
// Cells stay strings until ToFrame so the placeholder token can be recognised
// before numeric parsing. After ToFrame a table is a Frame: named, ordered
// float64 columns over a gonum matrix.
package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// RawTable is a CSV file as read: a header and string cells.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// NRows returns the number of data rows.
func (t *RawTable) NRows() int {
	return len(t.Rows)
}

// ReadCSV reads a CSV file whose first line is the header.
func ReadCSV(path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := ParseCSV(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// ParseCSV parses CSV data whose first record is the header. Every record must
// have as many fields as the header.
func ParseCSV(r io.Reader) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "missing header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := &RawTable{Header: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read record %d", len(t.Rows)+1)
		}
		t.Rows = append(t.Rows, record)
	}
	return t, nil
}

// Concat appends b's rows after a's and returns the combined table together
// with the boundary, the number of rows taken from a. Row order is preserved so
// the boundary stays valid. The headers must match exactly.
func Concat(a, b *RawTable) (*RawTable, int, error) {
	if len(a.Header) != len(b.Header) {
		return nil, 0, errors.NewSchemaError("Concat", -1,
			strconv.Itoa(len(a.Header))+" columns", strconv.Itoa(len(b.Header))+" columns")
	}
	for i := range a.Header {
		if a.Header[i] != b.Header[i] {
			return nil, 0, errors.NewSchemaError("Concat", i, a.Header[i], b.Header[i])
		}
	}

	rows := make([][]string, 0, len(a.Rows)+len(b.Rows))
	rows = append(rows, a.Rows...)
	rows = append(rows, b.Rows...)
	header := append([]string(nil), a.Header...)
	return &RawTable{Header: header, Rows: rows}, len(a.Rows), nil
}
