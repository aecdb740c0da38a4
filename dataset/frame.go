package dataset

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

// DefaultPlaceholder is the token the source tables use for a missing reading.
const DefaultPlaceholder = "-"

// naTokens are the cell values read as missing in addition to the placeholder.
// They are the default NA strings of the tooling that produced the tables.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsMissingToken reports whether cell is read as missing, given the placeholder.
func IsMissingToken(cell, placeholder string) bool {
	cell = strings.TrimSpace(cell)
	if cell == placeholder {
		return true
	}
	_, ok := naTokens[cell]
	return ok
}

// Frame is a table of named float64 columns. Column order is significant and
// NaN marks a missing cell.
type Frame struct {
	Columns []string
	Data    *mat.Dense
}

// ToFrame parses every cell as float64. The placeholder and the NA tokens become
// NaN; any other unparseable cell is a ParseError naming its row and column.
func (t *RawTable) ToFrame(placeholder string) (*Frame, error) {
	rows, cols := len(t.Rows), len(t.Header)
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "ToFrame")
	}

	data := make([]float64, rows*cols)
	for i, record := range t.Rows {
		if len(record) != cols {
			return nil, errors.NewDimensionError("ToFrame", cols, len(record), 1)
		}
		for j, cell := range record {
			if IsMissingToken(cell, placeholder) {
				data[i*cols+j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.NewParseError(i, t.Header[j], cell, err)
			}
			data[i*cols+j] = v
		}
	}
	return &Frame{
		Columns: append([]string(nil), t.Header...),
		Data:    mat.NewDense(rows, cols, data),
	}, nil
}

// Dims returns the number of rows and columns.
func (f *Frame) Dims() (int, int) {
	return f.Data.Dims()
}

// ColumnIndex returns the position of the named column or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// CountMissing returns the number of NaN cells.
func (f *Frame) CountMissing() int {
	n := 0
	raw := f.Data.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols] {
			if math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

// FillMissing replaces every NaN with value and returns how many were replaced.
func (f *Frame) FillMissing(value float64) int {
	n := 0
	f.Data.Apply(func(_, _ int, v float64) float64 {
		if math.IsNaN(v) {
			n++
			return value
		}
		return v
	}, f.Data)
	return n
}

// SliceRows returns a copy of rows [from, to).
func (f *Frame) SliceRows(from, to int) (*Frame, error) {
	rows, cols := f.Dims()
	if from < 0 || to > rows || from >= to {
		return nil, errors.NewValueError("SliceRows",
			"invalid row range ["+strconv.Itoa(from)+", "+strconv.Itoa(to)+") for "+strconv.Itoa(rows)+" rows")
	}
	return &Frame{
		Columns: append([]string(nil), f.Columns...),
		Data:    mat.DenseCopyOf(f.Data.Slice(from, to, 0, cols)),
	}, nil
}

// DropColumn returns a frame without the named column, and that column's values.
// The remaining columns keep their order.
func (f *Frame) DropColumn(name string) (*Frame, []float64, error) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, nil, errors.NewValidationError("column", "not found", name)
	}
	rows, cols := f.Dims()
	if cols < 2 {
		return nil, nil, errors.NewValueError("DropColumn", "no feature columns left after dropping "+name)
	}

	dropped := mat.Col(nil, idx, f.Data)
	out := mat.NewDense(rows, cols-1, nil)
	for i := 0; i < rows; i++ {
		src := f.Data.RawRowView(i)
		dst := out.RawRowView(i)
		copy(dst[:idx], src[:idx])
		copy(dst[idx:], src[idx+1:])
	}

	columns := make([]string, 0, cols-1)
	columns = append(columns, f.Columns[:idx]...)
	columns = append(columns, f.Columns[idx+1:]...)
	return &Frame{Columns: columns, Data: out}, dropped, nil
}
