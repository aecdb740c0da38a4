package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/exotrain/pkg/errors"
)

const trainCSV = `LABEL,FLUX.1,FLUX.2,FLUX.3
2,93.85,83.81,20.10
1,-38.88,-,-20.35
1,532.64,535.92,513.73
`

const testCSV = `LABEL,FLUX.1,FLUX.2,FLUX.3
2,119.88,100.21,86.46
1,5736.59,-,5654.00
`

func mustParse(t *testing.T, s string) *RawTable {
	t.Helper()
	tbl, err := ParseCSV(strings.NewReader(s))
	require.NoError(t, err)
	return tbl
}

func TestParseCSV(t *testing.T) {
	tbl := mustParse(t, trainCSV)
	assert.Equal(t, []string{"LABEL", "FLUX.1", "FLUX.2", "FLUX.3"}, tbl.Header)
	assert.Equal(t, 3, tbl.NRows())
	assert.Equal(t, "-", tbl.Rows[1][2])
}

func TestParseCSVErrors(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = ParseCSV(strings.NewReader("A,B\n1,2,3\n"))
	assert.Error(t, err, "ragged records must be rejected")
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exoTrain.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeff"+trainCSV), 0o644))

	tbl, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, "LABEL", tbl.Header[0], "byte order mark must be stripped")

	_, err = ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestConcatPreservesOrderAndBoundary(t *testing.T) {
	a, b := mustParse(t, trainCSV), mustParse(t, testCSV)
	all, boundary, err := Concat(a, b)
	require.NoError(t, err)

	assert.Equal(t, 3, boundary)
	require.Equal(t, 5, all.NRows())
	if diff := cmp.Diff(a.Rows, all.Rows[:boundary]); diff != "" {
		t.Errorf("train rows changed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(b.Rows, all.Rows[boundary:]); diff != "" {
		t.Errorf("test rows changed (-want +got):\n%s", diff)
	}
}

func TestConcatSchemaMismatch(t *testing.T) {
	a := mustParse(t, trainCSV)

	renamed := mustParse(t, strings.Replace(testCSV, "FLUX.3", "FLUX.9", 1))
	_, _, err := Concat(a, renamed)
	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.Equal(t, 3, schemaErr.Column)

	narrow := mustParse(t, "LABEL,FLUX.1\n1,2\n")
	_, _, err = Concat(a, narrow)
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, -1, schemaErr.Column)
}

func TestToFrameAndFillMissing(t *testing.T) {
	a, b := mustParse(t, trainCSV), mustParse(t, testCSV)
	all, _, err := Concat(a, b)
	require.NoError(t, err)

	f, err := all.ToFrame(DefaultPlaceholder)
	require.NoError(t, err)
	assert.Equal(t, 2, f.CountMissing())
	assert.True(t, math.IsNaN(f.Data.At(1, 2)))
	assert.True(t, math.IsNaN(f.Data.At(4, 2)))
	assert.Equal(t, -38.88, f.Data.At(1, 1), "negative numbers are not placeholders")

	assert.Equal(t, 2, f.FillMissing(0))
	assert.Zero(t, f.CountMissing())
	assert.Zero(t, f.Data.At(1, 2))
	assert.Zero(t, f.Data.At(4, 2))
	assert.Equal(t, 93.85, f.Data.At(0, 1))
}

func TestToFrameNATokens(t *testing.T) {
	tbl := mustParse(t, "LABEL,A,B,C\n1,,NaN,NA\n2,null,3,-\n")
	f, err := tbl.ToFrame(DefaultPlaceholder)
	require.NoError(t, err)
	assert.Equal(t, 5, f.CountMissing())
}

func TestToFrameParseError(t *testing.T) {
	tbl := mustParse(t, "LABEL,A\n1,2\n1,abc\n")
	_, err := tbl.ToFrame(DefaultPlaceholder)
	var parseErr *errors.ParseError
	require.True(t, errors.As(err, &parseErr), "got %v", err)
	assert.Equal(t, 1, parseErr.Row)
	assert.Equal(t, "A", parseErr.Column)
	assert.Equal(t, "abc", parseErr.Value)
}

func TestToFrameEmpty(t *testing.T) {
	tbl := mustParse(t, "LABEL,A\n")
	_, err := tbl.ToFrame(DefaultPlaceholder)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestSplitLabelRemap(t *testing.T) {
	tbl := mustParse(t, trainCSV)
	f, err := tbl.ToFrame(DefaultPlaceholder)
	require.NoError(t, err)
	f.FillMissing(0)

	X, y, err := SplitLabel(f, DefaultLabelColumn, DefaultLabelMap, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, y)
	assert.Equal(t, []string{"FLUX.1", "FLUX.2", "FLUX.3"}, X.Columns)

	r, c := X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 93.85, X.Data.At(0, 0))
	assert.Equal(t, -20.35, X.Data.At(1, 2))
}

func TestSplitLabelOnlyBinaryValues(t *testing.T) {
	f := &Frame{
		Columns: []string{"LABEL", "F"},
		Data:    mat.NewDense(6, 2, []float64{1, 0, 2, 0, 2, 0, 1, 0, 1, 0, 2, 0}),
	}
	_, y, err := SplitLabel(f, DefaultLabelColumn, DefaultLabelMap, true)
	require.NoError(t, err)
	for i, v := range y {
		if v != 0 && v != 1 {
			t.Errorf("y[%d] = %v, want 0 or 1", i, v)
		}
	}
}

func TestSplitLabelUnknownCodes(t *testing.T) {
	f := &Frame{
		Columns: []string{"F", "LABEL"},
		Data:    mat.NewDense(3, 2, []float64{0.5, 1, 0.7, 3, 0.9, 2}),
	}

	_, _, err := SplitLabel(f, DefaultLabelColumn, DefaultLabelMap, true)
	var labelErr *errors.UnknownLabelError
	require.True(t, errors.As(err, &labelErr), "got %v", err)
	assert.Equal(t, 1, labelErr.Row)
	assert.Equal(t, []int{1, 2}, labelErr.Known)

	X, y, err := SplitLabel(f, DefaultLabelColumn, DefaultLabelMap, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 1}, y, "unknown codes pass through when not strict")
	assert.Equal(t, []string{"F"}, X.Columns)
}

func TestSplitLabelMissingColumn(t *testing.T) {
	f := &Frame{Columns: []string{"A", "B"}, Data: mat.NewDense(1, 2, []float64{1, 2})}
	_, _, err := SplitLabel(f, DefaultLabelColumn, DefaultLabelMap, true)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestSplitAt(t *testing.T) {
	X := &Frame{Columns: []string{"A", "B"}, Data: mat.NewDense(5, 2, []float64{
		0, 1,
		2, 3,
		4, 5,
		6, 7,
		8, 9,
	})}
	y := []float64{0, 1, 0, 1, 1}

	train, test, err := SplitAt(X, y, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Len())
	assert.Equal(t, 2, test.Len())
	assert.Equal(t, []float64{0, 1, 0}, train.Y)
	assert.Equal(t, []float64{1, 1}, test.Y)
	assert.Equal(t, 6.0, test.X.Data.At(0, 0))
	assert.Equal(t, []string{"A", "B"}, test.X.Columns)

	train.X.Data.Set(0, 0, 100)
	assert.Zero(t, X.Data.At(0, 0), "partitions must not alias the source frame")

	_, _, err = SplitAt(X, y, 0)
	assert.Error(t, err)
	_, _, err = SplitAt(X, y, 5)
	assert.Error(t, err)
	_, _, err = SplitAt(X, y[:4], 2)
	assert.Error(t, err)
}

func TestClassCounts(t *testing.T) {
	counts := ClassCounts([]float64{0, 0, 1, 0, 1})
	assert.Equal(t, map[float64]int{0: 3, 1: 2}, counts)
}
