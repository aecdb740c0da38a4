package errors

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "exotrain: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "exotrain: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("StandardScaler.Transform", 7, 6, 1)

	want := "exotrain: StandardScaler.Transform: dimension mismatch on axis 1 (features). Expected 7, got 6"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("error should be castable to *DimensionError")
	}
	if dimErr.Expected != 7 || dimErr.Got != 6 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("StandardScaler", "Transform")

	want := "exotrain: StandardScaler: this model is not fitted yet. Call Fit() before using Transform()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFitted *NotFittedError
	if !As(err, &notFitted) {
		t.Error("error should be castable to *NotFittedError")
	}
}

func TestSchemaError(t *testing.T) {
	tests := []struct {
		name   string
		column int
		want   string
	}{
		{
			name:   "column name",
			column: 3,
			want:   `exotrain: Concat: schema mismatch at column 3: expected "FLUX.3", got "FLUX.4"`,
		},
		{
			name:   "column count",
			column: -1,
			want:   "exotrain: Concat: schema mismatch: FLUX.3, got FLUX.4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSchemaError("Concat", tt.column, "FLUX.3", "FLUX.4")
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
			var schemaErr *SchemaError
			if !As(err, &schemaErr) {
				t.Error("error should be castable to *SchemaError")
			}
		})
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("invalid syntax")
	err := NewParseError(4, "FLUX.2", "abc", cause)
	if !Is(err, cause) {
		t.Error("ParseError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), `"FLUX.2"`) {
		t.Errorf("message should name the column: %s", err.Error())
	}
}

func TestUnknownLabelError(t *testing.T) {
	err := NewUnknownLabelError(9, 3, []int{1, 2})
	var labelErr *UnknownLabelError
	if !As(err, &labelErr) {
		t.Fatal("error should be castable to *UnknownLabelError")
	}
	if labelErr.Row != 9 || labelErr.Code != 3 {
		t.Errorf("unexpected fields: %+v", labelErr)
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s", "StandardScaler.Fit")
	if !Is(wrapped, ErrEmptyData) {
		t.Error("expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in StandardScaler.Fit") {
		t.Error("expected wrapped error to contain wrapping message")
	}
	if Cause(Wrap(wrapped, "outer")) != ErrEmptyData {
		t.Error("expected Cause to return the sentinel")
	}
}

func TestCause(t *testing.T) {
	_, openErr := os.Open(filepath.Join(t.TempDir(), "missing", "exoTrain.csv"))
	schema := NewSchemaError("Concat", 3, "FLUX.3", "FLUX.9")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"path error keeps its type", Wrapf(Wrapf(openErr, "open %s", "exoTrain.csv"), "stage %s", "ingest"), "*fs.PathError"},
		{"structured error under wrappers", Wrap(Wrap(schema, "stage ingest"), "run"), "*errors.SchemaError"},
		{"structured error under fmt wrapping", fmt.Errorf("stage labels: %w", NewUnknownLabelError(1, 3, []int{1, 2})), "*errors.UnknownLabelError"},
		{"sentinel", Wrap(Wrapf(ErrSingleClass, "SMOTE"), "stage resample"), fmt.Sprintf("%T", ErrSingleClass)},
		{"context cancellation", Wrapf(context.Canceled, "epoch %d interrupted", 2), fmt.Sprintf("%T", context.Canceled)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprintf("%T", Cause(tt.err)); got != tt.want {
				t.Errorf("Cause type = %s, want %s", got, tt.want)
			}
		})
	}

	var schemaErr *SchemaError
	if !As(Cause(Wrap(schema, "stage ingest")), &schemaErr) || schemaErr.Column != 3 {
		t.Errorf("expected the SchemaError itself, got %v", Cause(Wrap(schema, "stage ingest")))
	}
	if Cause(nil) != nil {
		t.Error("expected Cause(nil) to be nil")
	}
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewZeroVarianceWarning([]string{"FLUX.1"}))
	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	SetZerologWarnFunc(func(w error) {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			logger.Warn().Object("warning", m).Msg(w.Error())
		}
	})
	defer SetZerologWarnFunc(nil)

	Warn(NewZeroVarianceWarning([]string{"FLUX.1", "FLUX.2"}))
	if len(got) != 1 {
		t.Error("zerolog sink should take precedence over the handler")
	}
	if !strings.Contains(buf.String(), `"type":"ZeroVarianceWarning"`) {
		t.Errorf("expected structured warning, got %s", buf.String())
	}
}

func TestZeroVarianceWarningTruncates(t *testing.T) {
	w := NewZeroVarianceWarning([]string{"a", "b", "c", "d", "e", "f", "g"})
	msg := w.Error()
	if !strings.HasPrefix(msg, "7 feature(s)") || !strings.HasSuffix(msg, ", ...]") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestCheckMatrix(t *testing.T) {
	ok := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if err := CheckMatrix("ok", ok, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := mat.NewDense(2, 2, []float64{1, math.NaN(), math.Inf(1), 4})
	err := CheckMatrix("bad", bad, 3)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if len(numErr.Values) != 2 || numErr.Iteration != 3 {
		t.Errorf("unexpected fields: %+v", numErr)
	}
}

func TestCheckScalarAndValues(t *testing.T) {
	if err := CheckScalar("loss", 0.3, 1); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckScalar("loss", math.NaN(), 1); err == nil {
		t.Error("expected error for NaN")
	}
	if err := CheckValues("grad", []float64{1, math.Inf(-1)}, 2); err == nil {
		t.Error("expected error for -Inf")
	}
}
