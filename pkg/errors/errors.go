// Package errors provides the structured errors and warnings used across exotrain.
//
// Errors carry a stack trace through cockroachdb/errors and implement
// zerolog.LogObjectMarshaler so they can be attached to log events as objects.
// Warnings are not returned; they are routed through Warn to a pluggable handler.
package errors

import (
	"fmt"
	"log"
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("exotrain-warning: %v\n", w)
	}
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the fallback handler that receives warnings.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a zerolog sink for warnings. It takes precedence over
// the handler set with SetWarningHandler. Passing nil removes it.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ZeroVarianceWarning is emitted when a scaler meets feature columns whose training
// variance is zero. Those columns are centred but not divided.
type ZeroVarianceWarning struct {
	Features []string
}

func (w *ZeroVarianceWarning) Error() string {
	shown := w.Features
	suffix := ""
	if len(shown) > 5 {
		shown = shown[:5]
		suffix = ", ..."
	}
	return fmt.Sprintf("%d feature(s) have zero variance, scale clamped to 1: [%s%s]",
		len(w.Features), strings.Join(shown, ", "), suffix)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ZeroVarianceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Strs("features", w.Features).
		Int("count", len(w.Features)).
		Str("type", "ZeroVarianceWarning")
}

// NewZeroVarianceWarning creates a ZeroVarianceWarning.
func NewZeroVarianceWarning(features []string) *ZeroVarianceWarning {
	return &ZeroVarianceWarning{Features: features}
}

// UndefinedMetricWarning is emitted when a metric cannot be computed, for example
// precision for a class that was never predicted.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// NotFittedError is returned when Transform, Predict or Save is called on an
// estimator that has not been fitted.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("exotrain: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a size mismatch along one axis.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("exotrain: %s: dimension mismatch on axis %d (%s). Expected %d, got %d",
		e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError reports an invalid parameter value.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("exotrain: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError reports an argument whose value is unusable.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("exotrain: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError is a general model failure that may wrap a cause.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exotrain: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("exotrain: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// SchemaError is returned when two tables that must share a header do not.
type SchemaError struct {
	Op       string
	Column   int
	Expected string
	Got      string
}

func (e *SchemaError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("exotrain: %s: schema mismatch: %s, got %s", e.Op, e.Expected, e.Got)
	}
	return fmt.Sprintf("exotrain: %s: schema mismatch at column %d: expected %q, got %q",
		e.Op, e.Column, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("column", e.Column).
		Str("expected", e.Expected).
		Str("got", e.Got).
		Str("type", "SchemaError")
}

// NewSchemaError creates a SchemaError with a stack trace. A negative column means
// the mismatch is in the column count.
func NewSchemaError(op string, column int, expected, got string) error {
	return errors.WithStack(&SchemaError{Op: op, Column: column, Expected: expected, Got: got})
}

// ParseError reports a cell that is neither numeric nor a missing-value token.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("exotrain: cannot parse %q in row %d, column %q as float64", e.Value, e.Row, e.Column)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ParseError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("row", e.Row).
		Str("column", e.Column).
		Str("value", e.Value).
		Str("type", "ParseError")
}

// NewParseError creates a ParseError with a stack trace.
func NewParseError(row int, column, value string, cause error) error {
	return errors.WithStack(&ParseError{Row: row, Column: column, Value: value, Err: cause})
}

// UnknownLabelError is returned when a label code has no entry in the label map.
type UnknownLabelError struct {
	Row   int
	Code  float64
	Known []int
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("exotrain: unknown label code %v in row %d (known codes: %v)", e.Code, e.Row, e.Known)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnknownLabelError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("row", e.Row).
		Float64("code", e.Code).
		Ints("known", e.Known).
		Str("type", "UnknownLabelError")
}

// NewUnknownLabelError creates an UnknownLabelError with a stack trace.
func NewUnknownLabelError(row int, code float64, known []int) error {
	return errors.WithStack(&UnknownLabelError{Row: row, Code: code, Known: known})
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message and a stack trace.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message and a stack trace.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Cause returns the error a failure is about: a sentinel of this package, the
// first structured error of the chain, or else the first error that is not a
// message or stack wrapper. A *fs.PathError is returned as is, not its errno.
func Cause(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	var structured zerolog.LogObjectMarshaler
	if errors.As(err, &structured) {
		if e, ok := structured.(error); ok {
			return e
		}
	}
	for isWrapper(err) {
		next := errors.UnwrapOnce(err)
		if next == nil {
			break
		}
		err = next
	}
	return err
}

// isWrapper reports whether err only adds a message, a stack or other
// annotations to its cause.
func isWrapper(err error) bool {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	pkg := t.PkgPath()
	return pkg == "fmt" || strings.HasPrefix(pkg, "github.com/cockroachdb/errors")
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// NumericalInstabilityError reports NaN or Inf values produced by a computation.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	var b strings.Builder
	for i, v := range e.Values {
		if i >= 5 {
			b.WriteString(", ...")
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.6g", v)
	}
	return fmt.Sprintf("exotrain: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, b.String())
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("iteration", e.Iteration).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// InputShapeError reports a tensor whose shape differs from the one a model was
// built for.
type InputShapeError struct {
	Phase    string // "training", "prediction", "transform"
	Expected []int
	Got      []int
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("exotrain: input shape mismatch in %s phase. Expected shape %v, got %v",
		e.Phase, e.Expected, e.Got)
}

// NewInputShapeError creates an InputShapeError with a stack trace.
func NewInputShapeError(phase string, expected, got []int) error {
	return errors.WithStack(&InputShapeError{Phase: phase, Expected: expected, Got: got})
}

var (
	// ErrEmptyData is returned for inputs with no rows or no columns.
	ErrEmptyData = New("empty data")

	// ErrSingleClass is returned when a binary task sees only one class.
	ErrSingleClass = New("only one class present")
)

var sentinels = []error{ErrEmptyData, ErrSingleClass}
