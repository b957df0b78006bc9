// Package errors provides structured error handling for pgsqlite.
//
// This package defines error types carrying a PostgreSQL SQLSTATE code so
// that any error raised deep inside translation, catalog emulation, or
// storage can be turned directly into an ErrorResponse on the wire without
// the dispatcher having to re-classify it. Error codes follow the SQLSTATE
// class/condition scheme defined by the PostgreSQL error codes appendix:
//   - 08xxx: Connection exceptions
//   - 22xxx: Data exceptions (type conversion, numeric, string)
//   - 23xxx: Integrity constraint violations
//   - 25xxx: Invalid transaction state
//   - 26xxx: Invalid SQL statement name (unknown prepared statement)
//   - 34xxx: Invalid cursor name (unknown portal)
//   - 42xxx: Syntax error or access rule violation
//   - 57xxx: Operator intervention (query cancelled, admin shutdown)
//   - XX000: Internal error
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
)

// Code is a PostgreSQL SQLSTATE error code, e.g. "42703" or "XX000".
type Code string

// SQLSTATE codes used throughout pgsqlite, aliased onto pgerrcode's
// generated constants so the values can never drift from the Postgres
// errcodes.txt table it's built from.
const (
	// Connection exceptions (08xxx)
	ErrConnectionException    Code = Code(pgerrcode.ConnectionException)
	ErrConnectionDoesNotExist Code = Code(pgerrcode.ConnectionDoesNotExist)
	ErrConnectionFailure      Code = Code(pgerrcode.ConnectionFailure)
	ErrProtocolViolation      Code = Code(pgerrcode.ProtocolViolation)

	// Data exceptions (22xxx)
	ErrStringDataRightTruncation Code = Code(pgerrcode.StringDataRightTruncation)
	ErrNumericValueOutOfRange    Code = Code(pgerrcode.NumericValueOutOfRange)
	ErrNullValueNotAllowed       Code = Code(pgerrcode.NullValueNotAllowed)
	ErrInvalidDatetimeFormat     Code = Code(pgerrcode.InvalidDatetimeFormat)
	ErrDivisionByZero            Code = Code(pgerrcode.DivisionByZero)
	ErrInvalidTextRepresentation Code = Code(pgerrcode.InvalidTextRepresentation)

	// Integrity constraint violations (23xxx)
	ErrIntegrityConstraintViolation Code = Code(pgerrcode.IntegrityConstraintViolation)
	ErrRestrictViolation            Code = Code(pgerrcode.RestrictViolation)
	ErrNotNullViolation             Code = Code(pgerrcode.NotNullViolation)
	ErrForeignKeyViolation          Code = Code(pgerrcode.ForeignKeyViolation)
	ErrUniqueViolation              Code = Code(pgerrcode.UniqueViolation)
	ErrCheckViolation               Code = Code(pgerrcode.CheckViolation)

	// Invalid transaction state (25xxx)
	ErrInvalidTransactionState Code = Code(pgerrcode.InvalidTransactionState)
	ErrActiveSQLTransaction    Code = Code(pgerrcode.ActiveSQLTransaction)
	ErrInFailedSQLTransaction  Code = Code(pgerrcode.InFailedSQLTransaction)
	ErrNoActiveSQLTransaction  Code = Code(pgerrcode.NoActiveSQLTransaction)

	// Invalid cursor / prepared statement name (26xxx, 34xxx, 42xxx)
	ErrInvalidSQLStatementName Code = Code(pgerrcode.InvalidSQLStatementName)
	ErrInvalidCursorName       Code = Code(pgerrcode.InvalidCursorName)
	ErrDuplicateCursor         Code = Code(pgerrcode.DuplicateCursor)

	// Syntax error or access rule violation (42xxx)
	ErrSyntaxError           Code = Code(pgerrcode.SyntaxError)
	ErrUndefinedColumn       Code = Code(pgerrcode.UndefinedColumn)
	ErrUndefinedTable        Code = Code(pgerrcode.UndefinedTable)
	ErrUndefinedFunction     Code = Code(pgerrcode.UndefinedFunction)
	ErrDuplicateColumn       Code = Code(pgerrcode.DuplicateColumn)
	ErrDuplicateTable        Code = Code(pgerrcode.DuplicateTable)
	ErrAmbiguousColumn       Code = Code(pgerrcode.AmbiguousColumn)
	ErrWrongObjectType       Code = Code(pgerrcode.WrongObjectType)
	ErrInsufficientPrivilege Code = Code(pgerrcode.InsufficientPrivilege)
	ErrDatatypeMismatch      Code = Code(pgerrcode.DatatypeMismatch)

	// Operator intervention (57xxx)
	ErrQueryCanceled                   Code = Code(pgerrcode.QueryCanceled)
	ErrAdminShutdown                   Code = Code(pgerrcode.AdminShutdown)
	ErrIdleInTransactionSessionTimeout Code = Code(pgerrcode.IdleInTransactionSessionTimeout)

	// Internal error (XX000) and feature gaps
	ErrInternalError       Code = Code(pgerrcode.InternalError)
	ErrDataCorrupted       Code = Code(pgerrcode.DataCorrupted)
	ErrFeatureNotSupported Code = Code(pgerrcode.FeatureNotSupported)
)

// String returns the SQLSTATE code, satisfying fmt.Stringer.
func (c Code) String() string {
	return string(c)
}

// Class returns the SQLSTATE class (the first two characters), which
// groups related conditions the way the Postgres docs table does.
func (c Code) Class() string {
	if len(c) < 2 {
		return string(c)
	}
	return string(c)[:2]
}

// Category returns a human-readable name for the error's class, used for
// metrics labels and log fields rather than wire output.
func (c Code) Category() string {
	switch c.Class() {
	case "08":
		return "connection"
	case "22":
		return "data"
	case "23":
		return "integrity_constraint"
	case "25":
		return "transaction_state"
	case "26", "34":
		return "invalid_name"
	case "42":
		return "syntax_or_access"
	case "57":
		return "operator_intervention"
	case "0A":
		return "feature_not_supported"
	case "XX":
		return "internal"
	default:
		return "unknown"
	}
}

// Severity indicates error severity, matching the PostgreSQL protocol's
// field values (used verbatim in the ErrorResponse Severity field).
type Severity int

const (
	SeverityWarning Severity = iota // WARNING / NOTICE — operation continues
	SeverityError                   // ERROR — current statement aborted
	SeverityFatal                   // FATAL — session terminated
	SeverityPanic                   // PANIC — all sessions terminated
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	case SeverityPanic:
		return "PANIC"
	default:
		return "ERROR"
	}
}

// Error is a structured error carrying a SQLSTATE code, context fields,
// and an optional cause, suitable for direct translation into a wire
// ErrorResponse message.
type Error struct {
	Code     Code
	Message  string
	Detail   string
	Hint     string
	Severity Severity

	Fields map[string]interface{}
	Cause  error

	Stack  []Frame
	Time   time.Time
	OpName string // e.g. "translate.Select", "catalog.LookupTable"
}

// Frame represents a stack frame captured for diagnostics.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString(string(e.Code))
	buf.WriteString(": ")
	buf.WriteString(e.Message)
	if e.Cause != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Cause.Error())
	}
	return buf.String()
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Format implements fmt.Formatter for detailed output.
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "%s [%s] %s: %s\n",
				e.Time.Format(time.RFC3339),
				e.Severity,
				string(e.Code),
				e.Message)

			if e.OpName != "" {
				fmt.Fprintf(f, "  Operation: %s\n", e.OpName)
			}
			if e.Detail != "" {
				fmt.Fprintf(f, "  Detail: %s\n", e.Detail)
			}
			if e.Hint != "" {
				fmt.Fprintf(f, "  Hint: %s\n", e.Hint)
			}
			if len(e.Fields) > 0 {
				fmt.Fprintf(f, "  Context:\n")
				for k, v := range e.Fields {
					fmt.Fprintf(f, "    %s: %v\n", k, v)
				}
			}
			if e.Cause != nil {
				fmt.Fprintf(f, "  Caused by: %v\n", e.Cause)
			}
			if len(e.Stack) > 0 {
				fmt.Fprintf(f, "  Stack:\n")
				for _, frame := range e.Stack {
					fmt.Fprintf(f, "    %s\n      %s:%d\n",
						frame.Function, frame.File, frame.Line)
				}
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(f, e.Error())
	case 'q':
		fmt.Fprintf(f, "%q", e.Error())
	}
}

// WithField adds a context field to the error.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithFields adds multiple context fields to the error.
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

// WithOp sets the operation name.
func (e *Error) WithOp(op string) *Error {
	e.OpName = op
	return e
}

// Builder helps construct errors fluently.
type Builder struct {
	code     Code
	message  string
	detail   string
	hint     string
	severity Severity
	cause    error
	fields   map[string]interface{}
	op       string
	stack    bool
}

// New starts building a new error with the given SQLSTATE code.
func New(code Code, message string) *Builder {
	return &Builder{
		code:     code,
		message:  message,
		severity: SeverityError,
	}
}

// Newf starts building a new error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Builder {
	return &Builder{
		code:     code,
		message:  fmt.Sprintf(format, args...),
		severity: SeverityError,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code Code, message string) *Builder {
	return &Builder{
		code:     code,
		message:  message,
		severity: SeverityError,
		cause:    cause,
	}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, code Code, format string, args ...interface{}) *Builder {
	return &Builder{
		code:     code,
		message:  fmt.Sprintf(format, args...),
		severity: SeverityError,
		cause:    cause,
	}
}

// Severity sets the error severity.
func (b *Builder) Severity(s Severity) *Builder {
	b.severity = s
	return b
}

// Fatal sets severity to fatal (session is terminated after this error).
func (b *Builder) Fatal() *Builder {
	b.severity = SeverityFatal
	return b
}

// Warning sets severity to warning (statement continues).
func (b *Builder) Warning() *Builder {
	b.severity = SeverityWarning
	return b
}

// WithCause adds a cause to the error.
func (b *Builder) WithCause(err error) *Builder {
	b.cause = err
	return b
}

// WithDetail sets the ErrorResponse Detail field.
func (b *Builder) WithDetail(detail string) *Builder {
	b.detail = detail
	return b
}

// WithDetailf sets a formatted ErrorResponse Detail field.
func (b *Builder) WithDetailf(format string, args ...interface{}) *Builder {
	b.detail = fmt.Sprintf(format, args...)
	return b
}

// WithHint sets the ErrorResponse Hint field.
func (b *Builder) WithHint(hint string) *Builder {
	b.hint = hint
	return b
}

// WithField adds a context field.
func (b *Builder) WithField(key string, value interface{}) *Builder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	b.fields[key] = value
	return b
}

// WithFields adds multiple context fields.
func (b *Builder) WithFields(fields map[string]interface{}) *Builder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	for k, v := range fields {
		b.fields[k] = v
	}
	return b
}

// WithOp sets the operation name.
func (b *Builder) WithOp(op string) *Builder {
	b.op = op
	return b
}

// WithStack captures a stack trace.
func (b *Builder) WithStack() *Builder {
	b.stack = true
	return b
}

// Build creates the Error.
func (b *Builder) Build() *Error {
	e := &Error{
		Code:     b.code,
		Message:  b.message,
		Detail:   b.detail,
		Hint:     b.hint,
		Severity: b.severity,
		Cause:    b.cause,
		Fields:   b.fields,
		OpName:   b.op,
		Time:     time.Now(),
	}
	if b.stack {
		e.Stack = captureStack(2)
	}
	return e
}

// Err is a shorthand for Build() that returns the error interface.
func (b *Builder) Err() error {
	return b.Build()
}

func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	callersFrames := runtime.CallersFrames(pcs)
	for {
		frame, more := callersFrames.Next()
		if !more {
			break
		}
		if strings.Contains(frame.Function, "runtime.") {
			continue
		}
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if len(frames) >= 10 {
			break
		}
	}
	return frames
}

// Helper constructors for conditions raised throughout the codebase.

// UndefinedColumn creates a 42703 error for an unknown column reference.
func UndefinedColumn(column, table string) *Builder {
	return Newf(ErrUndefinedColumn, "column %q does not exist", column).
		WithField("column", column).
		WithField("table", table)
}

// UndefinedTable creates a 42P01 error for an unknown relation.
func UndefinedTable(relation string) *Builder {
	return Newf(ErrUndefinedTable, "relation %q does not exist", relation).
		WithField("relation", relation)
}

// InvalidTextRepresentation creates a 22P02 error for a malformed literal
// of a given Postgres type (e.g. an unparsable UUID or NUMERIC literal).
func InvalidTextRepresentation(typeName, input string) *Builder {
	return Newf(ErrInvalidTextRepresentation, "invalid input syntax for type %s: %q", typeName, input).
		WithField("type", typeName).
		WithField("input", input)
}

// NumericOutOfRange creates a 22003 error when a value does not fit the
// target type's precision/scale or bit width.
func NumericOutOfRange(typeName string) *Builder {
	return Newf(ErrNumericValueOutOfRange, "%s out of range", typeName).
		WithField("type", typeName)
}

// UniqueViolation creates a 23505 error, mirroring SQLite's UNIQUE
// constraint failure after it has been mapped from the driver error.
func UniqueViolation(constraint string) *Builder {
	return Newf(ErrUniqueViolation, "duplicate key value violates unique constraint %q", constraint).
		WithField("constraint", constraint)
}

// NotNullViolation creates a 23502 error.
func NotNullViolation(column, table string) *Builder {
	return Newf(ErrNotNullViolation, "null value in column %q of relation %q violates not-null constraint", column, table).
		WithField("column", column).
		WithField("table", table)
}

// InFailedTransaction creates a 25P02 error: statements are rejected until
// the client issues ROLLBACK.
func InFailedTransaction() *Builder {
	return New(ErrInFailedSQLTransaction, "current transaction is aborted, commands ignored until end of transaction block")
}

// InvalidStatementName creates a 26000 error for an unknown prepared
// statement name referenced by Bind/Describe/Execute.
func InvalidStatementName(name string) *Builder {
	return Newf(ErrInvalidSQLStatementName, "prepared statement %q does not exist", name).
		WithField("statement", name)
}

// InvalidCursorName creates a 34000 error for an unknown portal name.
func InvalidCursorName(name string) *Builder {
	return Newf(ErrInvalidCursorName, "portal %q does not exist", name).
		WithField("portal", name)
}

// ProtocolViolation creates a 08P01 error for a malformed wire message.
func ProtocolViolation(reason string) *Builder {
	return New(ErrProtocolViolation, reason).Fatal()
}

// QueryCanceled creates a 57014 error in response to a CancelRequest.
func QueryCanceled() *Builder {
	return New(ErrQueryCanceled, "canceling statement due to user request")
}

// FeatureNotSupported creates a 0A000 error for a construct pgsqlite
// deliberately does not translate.
func FeatureNotSupported(feature string) *Builder {
	return Newf(ErrFeatureNotSupported, "%s is not supported", feature).
		WithField("feature", feature)
}

// Internal creates an XX000 error for unexpected internal conditions.
func Internal(msg string) *Builder {
	return New(ErrInternalError, msg).WithStack()
}

// Extraction helpers

// GetCode extracts the SQLSTATE code from an error, or ErrInternalError.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternalError
}

// GetSeverity extracts the severity from an error.
func GetSeverity(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityError
}

// GetFields extracts context fields from an error.
func GetFields(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// IsCode checks if an error carries a specific SQLSTATE code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsCategory checks if an error belongs to a SQLSTATE class category.
func IsCategory(err error, category string) bool {
	return GetCode(err).Category() == category
}

// IsFatal checks if an error terminates the session.
func IsFatal(err error) bool {
	s := GetSeverity(err)
	return s >= SeverityFatal
}

// Standard library compatibility

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines multiple errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
