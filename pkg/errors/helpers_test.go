package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCodeCategory(t *testing.T) {
	cases := map[Code]string{
		ErrConnectionException:    "connection",
		ErrNumericValueOutOfRange: "data",
		ErrUniqueViolation:        "integrity_constraint",
		ErrInFailedSQLTransaction: "transaction_state",
		ErrInvalidSQLStatementName: "invalid_name",
		ErrInvalidCursorName:      "invalid_name",
		ErrSyntaxError:            "syntax_or_access",
		ErrQueryCanceled:          "operator_intervention",
		ErrFeatureNotSupported:    "feature_not_supported",
		ErrInternalError:          "internal",
		Code("99999"):             "unknown",
	}
	for code, want := range cases {
		if got := code.Category(); got != want {
			t.Errorf("Code(%q).Category() = %q, want %q", code, got, want)
		}
	}
}

func TestSeverityString(t *testing.T) {
	cases := map[Severity]string{
		SeverityWarning: "WARNING",
		SeverityError:   "ERROR",
		SeverityFatal:   "FATAL",
		SeverityPanic:   "PANIC",
		Severity(99):    "ERROR",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Severity(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ErrInternalError, "writing page").Err()
	if got := err.Error(); !strings.Contains(got, "disk full") || !strings.Contains(got, "writing page") {
		t.Errorf("Error() = %q, want it to mention both the message and the cause", got)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, ErrInternalError, "writing page").Err()
	pe := err.(*Error)
	if pe.Unwrap() != cause {
		t.Errorf("Unwrap() did not return the original cause")
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should find the wrapped cause through Unwrap")
	}
}

func TestFormatVerbose(t *testing.T) {
	err := New(ErrUndefinedTable, "relation \"ghost\" does not exist").
		WithDetail("no such table").
		WithHint("check spelling").
		WithOp("catalog.Lookup").
		WithCause(errors.New("root cause")).
		Err().(*Error)

	out := fmt.Sprintf("%+v", err)
	for _, want := range []string{"42P01", "catalog.Lookup", "no such table", "check spelling", "root cause"} {
		if !strings.Contains(out, want) {
			t.Errorf("%%+v output missing %q: %s", want, out)
		}
	}
}

func TestFormatPlainAndQuoted(t *testing.T) {
	err := New(ErrSyntaxError, "bad token").Err().(*Error)
	if got := fmt.Sprintf("%s", err); got != err.Error() {
		t.Errorf("%%s = %q, want %q", got, err.Error())
	}
	if got := fmt.Sprintf("%q", err); got != fmt.Sprintf("%q", err.Error()) {
		t.Errorf("%%q = %q, want %q", got, fmt.Sprintf("%q", err.Error()))
	}
}

func TestWithFieldAndWithFields(t *testing.T) {
	err := New(ErrUndefinedColumn, "oops").Err().(*Error)
	err.WithField("a", 1).WithFields(map[string]interface{}{"b": 2, "c": 3})
	if err.Fields["a"] != 1 || err.Fields["b"] != 2 || err.Fields["c"] != 3 {
		t.Errorf("unexpected Fields: %+v", err.Fields)
	}
}

func TestBuilderWithStackCapturesFrames(t *testing.T) {
	err := New(ErrInternalError, "boom").WithStack().Err().(*Error)
	if len(err.Stack) == 0 {
		t.Errorf("expected WithStack to capture at least one frame")
	}
}

func TestGetCodeSeverityFields(t *testing.T) {
	err := New(ErrUniqueViolation, "dup").WithField("k", "v").Fatal().Err()
	if GetCode(err) != ErrUniqueViolation {
		t.Errorf("GetCode = %q, want %q", GetCode(err), ErrUniqueViolation)
	}
	if GetSeverity(err) != SeverityFatal {
		t.Errorf("GetSeverity = %v, want SeverityFatal", GetSeverity(err))
	}
	if GetFields(err)["k"] != "v" {
		t.Errorf("GetFields()[k] = %v, want v", GetFields(err)["k"])
	}
}

func TestGetCodeOnPlainError(t *testing.T) {
	if got := GetCode(errors.New("plain")); got != ErrInternalError {
		t.Errorf("GetCode on a non-*Error = %q, want ErrInternalError", got)
	}
	if got := GetSeverity(errors.New("plain")); got != SeverityError {
		t.Errorf("GetSeverity on a non-*Error = %v, want SeverityError", got)
	}
	if got := GetFields(errors.New("plain")); got != nil {
		t.Errorf("GetFields on a non-*Error = %v, want nil", got)
	}
}

func TestIsCodeAndIsCategory(t *testing.T) {
	err := New(ErrUniqueViolation, "dup").Err()
	if !IsCode(err, ErrUniqueViolation) {
		t.Errorf("IsCode should match the error's own code")
	}
	if IsCode(err, ErrNotNullViolation) {
		t.Errorf("IsCode should not match a different code")
	}
	if !IsCategory(err, "integrity_constraint") {
		t.Errorf("IsCategory should match the error's category")
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(New(ErrSyntaxError, "oops").Err()) {
		t.Errorf("a plain ERROR severity should not be fatal")
	}
	if !IsFatal(New(ErrProtocolViolation, "bad message").Fatal().Err()) {
		t.Errorf("a Fatal-severity error should report IsFatal")
	}
}

func TestHelperConstructors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code Code
	}{
		{"UndefinedColumn", UndefinedColumn("foo", "bar").Err(), ErrUndefinedColumn},
		{"UndefinedTable", UndefinedTable("ghost").Err(), ErrUndefinedTable},
		{"InvalidTextRepresentation", InvalidTextRepresentation("uuid", "nope").Err(), ErrInvalidTextRepresentation},
		{"NumericOutOfRange", NumericOutOfRange("numeric(4,1)").Err(), ErrNumericValueOutOfRange},
		{"UniqueViolation", UniqueViolation("widgets_pkey").Err(), ErrUniqueViolation},
		{"NotNullViolation", NotNullViolation("name", "widgets").Err(), ErrNotNullViolation},
		{"InFailedTransaction", InFailedTransaction().Err(), ErrInFailedSQLTransaction},
		{"InvalidStatementName", InvalidStatementName("s1").Err(), ErrInvalidSQLStatementName},
		{"InvalidCursorName", InvalidCursorName("p1").Err(), ErrInvalidCursorName},
		{"QueryCanceled", QueryCanceled().Err(), ErrQueryCanceled},
		{"FeatureNotSupported", FeatureNotSupported("LATERAL join").Err(), ErrFeatureNotSupported},
		{"Internal", Internal("unexpected nil").Err(), ErrInternalError},
	}
	for _, c := range cases {
		if GetCode(c.err) != c.code {
			t.Errorf("%s: code = %q, want %q", c.name, GetCode(c.err), c.code)
		}
	}
}

func TestProtocolViolationIsFatal(t *testing.T) {
	if !IsFatal(ProtocolViolation("bad startup packet").Err()) {
		t.Errorf("ProtocolViolation should construct a fatal error")
	}
}

func TestInternalCapturesStack(t *testing.T) {
	err := Internal("disk write failed").Err().(*Error)
	if len(err.Stack) == 0 {
		t.Errorf("Internal() should capture a stack trace")
	}
}

func TestStdlibCompatibilityShims(t *testing.T) {
	base := errors.New("base")
	wrapped := fmt.Errorf("wrapped: %w", base)
	if !Is(wrapped, base) {
		t.Errorf("Is should delegate to errors.Is")
	}

	var target *Error
	structured := New(ErrSyntaxError, "bad token").Err()
	if !As(structured, &target) {
		t.Errorf("As should delegate to errors.As")
	}

	joined := Join(errors.New("a"), errors.New("b"))
	if !strings.Contains(joined.Error(), "a") || !strings.Contains(joined.Error(), "b") {
		t.Errorf("Join() = %q, want it to contain both constituent errors", joined.Error())
	}
}

func TestNewfAndWrapf(t *testing.T) {
	err := Newf(ErrUndefinedColumn, "column %q missing", "id").Err()
	if !strings.Contains(err.Error(), "\"id\"") {
		t.Errorf("Newf did not format its arguments: %q", err.Error())
	}

	cause := errors.New("root")
	wrapped := Wrapf(cause, ErrInternalError, "op %d failed", 7).Err()
	if !strings.Contains(wrapped.Error(), "op 7 failed") {
		t.Errorf("Wrapf did not format its arguments: %q", wrapped.Error())
	}
}
