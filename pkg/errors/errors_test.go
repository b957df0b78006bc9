package errors

import "testing"

// These codes are wired onto pgerrcode's generated constants; pin the
// values Postgres clients actually expect on the wire so a pgerrcode
// rename or mis-aliasing is caught here rather than at a client.
func TestSQLSTATECodes(t *testing.T) {
	cases := map[Code]string{
		ErrUniqueViolation:   "23505",
		ErrNotNullViolation:  "23502",
		ErrUndefinedColumn:   "42703",
		ErrUndefinedTable:    "42P01",
		ErrSyntaxError:       "42601",
		ErrProtocolViolation: "08P01",
		ErrInFailedSQLTransaction: "25P02",
		ErrInternalError:     "XX000",
		ErrDataCorrupted:     "XX001",
	}
	for code, want := range cases {
		if string(code) != want {
			t.Errorf("code = %q, want %q", string(code), want)
		}
	}
}

func TestCodeClass(t *testing.T) {
	if got := ErrUniqueViolation.Class(); got != "23" {
		t.Errorf("Class() = %q, want %q", got, "23")
	}
}

func TestBuilderErr(t *testing.T) {
	err := New(ErrUndefinedTable, "relation \"ghost\" does not exist").
		WithDetail("no such table").
		WithHint("check the table name").
		Err()

	pe, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if pe.Code != ErrUndefinedTable {
		t.Errorf("Code = %q, want %q", pe.Code, ErrUndefinedTable)
	}
	if pe.Detail != "no such table" || pe.Hint != "check the table name" {
		t.Errorf("unexpected Detail/Hint: %+v", pe)
	}
}
