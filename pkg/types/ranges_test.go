package types

import "testing"

func TestRangeTextRoundTrip(t *testing.T) {
	r, lowerText, upperText, err := ParseRangeText("[1,10)")
	if err != nil {
		t.Fatalf("ParseRangeText: %v", err)
	}
	if !r.LowerInc || r.UpperInc || r.LowerInf || r.UpperInf {
		t.Fatalf("unexpected flags: %+v", r)
	}
	if lowerText != "1" || upperText != "10" {
		t.Fatalf("got lower=%q upper=%q", lowerText, upperText)
	}
	if got := r.FormatText(lowerText, upperText); got != "[1,10)" {
		t.Errorf("FormatText = %q, want [1,10)", got)
	}
}

func TestRangeTextUnbounded(t *testing.T) {
	r, lowerText, upperText, err := ParseRangeText("(,10]")
	if err != nil {
		t.Fatalf("ParseRangeText: %v", err)
	}
	if !r.LowerInf || lowerText != "" {
		t.Fatalf("expected unbounded lower, got %+v lowerText=%q", r, lowerText)
	}
	if got := r.FormatText(lowerText, upperText); got != "(,10]" {
		t.Errorf("FormatText = %q, want (,10]", got)
	}
}

func TestRangeTextEmpty(t *testing.T) {
	r, _, _, err := ParseRangeText("empty")
	if err != nil {
		t.Fatalf("ParseRangeText: %v", err)
	}
	if !r.Empty {
		t.Fatalf("expected Empty range")
	}
	if got := r.FormatText("", ""); got != "empty" {
		t.Errorf("FormatText = %q, want empty", got)
	}
}

func TestParseRangeTextInvalid(t *testing.T) {
	if _, _, _, err := ParseRangeText("1,10)"); err == nil {
		t.Fatalf("expected error for missing opening bracket")
	}
	if _, _, _, err := ParseRangeText("[1 10)"); err == nil {
		t.Fatalf("expected error for missing comma separator")
	}
}

func TestRangeBinaryRoundTrip(t *testing.T) {
	r := Range{
		LowerInc:   true,
		UpperInc:   false,
		LowerBytes: []byte{0, 0, 0, 1},
		UpperBytes: []byte{0, 0, 0, 10},
	}
	decoded, err := DecodeRangeBinary(r.EncodeBinary())
	if err != nil {
		t.Fatalf("DecodeRangeBinary: %v", err)
	}
	if decoded.LowerInc != r.LowerInc || decoded.UpperInc != r.UpperInc {
		t.Errorf("flags mismatch: got %+v, want %+v", decoded, r)
	}
	if string(decoded.LowerBytes) != string(r.LowerBytes) || string(decoded.UpperBytes) != string(r.UpperBytes) {
		t.Errorf("bound bytes mismatch: got %+v, want %+v", decoded, r)
	}
}

func TestRangeBinaryEmptyRoundTrip(t *testing.T) {
	decoded, err := DecodeRangeBinary(EmptyRange().EncodeBinary())
	if err != nil {
		t.Fatalf("DecodeRangeBinary: %v", err)
	}
	if !decoded.Empty {
		t.Errorf("expected Empty to round trip")
	}
}

func TestRangeBinaryUnboundedRoundTrip(t *testing.T) {
	r := Range{LowerInf: true, UpperInf: true}
	decoded, err := DecodeRangeBinary(r.EncodeBinary())
	if err != nil {
		t.Fatalf("DecodeRangeBinary: %v", err)
	}
	if !decoded.LowerInf || !decoded.UpperInf {
		t.Errorf("expected unbounded flags to round trip, got %+v", decoded)
	}
}
