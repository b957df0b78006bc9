package types

import "testing"

func strp(s string) *string { return &s }

func TestArrayTextRoundTrip(t *testing.T) {
	values := []*string{strp("a"), nil, strp("b,c"), strp(`has "quotes"`)}
	text := FormatArrayText(values)
	got, err := ParseArrayText(text)
	if err != nil {
		t.Fatalf("ParseArrayText(%q): %v", text, err)
	}
	if len(got) != len(values) {
		t.Fatalf("got %d elements, want %d", len(got), len(values))
	}
	for i := range values {
		switch {
		case values[i] == nil && got[i] != nil:
			t.Errorf("element %d: want nil, got %q", i, *got[i])
		case values[i] != nil && got[i] == nil:
			t.Errorf("element %d: want %q, got nil", i, *values[i])
		case values[i] != nil && *values[i] != *got[i]:
			t.Errorf("element %d: got %q, want %q", i, *got[i], *values[i])
		}
	}
}

func TestParseArrayTextInvalid(t *testing.T) {
	if _, err := ParseArrayText("not an array"); err == nil {
		t.Fatalf("expected error for malformed array text")
	}
}

func TestParseArrayTextEmpty(t *testing.T) {
	got, err := ParseArrayText("{}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil slice for empty array, got %#v", got)
	}
}

func TestArrayJSONRoundTrip(t *testing.T) {
	a := Array{Values: []*string{strp("1"), nil, strp("3")}}
	jsonText, err := a.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	got, err := ArrayFromJSON(jsonText)
	if err != nil {
		t.Fatalf("ArrayFromJSON: %v", err)
	}
	if len(got) != 3 || got[1] != nil {
		t.Fatalf("unexpected round trip: %#v", got)
	}
	if *got[0] != "1" || *got[2] != "3" {
		t.Errorf("unexpected values: %#v %#v", got[0], got[2])
	}
}

func TestArrayBinaryRoundTrip(t *testing.T) {
	elements := [][]byte{[]byte("one"), nil, []byte("three")}
	encoded := EncodeArrayBinary(TextOID, elements)
	oid, decoded, err := DecodeArrayBinary(encoded)
	if err != nil {
		t.Fatalf("DecodeArrayBinary: %v", err)
	}
	if oid != TextOID {
		t.Errorf("oid = %v, want %v", oid, TextOID)
	}
	if len(decoded) != 3 || decoded[1] != nil {
		t.Fatalf("unexpected decode: %#v", decoded)
	}
	if string(decoded[0]) != "one" || string(decoded[2]) != "three" {
		t.Errorf("unexpected values: %q %q", decoded[0], decoded[2])
	}
}

func TestNeedsArrayQuoting(t *testing.T) {
	cases := map[string]bool{
		"plain":     false,
		"":          true,
		"NULL":      true,
		"has space": true,
		"a,b":       true,
		`a"b`:       true,
	}
	for in, want := range cases {
		if got := needsArrayQuoting(in); got != want {
			t.Errorf("needsArrayQuoting(%q) = %v, want %v", in, got, want)
		}
	}
}
