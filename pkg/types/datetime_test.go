package types

import "testing"

func TestDateRoundTrip(t *testing.T) {
	days, isInf, isNegInf, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if isInf || isNegInf {
		t.Fatalf("unexpected infinity flags")
	}
	if got := FormatDate(days, false, false); got != "2024-03-15" {
		t.Errorf("FormatDate = %q, want 2024-03-15", got)
	}

	decodedDays, dInf, dNegInf, err := DecodeDateBinary(EncodeDateBinary(days, false, false))
	if err != nil {
		t.Fatalf("DecodeDateBinary: %v", err)
	}
	if dInf || dNegInf || decodedDays != days {
		t.Errorf("binary round trip mismatch: got %d inf=%v neg=%v, want %d", decodedDays, dInf, dNegInf, days)
	}
}

func TestDateInfinitySentinels(t *testing.T) {
	if got := FormatDate(0, true, false); got != "infinity" {
		t.Errorf("FormatDate(infinity) = %q", got)
	}
	if got := FormatDate(0, false, true); got != "-infinity" {
		t.Errorf("FormatDate(-infinity) = %q", got)
	}

	_, isInf, _, err := ParseDate("infinity")
	if err != nil || !isInf {
		t.Fatalf("ParseDate(infinity) = inf=%v err=%v", isInf, err)
	}

	_, decInf, _, err := DecodeDateBinary(EncodeDateBinary(0, true, false))
	if err != nil || !decInf {
		t.Fatalf("infinity did not round trip through binary form")
	}
}

func TestParseDateInvalid(t *testing.T) {
	if _, _, _, err := ParseDate("not-a-date"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	micros, err := ParseTime("13:45:30.123456")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if got := FormatTime(micros); got != "13:45:30.123456" {
		t.Errorf("FormatTime = %q, want 13:45:30.123456", got)
	}

	decoded, err := DecodeTimeBinary(EncodeTimeBinary(micros))
	if err != nil {
		t.Fatalf("DecodeTimeBinary: %v", err)
	}
	if decoded != micros {
		t.Errorf("binary round trip = %d, want %d", decoded, micros)
	}
}

func TestFormatTimeWholeSeconds(t *testing.T) {
	micros, err := ParseTime("08:00:00")
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if got := FormatTime(micros); got != "08:00:00" {
		t.Errorf("FormatTime = %q, want 08:00:00 (no fractional suffix)", got)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	unixMicros, isInf, isNegInf, err := ParseTimestamp("2024-03-15 13:45:30.123456")
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	if isInf || isNegInf {
		t.Fatalf("unexpected infinity flags")
	}
	if got := FormatTimestamp(unixMicros, false, false, false); got != "2024-03-15 13:45:30.123456" {
		t.Errorf("FormatTimestamp = %q", got)
	}

	decoded, dInf, dNegInf, err := DecodeTimestampBinary(EncodeTimestampBinary(unixMicros, false, false))
	if err != nil {
		t.Fatalf("DecodeTimestampBinary: %v", err)
	}
	if dInf || dNegInf || decoded != unixMicros {
		t.Errorf("binary round trip mismatch: got %d, want %d", decoded, unixMicros)
	}
}

func TestTimestampInfinitySentinels(t *testing.T) {
	u, isInf, isNegInf, err := ParseTimestamp("infinity")
	if err != nil || !isInf {
		t.Fatalf("ParseTimestamp(infinity): inf=%v err=%v", isInf, err)
	}
	if got := FormatTimestamp(u, isInf, isNegInf, false); got != "infinity" {
		t.Errorf("FormatTimestamp = %q, want infinity", got)
	}

	_, dInf, _, err := DecodeTimestampBinary(EncodeTimestampBinary(0, true, false))
	if err != nil || !dInf {
		t.Fatalf("infinity did not round trip through binary form")
	}
}

func TestFormatTimestampWithTZ(t *testing.T) {
	unixMicros, _, _, err := ParseTimestamp("2024-01-01 00:00:00")
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	got := FormatTimestamp(unixMicros, false, false, true)
	want := "2024-01-01 00:00:00+00"
	if got != want {
		t.Errorf("FormatTimestamp = %q, want %q", got, want)
	}
}
