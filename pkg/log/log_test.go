package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		LevelFatal: "FATAL",
		LevelOff:   "OFF",
		Level(99):  "UNKNOWN",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"Warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"err":     LevelError,
		"fatal":   LevelFatal,
		"off":     LevelOff,
		"none":    LevelOff,
		"  info ": LevelInfo,
	}
	for s, want := range cases {
		got, err := ParseLevel(s)
		if err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", s, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParseLevelInvalid(t *testing.T) {
	got, err := ParseLevel("bogus")
	if err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
	if got != LevelInfo {
		t.Errorf("ParseLevel error case returned %v, want the LevelInfo fallback", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultLevel != LevelInfo {
		t.Errorf("DefaultLevel = %v, want LevelInfo", cfg.DefaultLevel)
	}
	if cfg.Format != FormatText {
		t.Errorf("Format = %v, want FormatText", cfg.Format)
	}
	if cfg.AsyncBuffer != 0 {
		t.Errorf("AsyncBuffer = %d, want 0 (synchronous by default)", cfg.AsyncBuffer)
	}
}

func TestLogRespectsLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelWarn, Output: &buf, Format: FormatText})

	l.Info(CategorySystem, "should be suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected Info below the Warn threshold to be suppressed, got %q", buf.String())
	}

	l.Warn(CategorySystem, "should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected Warn at the threshold to be logged, got %q", buf.String())
	}
}

func TestSetLevelPerCategory(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatText})
	l.SetLevel(CategoryQuery, LevelError)

	l.Info(CategoryQuery, "suppressed by per-category override")
	if buf.Len() != 0 {
		t.Fatalf("expected category-specific level override to suppress Info, got %q", buf.String())
	}

	l.Info(CategorySystem, "unaffected category")
	if !strings.Contains(buf.String(), "unaffected category") {
		t.Errorf("expected the system category to still log at Info")
	}
}

func TestSetOutputPerCategory(t *testing.T) {
	var sysBuf, queryBuf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &sysBuf, Format: FormatText})
	l.SetOutput(CategoryQuery, &queryBuf)

	l.Info(CategorySystem, "to system")
	l.Info(CategoryQuery, "to query")

	if !strings.Contains(sysBuf.String(), "to system") {
		t.Errorf("expected system output to receive the system entry")
	}
	if strings.Contains(sysBuf.String(), "to query") {
		t.Errorf("system output should not receive query entries")
	}
	if !strings.Contains(queryBuf.String(), "to query") {
		t.Errorf("expected query output to receive the query entry")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatJSON})
	l.Info(CategorySystem, "hello", "key", "value")

	var decoded Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON output did not decode: %v (%q)", err, buf.String())
	}
	if decoded.Message != "hello" {
		t.Errorf("Message = %q, want hello", decoded.Message)
	}
	if decoded.Fields["key"] != "value" {
		t.Errorf("Fields[key] = %v, want value", decoded.Fields["key"])
	}
}

func TestLogErrorIncludesErrorString(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatText})
	l.Error(CategorySystem, "boom", errors.New("disk full"))
	if !strings.Contains(buf.String(), `error="disk full"`) {
		t.Errorf("expected formatted error text in output, got %q", buf.String())
	}
}

func TestFieldsOddCountIgnoresDangling(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatText})
	l.Info(CategorySystem, "msg", "key1", "v1", "dangling")
	if !strings.Contains(buf.String(), "key1=v1") {
		t.Errorf("expected the complete key/value pair to be logged, got %q", buf.String())
	}
}

func TestCategoryLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatText})

	l.System().Info("system event")
	l.Session().Info("session event")
	l.Query().Info("query event")
	l.Catalog().Info("catalog event")
	l.Migration().Info("migration event")
	l.Wire().Info("wire event")

	out := buf.String()
	for _, want := range []string{"system event", "session event", "query event", "catalog event", "migration event", "wire event"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestWithFieldsPresetsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatText})
	fl := l.System().WithFields("session_id", "abc123")
	fl.Info("connected")
	if !strings.Contains(buf.String(), "session_id=abc123") {
		t.Errorf("expected preset field in output, got %q", buf.String())
	}
}

func TestAsyncLoggerFlushesOnClose(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatText, AsyncBuffer: 16})
	l.Info(CategorySystem, "async message")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(buf.String(), "async message") {
		t.Errorf("expected buffered async entry to be flushed on Close, got %q", buf.String())
	}
}

func TestAsyncLoggerCloseIsIdempotent(t *testing.T) {
	l := New(Config{DefaultLevel: LevelInfo, AsyncBuffer: 4})
	if err := l.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestStatsTracksLoggedEntries(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{DefaultLevel: LevelInfo, Output: &buf, Format: FormatText})
	l.Info(CategorySystem, "one")
	l.Info(CategorySystem, "two")
	logged, dropped := l.Stats()
	if logged != 2 {
		t.Errorf("logged = %d, want 2", logged)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}
}

func TestContextSessionID(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-42")
	if got := SessionIDFromContext(ctx); got != "sess-42" {
		t.Errorf("SessionIDFromContext = %q, want sess-42", got)
	}
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Errorf("SessionIDFromContext on a bare context = %q, want empty", got)
	}
}

func TestContextLogger(t *testing.T) {
	custom := New(DefaultConfig())
	ctx := WithLogger(context.Background(), custom)
	if got := FromContext(ctx); got != custom {
		t.Errorf("FromContext did not return the logger stored in the context")
	}
	if got := FromContext(context.Background()); got != Default() {
		t.Errorf("FromContext on a bare context should fall back to Default()")
	}
}

func TestSetDefault(t *testing.T) {
	custom := New(DefaultConfig())
	SetDefault(custom)
	if Default() != custom {
		t.Errorf("Default() did not return the logger set via SetDefault")
	}
}
