package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid JSON config",
			config: Config{Level: "info", Format: "json", RedactSecrets: true},
		},
		{
			name:   "valid text config",
			config: Config{Level: "debug", Format: "text"},
		},
		{
			name:   "valid console config",
			config: Config{Level: "WARN", Format: "console", RedactSecrets: true},
		},
		{
			name:   "defaults",
			config: Config{},
		},
		{
			name:    "invalid log level",
			config:  Config{Level: "invalid", Format: "json"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  Config{Level: "info", Format: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  string
		logMethod func(*Logger, string)
		wantLog   bool
	}{
		{"debug level logs debug", "debug", func(l *Logger, msg string) { l.Debug(msg) }, true},
		{"info level filters debug", "info", func(l *Logger, msg string) { l.Debug(msg) }, false},
		{"info level logs info", "info", func(l *Logger, msg string) { l.Info(msg) }, true},
		{"warn level filters info", "warn", func(l *Logger, msg string) { l.Info(msg) }, false},
		{"warn level logs warn", "warn", func(l *Logger, msg string) { l.Warn(msg) }, true},
		{"error level filters warn", "error", func(l *Logger, msg string) { l.Warn(msg) }, false},
		{"error level logs error", "error", func(l *Logger, msg string) { l.Error(msg) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger, err := New(Config{Level: tt.logLevel, Format: "json", Writer: buf})
			if err != nil {
				t.Fatalf("Failed to create logger: %v", err)
			}

			tt.logMethod(logger, "test message")

			if got := strings.Contains(buf.String(), "test message"); got != tt.wantLog {
				t.Errorf("logged = %v, want %v, output=%s", got, tt.wantLog, buf.String())
			}
		})
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	return entry
}

func TestLogger_StructuredFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "info", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.With("component", "pipeline").Info("export finished", "rows", 42, "format", "json")

	entry := decodeLine(t, buf)
	if entry["msg"] != "export finished" {
		t.Errorf("msg = %v, want export finished", entry["msg"])
	}
	if entry["component"] != "pipeline" {
		t.Errorf("component = %v, want pipeline", entry["component"])
	}
	if entry["rows"] != float64(42) {
		t.Errorf("rows = %v, want 42", entry["rows"])
	}
}

func TestLogger_ContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "debug", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithJob(ctx, "nightly")
	ctx = WithDriver(ctx, "postgres")
	ctx = WithFormat(ctx, "xlsx")

	logger.InfoContext(ctx, "starting")
	entry := decodeLine(t, buf)
	for key, want := range map[string]string{"run_id": "run-1", "job": "nightly", "driver": "postgres", "format": "xlsx"} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %s", key, entry[key], want)
		}
	}

	buf.Reset()
	logger.WithContext(ctx).Warn("slow")
	if entry := decodeLine(t, buf); entry["run_id"] != "run-1" {
		t.Errorf("WithContext run_id = %v, want run-1", entry["run_id"])
	}

	if got := logger.WithContext(context.Background()); got != logger {
		t.Error("WithContext(empty) should return the same logger")
	}
}

func TestLogger_Redaction(t *testing.T) {
	tests := []struct {
		name   string
		redact bool
		want   string
		absent string
	}{
		{"enabled", true, "postgres://app:***@db/sales", "secret"},
		{"disabled", false, "postgres://app:secret@db/sales", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger, err := New(Config{Format: "json", RedactSecrets: tt.redact, Writer: buf})
			if err != nil {
				t.Fatalf("Failed to create logger: %v", err)
			}

			logger.Error("connect failed",
				"url", "postgres://app:secret@db/sales",
				"error", errors.New("dial postgres://app:secret@db/sales: refused"))

			entry := decodeLine(t, buf)
			if entry["url"] != tt.want {
				t.Errorf("url = %v, want %s", entry["url"], tt.want)
			}
			if tt.absent != "" && strings.Contains(buf.String(), tt.absent) {
				t.Errorf("output contains %q: %s", tt.absent, buf.String())
			}
		})
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Format: "console", Writer: buf})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("hello", "rows", 3)

	out := buf.String()
	if strings.Contains(out, "time=") {
		t.Errorf("console output contains a timestamp: %s", out)
	}
	if !strings.Contains(out, "level=info") || !strings.Contains(out, "rows=3") {
		t.Errorf("console output = %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	for _, in := range []string{"debug", "INFO", "", "warning", "Error"} {
		if _, err := parseLevel(in); err != nil {
			t.Errorf("parseLevel(%q) error = %v", in, err)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Error("parseLevel(verbose) expected error, got nil")
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]LogFormat{
		"":        FormatJSON,
		"JSON":    FormatJSON,
		"text":    FormatText,
		"console": FormatConsole,
	}
	for in, want := range tests {
		got, err := parseFormat(in)
		if err != nil || got != want {
			t.Errorf("parseFormat(%q) = %s, %v, want %s", in, got, err, want)
		}
	}
}
