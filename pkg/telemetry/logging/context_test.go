package logging

import (
	"context"
	"testing"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		setter func(context.Context, string) context.Context
		getter func(context.Context) string
		value  string
	}{
		{"run id", WithRunID, GetRunID, "3f2c"},
		{"job", WithJob, GetJob, "nightly-sales"},
		{"driver", WithDriver, GetDriver, "sqlite"},
		{"format", WithFormat, GetFormat, "parquet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.getter(ctx); got != "" {
				t.Errorf("getter(empty) = %q, want empty", got)
			}
			if got := tt.getter(tt.setter(ctx, tt.value)); got != tt.value {
				t.Errorf("getter() = %q, want %q", got, tt.value)
			}
		})
	}
}

func TestExtractContextFields(t *testing.T) {
	if fields := extractContextFields(context.Background()); len(fields) != 0 {
		t.Errorf("extractContextFields(empty) = %v, want none", fields)
	}

	ctx := WithFormat(WithRunID(context.Background(), "r1"), "csv")
	fields := extractContextFields(ctx)
	want := []any{"run_id", "r1", "format", "csv"}
	if len(fields) != len(want) {
		t.Fatalf("extractContextFields() = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %v, want %v", i, fields[i], want[i])
		}
	}
}
