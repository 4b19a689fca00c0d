package history

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"mercator-hq/dbxport/pkg/telemetry/logging"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func seed(t *testing.T, s Store) {
	t.Helper()

	runs := []*Run{
		{ID: "a", Job: "nightly", Status: StatusSuccess, Rows: 10, Bytes: 200, StartedAt: base.Add(-72 * time.Hour), Duration: time.Second},
		{ID: "b", Job: "nightly", Status: StatusFailure, Stage: "querying", Error: "no such table", StartedAt: base.Add(-48 * time.Hour)},
		{ID: "c", Job: "hourly", Status: StatusSuccess, Rows: 3, StartedAt: base.Add(-time.Hour), Duration: 1500 * time.Millisecond},
		{ID: "d", Status: StatusCancelled, Stage: "exporting", Rows: 7, StartedAt: base},
	}
	for _, r := range runs {
		if err := s.Record(context.Background(), r); err != nil {
			t.Fatalf("Record(%s) error = %v", r.ID, err)
		}
	}
}

func ids(runs []*Run) []string {
	out := []string{}
	for _, r := range runs {
		out = append(out, r.ID)
	}
	return out
}

func TestStore_List(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "all newest first", want: []string{"d", "c", "b", "a"}},
		{name: "by job", query: Query{Job: "nightly"}, want: []string{"b", "a"}},
		{name: "by status", query: Query{Status: StatusSuccess}, want: []string{"c", "a"}},
		{name: "since", query: Query{Since: base.Add(-2 * time.Hour)}, want: []string{"d", "c"}},
		{name: "limit", query: Query{Limit: 1}, want: []string{"d"}},
		{name: "no match", query: Query{Job: "weekly"}, want: []string{}},
	}

	for name, s := range stores(t) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				runs, err := s.List(context.Background(), tt.query)
				if err != nil {
					t.Fatalf("List() error = %v", err)
				}
				if got := ids(runs); !reflect.DeepEqual(got, tt.want) {
					t.Errorf("List() = %v, want %v", got, tt.want)
				}
			})
		}
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := &Run{
				ID: "r1", Job: "nightly", Driver: "postgres", Format: "xlsx", Output: "out/orders.xlsx",
				Status: StatusFailure, Stage: "finalizing", Error: "format row limit exceeded",
				Rows: 1048577, Bytes: 0, StartedAt: base, Duration: 2500 * time.Millisecond,
			}
			if err := s.Record(context.Background(), want); err != nil {
				t.Fatalf("Record() error = %v", err)
			}

			runs, err := s.List(context.Background(), Query{})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(runs) != 1 {
				t.Fatalf("List() returned %d runs, want 1", len(runs))
			}
			got := runs[0]
			if !got.StartedAt.Equal(want.StartedAt) {
				t.Errorf("StartedAt = %v, want %v", got.StartedAt, want.StartedAt)
			}
			got.StartedAt = want.StartedAt
			if !reflect.DeepEqual(got, want) {
				t.Errorf("List()[0] = %+v, want %+v", got, want)
			}

			err = s.Record(context.Background(), &Run{ID: "r1", Status: StatusSuccess, StartedAt: base})
			if !errors.Is(err, ErrDuplicateRun) {
				t.Errorf("Record() of duplicate ID error = %v, want ErrDuplicateRun", err)
			}
		})
	}
}

func TestStore_Prune(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			n, err := s.Prune(context.Background(), base.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if n != 2 {
				t.Errorf("Prune() = %d, want 2", n)
			}

			runs, _ := s.List(context.Background(), Query{})
			if got, want := ids(runs), []string{"d", "c"}; !reflect.DeepEqual(got, want) {
				t.Errorf("remaining runs = %v, want %v", got, want)
			}
		})
	}
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := s.Record(context.Background(), &Run{ID: "x", Status: StatusSuccess, StartedAt: base}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	runs, err := s.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "x" {
		t.Errorf("runs after reopen = %v, want [x]", ids(runs))
	}
}

func TestNewSQLiteStore_NoPath(t *testing.T) {
	_, err := NewSQLiteStore(SQLiteConfig{})
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Errorf("NewSQLiteStore() error = %v, want *StorageError", err)
	}
}

func TestNewSQLiteStore_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "debug", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}

	s, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "history.db"), Logger: logger})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	out := buf.String()
	if !strings.Contains(out, "history store opened") || !strings.Contains(out, "component=export.history") {
		t.Errorf("log output = %q, want the open event from export.history", out)
	}
}
