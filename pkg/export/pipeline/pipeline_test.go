package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus/testutil"
	_ "modernc.org/sqlite"

	"mercator-hq/dbxport/pkg/export"
	"mercator-hq/dbxport/pkg/export/driver"
	"mercator-hq/dbxport/pkg/export/encoder"
	"mercator-hq/dbxport/pkg/telemetry/logging"
	"mercator-hq/dbxport/pkg/telemetry/metrics"
)

// fakeDriver produces n rows of (id, name) and counts the connections and
// cursors it has open.
type fakeDriver struct {
	n          int
	connectErr error
	queryErr   error
	rowErrAt   int // row index whose Next fails, -1 for none
	rowErr     error

	conns   atomic.Int64
	cursors atomic.Int64
}

func newFakeDriver(n int) *fakeDriver {
	return &fakeDriver{n: n, rowErrAt: -1}
}

func (d *fakeDriver) Kind() driver.Kind { return driver.KindSQLite }

func (d *fakeDriver) Connect(ctx context.Context, dsn string) (driver.Conn, error) {
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	d.conns.Add(1)
	return &fakeConn{d: d}, nil
}

type fakeConn struct {
	d      *fakeDriver
	closed bool
}

func (c *fakeConn) Query(ctx context.Context, query string) (*export.Schema, driver.RowSequence, error) {
	if c.d.queryErr != nil {
		return nil, nil, c.d.queryErr
	}
	c.d.cursors.Add(1)
	schema := export.MustSchema(
		export.Column{Name: "id", Kind: export.KindInt},
		export.Column{Name: "name", Kind: export.KindText, Nullable: true},
	)
	return schema, &fakeRows{d: c.d}, nil
}

func (c *fakeConn) Close() error {
	if !c.closed {
		c.closed = true
		c.d.conns.Add(-1)
	}
	return nil
}

type fakeRows struct {
	d      *fakeDriver
	i      int
	closed bool
}

func (r *fakeRows) Next(ctx context.Context) (export.Row, error) {
	if r.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.i == r.d.rowErrAt {
		return nil, r.d.rowErr
	}
	if r.i >= r.d.n {
		return nil, io.EOF
	}
	r.i++
	return export.Row{export.Int(int64(r.i)), export.Text(fmt.Sprintf("name-%d", r.i))}, nil
}

func (r *fakeRows) Close() error {
	if !r.closed {
		r.closed = true
		r.d.cursors.Add(-1)
	}
	return nil
}

func (d *fakeDriver) assertReleased(t *testing.T) {
	t.Helper()
	if n := d.conns.Load(); n != 0 {
		t.Errorf("open connections = %d, want 0", n)
	}
	if n := d.cursors.Load(); n != 0 {
		t.Errorf("open cursors = %d, want 0", n)
	}
}

// assertOnlyFiles fails if dir contains anything besides names.
func assertOnlyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	if len(got) != len(names) {
		t.Errorf("dir entries = %v, want %v", got, names)
		return
	}
	for i := range names {
		if got[i] != names[i] {
			t.Errorf("dir entries = %v, want %v", got, names)
			return
		}
	}
}

// newTestDB creates a SQLite database file seeded with stmts.
func newTestDB(t *testing.T, stmts ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	defer db.Close()

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Exec(%q) error = %v", stmt, err)
		}
	}
	return path
}

func idNameDB(t *testing.T) string {
	return newTestDB(t,
		"CREATE TABLE people (id INTEGER NOT NULL, name TEXT)",
		"INSERT INTO people VALUES (1, 'Ann'), (2, NULL)",
	)
}

func TestRun_IDNameScenario(t *testing.T) {
	tests := []struct {
		format encoder.Format
		file   string
		want   string
	}{
		{encoder.FormatJSON, "people.json", `[{"id":1,"name":"Ann"},{"id":2,"name":null}]`},
		{encoder.FormatGFM, "people.md", "| id | name |\n| --- | --- |\n| 1 | Ann |\n| 2 |  |\n"},
	}

	db := idNameDB(t)
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			d, err := driver.Open(driver.KindSQLite)
			if err != nil {
				t.Fatal(err)
			}
			dir := t.TempDir()
			out := filepath.Join(dir, tt.file)

			res, err := New(Options{}).Run(context.Background(), Job{
				Driver: d,
				DSN:    db,
				Query:  "SELECT id, name FROM people ORDER BY id",
				Format: tt.format,
				Output: out,
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Rows != 2 {
				t.Errorf("Rows = %d, want 2", res.Rows)
			}

			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.want {
				t.Errorf("output =\n%s\nwant\n%s", data, tt.want)
			}
			if res.Bytes != int64(len(data)) {
				t.Errorf("Bytes = %d, want %d", res.Bytes, len(data))
			}

			info, err := os.Stat(out)
			if err != nil {
				t.Fatal(err)
			}
			if perm := info.Mode().Perm(); perm != 0o644 {
				t.Errorf("mode = %v, want 0644", perm)
			}
			assertOnlyFiles(t, dir, tt.file)

			if s := d.Stats(); s.OpenConnections != 0 || s.OpenCursors != 0 {
				t.Errorf("Stats() = %+v, want all zero", s)
			}
		})
	}
}

func TestRun_DriverLogsCarryRunContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "debug", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New() error = %v", err)
	}
	d, err := driver.Open(driver.KindSQLite)
	if err != nil {
		t.Fatal(err)
	}

	res, err := New(Options{Logger: logger}).Run(context.Background(), Job{
		Name:   "people",
		Driver: d,
		DSN:    idNameDB(t),
		Query:  "SELECT id, name FROM people",
		Format: encoder.FormatJSON,
		Output: filepath.Join(t.TempDir(), "people.json"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var found bool
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.Contains(line, "msg=connected") {
			continue
		}
		found = true
		for _, want := range []string{"component=export.driver", "run_id=" + res.RunID, "job=people"} {
			if !strings.Contains(line, want) {
				t.Errorf("driver line %q missing %q", line, want)
			}
		}
	}
	if !found {
		t.Errorf("no driver connect line in log output:\n%s", buf.String())
	}
}

func TestRun_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		format encoder.Format
		setup  func(d *fakeDriver)
		want   []State
	}{
		{
			name:   "streaming success",
			format: encoder.FormatCSV,
			want:   []State{Connecting, Querying, Exporting, Finalizing, Done},
		},
		{
			name:   "materializing success",
			format: encoder.FormatGFM,
			want:   []State{Connecting, Querying, Exporting, Finalizing, Done},
		},
		{
			name:   "connect failure",
			format: encoder.FormatJSON,
			setup:  func(d *fakeDriver) { d.connectErr = errors.New("refused") },
			want:   []State{Connecting, Failed},
		},
		{
			name:   "query failure",
			format: encoder.FormatJSON,
			setup:  func(d *fakeDriver) { d.queryErr = errors.New("no such table") },
			want:   []State{Connecting, Querying, Failed},
		},
		{
			name:   "row failure",
			format: encoder.FormatJSON,
			setup: func(d *fakeDriver) {
				d.rowErrAt = 3
				d.rowErr = errors.New("connection reset")
			},
			want: []State{Connecting, Querying, Exporting, Failed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDriver(10)
			if tt.setup != nil {
				tt.setup(d)
			}

			var got []State
			p := New(Options{OnTransition: func(from, to State) {
				if len(got) > 0 && got[len(got)-1] != from {
					t.Errorf("transition from %s, last state was %s", from, got[len(got)-1])
				}
				got = append(got, to)
			}})
			p.Run(context.Background(), Job{
				Driver: d,
				Query:  "SELECT 1",
				Format: tt.format,
				Output: filepath.Join(t.TempDir(), "out"),
			})

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("transitions = %v, want %v", got, tt.want)
			}
			d.assertReleased(t)
		})
	}
}

func TestRun_ErrorClassification(t *testing.T) {
	connErr := errors.New("refused")
	queryErr := errors.New("syntax error")
	rowErr := errors.New("connection reset")

	tests := []struct {
		name      string
		setup     func(d *fakeDriver)
		wantStage State
		wantRow   int
		check     func(err error) bool
	}{
		{
			name:      "connection",
			setup:     func(d *fakeDriver) { d.connectErr = connErr },
			wantStage: Connecting,
			wantRow:   -1,
			check: func(err error) bool {
				var target *export.ConnectionError
				return errors.As(err, &target) && errors.Is(err, connErr)
			},
		},
		{
			name:      "query",
			setup:     func(d *fakeDriver) { d.queryErr = queryErr },
			wantStage: Querying,
			wantRow:   -1,
			check: func(err error) bool {
				var target *export.QueryError
				return errors.As(err, &target) && errors.Is(err, queryErr)
			},
		},
		{
			name: "row pull",
			setup: func(d *fakeDriver) {
				d.rowErrAt = 4
				d.rowErr = rowErr
			},
			wantStage: Exporting,
			wantRow:   4,
			check: func(err error) bool {
				var target *export.QueryError
				return errors.As(err, &target) && errors.Is(err, rowErr)
			},
		},
		{
			name: "coercion keeps its row",
			setup: func(d *fakeDriver) {
				d.rowErrAt = 6
				d.rowErr = export.NewTypeCoercionError("name", "BLOB", 6, errors.New("bad value"))
			},
			wantStage: Exporting,
			wantRow:   6,
			check: func(err error) bool {
				var target *export.TypeCoercionError
				return errors.As(err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDriver(10)
			tt.setup(d)
			dir := t.TempDir()

			_, err := New(Options{}).Run(context.Background(), Job{
				Driver: d,
				Query:  "SELECT 1",
				Format: encoder.FormatJSON,
				Output: filepath.Join(dir, "out.json"),
			})

			var serr *StageError
			if !errors.As(err, &serr) {
				t.Fatalf("Run() error = %v, want *StageError", err)
			}
			if serr.Stage != tt.wantStage {
				t.Errorf("Stage = %s, want %s", serr.Stage, tt.wantStage)
			}
			if serr.Row != tt.wantRow {
				t.Errorf("Row = %d, want %d", serr.Row, tt.wantRow)
			}
			if serr.RunID == "" {
				t.Error("RunID is empty")
			}
			if !tt.check(err) {
				t.Errorf("Run() error = %v has the wrong type", err)
			}
			assertOnlyFiles(t, dir)
			d.assertReleased(t)
		})
	}
}

func TestRun_CancelLeavesDestinationUntouched(t *testing.T) {
	for _, format := range []encoder.Format{encoder.FormatJSON, encoder.FormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			d := newFakeDriver(10000)
			dir := t.TempDir()
			out := filepath.Join(dir, "out")
			if err := os.WriteFile(out, []byte("previous"), 0o644); err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			collector := metrics.NewCollector(nil)
			p := New(Options{
				ProgressEvery: 100,
				Progress: func(rows int64) {
					if rows == 500 {
						cancel()
					}
				},
				Metrics: collector,
			})

			_, err := p.Run(ctx, Job{Driver: d, Query: "SELECT 1", Format: format, Output: out})
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("Run() error = %v, want context.Canceled", err)
			}

			data, err := os.ReadFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != "previous" {
				t.Errorf("destination = %q, want it unchanged", data)
			}
			assertOnlyFiles(t, dir, "out")
			d.assertReleased(t)

			want := `
# HELP dbxport_exports_total Total number of exports by driver, format and status
# TYPE dbxport_exports_total counter
dbxport_exports_total{driver="sqlite",format="` + string(format) + `",status="cancelled"} 1
`
			if err := testutil.GatherAndCompare(collector.Registry(), strings.NewReader(want), "dbxport_exports_total"); err != nil {
				t.Errorf("metrics mismatch: %v", err)
			}
		})
	}
}

func TestRun_CancelReleasesSQLiteCursor(t *testing.T) {
	db := newTestDB(t,
		"CREATE TABLE numbers (n INTEGER NOT NULL)",
		`WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n + 1 FROM seq WHERE n < 2000)
		 INSERT INTO numbers SELECT n FROM seq`,
	)
	d, err := driver.Open(driver.KindSQLite)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	p := New(Options{
		ProgressEvery: 50,
		Progress: func(rows int64) {
			if rows == 200 {
				cancel()
			}
		},
	})
	_, err = p.Run(ctx, Job{
		Driver: d,
		DSN:    db,
		Query:  "SELECT n FROM numbers ORDER BY n",
		Format: encoder.FormatNDJSON,
		Output: filepath.Join(dir, "numbers.ndjson"),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	var serr *StageError
	if !errors.As(err, &serr) || serr.Stage != Exporting {
		t.Errorf("Run() error = %v, want failure while exporting", err)
	}
	if s := d.Stats(); s.OpenConnections != 0 || s.OpenCursors != 0 {
		t.Errorf("Stats() = %+v, want all zero", s)
	}
	assertOnlyFiles(t, dir)
}

func TestRun_XLSXRowCeiling(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		opts    Options
		xlsx    encoder.XLSXOptions
		wantErr error
	}{
		{
			name:    "format limit",
			rows:    10,
			xlsx:    encoder.XLSXOptions{MaxRows: 5},
			wantErr: ErrFormatRowLimit,
		},
		{
			name:    "buffer limit",
			rows:    10,
			opts:    Options{MaxBufferedRows: 3},
			wantErr: ErrBufferLimit,
		},
		{
			name: "exactly at format limit",
			rows: 4,
			xlsx: encoder.XLSXOptions{MaxRows: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newFakeDriver(tt.rows)
			dir := t.TempDir()
			out := filepath.Join(dir, "sheet.xlsx")

			_, err := New(tt.opts).Run(context.Background(), Job{
				Driver:  d,
				Query:   "SELECT 1",
				Format:  encoder.FormatXLSX,
				Encoder: encoder.Options{XLSX: tt.xlsx},
				Output:  out,
			})
			d.assertReleased(t)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Run() error = %v", err)
				}
				assertOnlyFiles(t, dir, "sheet.xlsx")
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
			}
			var encErr *export.EncodingError
			if !errors.As(err, &encErr) {
				t.Fatalf("Run() error = %v, want *export.EncodingError", err)
			}
			var serr *StageError
			if errors.As(err, &serr) && serr.Row != encErr.Row {
				t.Errorf("StageError.Row = %d, want %d", serr.Row, encErr.Row)
			}
			assertOnlyFiles(t, dir)
		})
	}
}

func TestRun_SnappyCompression(t *testing.T) {
	d := newFakeDriver(25)
	dir := t.TempDir()
	out := filepath.Join(dir, "rows.csv.sz")

	res, err := New(Options{}).Run(context.Background(), Job{
		Driver:      d,
		Query:       "SELECT 1",
		Format:      encoder.FormatCSV,
		Output:      out,
		Compression: CompressionSnappy,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	data, err := io.ReadAll(snappy.NewReader(f))
	if err != nil {
		t.Fatalf("snappy decode error = %v", err)
	}
	if lines := bytes.Count(data, []byte("\n")); lines != 26 {
		t.Errorf("decoded lines = %d, want 26", lines)
	}
	if !bytes.HasPrefix(data, []byte("id,name\n1,name-1\n")) {
		t.Errorf("decoded output = %q", data[:min(len(data), 40)])
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if res.Bytes != info.Size() {
		t.Errorf("Bytes = %d, want on-disk size %d", res.Bytes, info.Size())
	}
}

func TestRun_Progress(t *testing.T) {
	d := newFakeDriver(25)
	var calls []int64
	_, err := New(Options{
		ProgressEvery: 10,
		Progress:      func(rows int64) { calls = append(calls, rows) },
	}).Run(context.Background(), Job{
		Driver: d,
		Query:  "SELECT 1",
		Format: encoder.FormatNDJSON,
		Output: filepath.Join(t.TempDir(), "out.ndjson"),
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := []int64{10, 20, 25}; !reflect.DeepEqual(calls, want) {
		t.Errorf("progress calls = %v, want %v", calls, want)
	}
}

func TestRun_InvalidJob(t *testing.T) {
	d := newFakeDriver(1)
	tests := []struct {
		name string
		job  Job
	}{
		{"no driver", Job{Query: "q", Format: encoder.FormatJSON, Output: "x"}},
		{"no query", Job{Driver: d, Format: encoder.FormatJSON, Output: "x"}},
		{"no output", Job{Driver: d, Query: "q", Format: encoder.FormatJSON}},
		{"bad format", Job{Driver: d, Query: "q", Format: "yaml", Output: "x"}},
		{"bad compression", Job{Driver: d, Query: "q", Format: encoder.FormatJSON, Output: "x", Compression: "gzip"}},
		{"bad csv delimiter", Job{Driver: d, Query: "q", Format: encoder.FormatCSV, Output: "x",
			Encoder: encoder.Options{CSV: encoder.CSVOptions{Delimiter: '"'}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{}).Run(context.Background(), tt.job)
			var serr *StageError
			if !errors.As(err, &serr) {
				t.Fatalf("Run() error = %v, want *StageError", err)
			}
			if serr.Stage != Idle {
				t.Errorf("Stage = %s, want idle", serr.Stage)
			}
			if d.conns.Load() != 0 {
				t.Error("invalid job opened a connection")
			}
		})
	}
}

func TestRun_OutputDirectoryMissing(t *testing.T) {
	d := newFakeDriver(3)
	_, err := New(Options{}).Run(context.Background(), Job{
		Driver: d,
		Query:  "SELECT 1",
		Format: encoder.FormatJSON,
		Output: filepath.Join(t.TempDir(), "missing", "out.json"),
	})
	var ioErr *export.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Run() error = %v, want *export.IOError", err)
	}
	if ioErr.Op != "create" {
		t.Errorf("Op = %q, want create", ioErr.Op)
	}
	d.assertReleased(t)
}

func TestRun_Concurrent(t *testing.T) {
	p := New(Options{})
	dir := t.TempDir()

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			d := newFakeDriver(100 + i)
			res, err := p.Run(context.Background(), Job{
				Driver: d,
				Query:  "SELECT 1",
				Format: encoder.FormatJSON,
				Output: filepath.Join(dir, fmt.Sprintf("out-%d.json", i)),
			})
			if err == nil && res.Rows != int64(100+i) {
				err = fmt.Errorf("run %d: Rows = %d, want %d", i, res.Rows, 100+i)
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Idle, "idle"},
		{Connecting, "connecting"},
		{Querying, "querying"},
		{Exporting, "exporting"},
		{Finalizing, "finalizing"},
		{Done, "done"},
		{Failed, "failed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Idle, Connecting, true},
		{Idle, Querying, false},
		{Exporting, Finalizing, true},
		{Finalizing, Done, true},
		{Querying, Failed, true},
		{Done, Failed, false},
		{Failed, Idle, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseCompression(t *testing.T) {
	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{"", CompressionNone, false},
		{"none", CompressionNone, false},
		{"Snappy", CompressionSnappy, false},
		{"gzip", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCompression(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompression(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCompression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
