package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"mercator-hq/dbxport/pkg/export"
	"mercator-hq/dbxport/pkg/export/driver"
	"mercator-hq/dbxport/pkg/export/encoder"
	"mercator-hq/dbxport/pkg/telemetry/logging"
	"mercator-hq/dbxport/pkg/telemetry/metrics"
)

// DefaultProgressEvery is the row interval between Progress callbacks.
const DefaultProgressEvery = 1000

// Job describes a single export.
type Job struct {
	// Name labels the run in logs and metrics. Optional.
	Name string

	Driver driver.Driver
	DSN    string
	Query  string

	Format  encoder.Format
	Encoder encoder.Options

	// Output is the destination path. It is only created or replaced once
	// the export has fully succeeded.
	Output      string
	Compression Compression
}

// Options configures a Pipeline.
type Options struct {
	// MaxBufferedRows caps the rows held for materializing formats.
	// Zero means no limit beyond the format's own.
	MaxBufferedRows int

	// OnTransition is called on every state change.
	OnTransition func(from, to State)

	// Progress is called every ProgressEvery rows and once after the last
	// row with the running total.
	Progress      func(rows int64)
	ProgressEvery int

	Metrics *metrics.Collector
	Logger  *logging.Logger
}

// Result summarizes a successful export.
type Result struct {
	RunID    string
	Rows     int64
	Bytes    int64
	Output   string
	Duration time.Duration
	Schema   *export.Schema
}

// Pipeline runs exports. It holds no per-run state, so one Pipeline may run
// any number of exports concurrently.
type Pipeline struct {
	opts         Options
	logger       *logging.Logger
	driverLogger *logging.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		opts:         opts,
		logger:       logger.With("component", "export.pipeline"),
		driverLogger: logger.With("component", "export.driver"),
	}
}

// run carries the state of one export.
type run struct {
	p     *Pipeline
	job   Job
	id    string
	state State
	rows  int64

	conn   driver.Conn
	cursor driver.RowSequence
	out    *atomicFile
	schema *export.Schema
}

// Run executes job. On failure it returns a *StageError, and the destination
// is left exactly as it was.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Result, error) {
	r := &run{p: p, job: job, id: uuid.NewString(), state: Idle}

	ctx = logging.WithRunID(ctx, r.id)
	if job.Name != "" {
		ctx = logging.WithJob(ctx, job.Name)
	}
	if job.Driver != nil {
		ctx = logging.WithDriver(ctx, string(job.Driver.Kind()))
	}
	ctx = logging.WithFormat(ctx, string(job.Format))
	logger := p.logger.WithContext(ctx)
	ctx = driver.WithLogger(ctx, p.driverLogger.WithContext(ctx))

	start := time.Now()
	p.opts.Metrics.ExportStarted()
	logger.Info("export started", "output", job.Output)

	err := r.execute(ctx)
	r.release()

	duration := time.Since(start)
	outcome := metrics.Outcome{
		Format:   string(job.Format),
		Status:   metrics.StatusSuccess,
		Rows:     r.rows,
		Duration: duration,
	}
	if job.Driver != nil {
		outcome.Driver = string(job.Driver.Kind())
	}

	if err != nil {
		failedAt := r.state
		r.transition(Failed)

		outcome.Status = metrics.StatusFailure
		if errors.Is(err, context.Canceled) {
			outcome.Status = metrics.StatusCancelled
		}
		outcome.Stage = failedAt.String()
		p.opts.Metrics.ExportFinished(outcome)

		serr := &StageError{
			Stage: failedAt,
			Row:   errorRow(err, failedAt, r.rows),
			Err:   err,
			RunID: r.id,
			Rows:  r.rows,
		}
		logger.Error("export failed", "stage", failedAt.String(), "rows", r.rows, "error", err)
		return nil, serr
	}

	res := &Result{
		RunID:    r.id,
		Rows:     r.rows,
		Bytes:    r.out.Bytes(),
		Output:   job.Output,
		Duration: duration,
		Schema:   r.schema,
	}
	outcome.Bytes = res.Bytes
	p.opts.Metrics.ExportFinished(outcome)

	logger.Info("export completed",
		"rows", res.Rows,
		"bytes", res.Bytes,
		"duration", duration,
	)
	return res, nil
}

func (r *run) execute(ctx context.Context) error {
	if err := r.job.validate(); err != nil {
		return err
	}

	enc, err := encoder.New(r.job.Format, r.job.Encoder)
	if err != nil {
		return err
	}

	r.transition(Connecting)
	conn, err := r.job.Driver.Connect(ctx, r.job.DSN)
	if err != nil {
		return asConnectionError(string(r.job.Driver.Kind()), err)
	}
	r.conn = conn

	r.transition(Querying)
	schema, cursor, err := conn.Query(ctx, r.job.Query)
	if err != nil {
		return asQueryError(r.job.Query, err)
	}
	r.schema = schema
	r.cursor = cursor

	r.transition(Exporting)
	out, err := createAtomic(r.job.Output, r.job.Compression)
	if err != nil {
		return err
	}
	r.out = out

	switch e := enc.(type) {
	case encoder.StreamEncoder:
		err = r.stream(ctx, e)
	case encoder.MaterializingEncoder:
		err = r.materialize(ctx, e)
	default:
		err = fmt.Errorf("encoder for %s implements neither streaming nor materializing", r.job.Format)
	}
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.out.Commit(); err != nil {
		return err
	}
	r.transition(Done)
	return nil
}

func (r *run) stream(ctx context.Context, enc encoder.StreamEncoder) error {
	if err := enc.Begin(r.out, r.schema); err != nil {
		return r.encodeErr(err)
	}
	for {
		row, err := r.cursor.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return asQueryError(r.job.Query, err)
		}
		if err := enc.WriteRow(row); err != nil {
			return r.encodeErr(err)
		}
		r.advance()
	}
	r.reportProgress()

	r.transition(Finalizing)
	if err := enc.Finish(); err != nil {
		return r.encodeErr(err)
	}
	return nil
}

func (r *run) materialize(ctx context.Context, enc encoder.MaterializingEncoder) error {
	limit, limitErr := r.p.opts.MaxBufferedRows, ErrBufferLimit
	if l, ok := enc.(encoder.RowLimiter); ok {
		if n := l.MaxRows(); limit <= 0 || n < limit {
			limit, limitErr = n, ErrFormatRowLimit
		}
	}

	ds := export.NewDataset(r.schema)
	for {
		row, err := r.cursor.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return asQueryError(r.job.Query, err)
		}
		if limit > 0 && ds.Len() >= limit {
			return export.NewEncodingError(string(r.job.Format), ds.Len(), "", limitErr)
		}
		if err := ds.Append(row); err != nil {
			return err
		}
		r.advance()
	}
	r.reportProgress()

	// Release the cursor before the potentially long encode.
	r.closeCursor()

	r.transition(Finalizing)
	if err := enc.Encode(r.out, ds); err != nil {
		return r.encodeErr(err)
	}
	return nil
}

func (r *run) advance() {
	r.rows++
	if r.rows%int64(r.p.opts.ProgressEvery) == 0 {
		r.reportProgress()
	}
}

func (r *run) reportProgress() {
	if r.p.opts.Progress != nil {
		r.p.opts.Progress(r.rows)
	}
}

// encodeErr turns an encoder failure caused by the output file into an
// IOError.
func (r *run) encodeErr(err error) error {
	if werr := r.out.WriteErr(); werr != nil {
		return export.NewIOError("write", r.job.Output, werr)
	}
	return err
}

func (r *run) transition(to State) {
	from := r.state
	if !canTransition(from, to) {
		return
	}
	r.state = to
	r.p.logger.Debug("state transition", "run_id", r.id, "from", from.String(), "to", to.String())
	if r.p.opts.OnTransition != nil {
		r.p.opts.OnTransition(from, to)
	}
}

func (r *run) closeCursor() {
	if r.cursor == nil {
		return
	}
	if err := r.cursor.Close(); err != nil {
		r.p.logger.Warn("failed to close cursor", "run_id", r.id, "error", err)
	}
	r.cursor = nil
}

// release frees every resource the run holds. The temporary output file is
// removed unless it was committed.
func (r *run) release() {
	r.closeCursor()
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			r.p.logger.Warn("failed to close connection", "run_id", r.id, "error", err)
		}
		r.conn = nil
	}
	if r.out != nil {
		r.out.Abort()
	}
}

func (j Job) validate() error {
	if j.Driver == nil {
		return errors.New("no driver")
	}
	if j.Query == "" {
		return errors.New("empty query")
	}
	if j.Output == "" {
		return errors.New("no output path")
	}
	if !j.Format.Valid() {
		return fmt.Errorf("unknown format %q", j.Format)
	}
	switch j.Compression {
	case "", CompressionNone, CompressionSnappy:
	default:
		return fmt.Errorf("unknown compression %q", j.Compression)
	}
	return nil
}

// asConnectionError leaves typed and context errors alone and wraps anything
// else as a ConnectionError.
func asConnectionError(kind string, err error) error {
	if isClassified(err) {
		return err
	}
	return export.NewConnectionError(kind, err)
}

func asQueryError(query string, err error) error {
	if isClassified(err) {
		return err
	}
	return export.NewQueryError(query, err)
}

func isClassified(err error) bool {
	var (
		connErr     *export.ConnectionError
		queryErr    *export.QueryError
		coercionErr *export.TypeCoercionError
		encodingErr *export.EncodingError
		ioErr       *export.IOError
	)
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &connErr) ||
		errors.As(err, &queryErr) ||
		errors.As(err, &coercionErr) ||
		errors.As(err, &encodingErr) ||
		errors.As(err, &ioErr)
}

// errorRow returns the row an error refers to. Coercion and encoding errors
// carry their own index; other failures while exporting refer to the next
// row to be pulled.
func errorRow(err error, stage State, pulled int64) int {
	var coercionErr *export.TypeCoercionError
	if errors.As(err, &coercionErr) && coercionErr.Row >= 0 {
		return coercionErr.Row
	}
	var encodingErr *export.EncodingError
	if errors.As(err, &encodingErr) && encodingErr.Row >= 0 {
		return encodingErr.Row
	}
	if stage == Exporting {
		return int(pulled)
	}
	return -1
}
