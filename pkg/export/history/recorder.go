package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"mercator-hq/dbxport/pkg/export/pipeline"
	"mercator-hq/dbxport/pkg/telemetry/logging"
)

// recordTimeout bounds writing one run to the store.
const recordTimeout = 10 * time.Second

// Runner executes one export.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Retention drops runs older than this after each recorded run. Zero
	// keeps every run.
	Retention time.Duration

	Logger *logging.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Recorder is a Runner that stores the outcome of every run it passes to
// the next Runner. Failing to record never fails the export.
type Recorder struct {
	next     Runner
	store    Store
	opts     RecorderOptions
	logger   *logging.Logger
	redactor *logging.Redactor
}

// NewRecorder wraps next so that each run is recorded in store.
func NewRecorder(next Runner, store Store, opts RecorderOptions) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		next:     next,
		store:    store,
		opts:     opts,
		logger:   logger.With("component", "export.history"),
		redactor: logging.NewRedactor(nil),
	}
}

// Run runs job and records its outcome.
func (r *Recorder) Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error) {
	started := r.opts.Now()
	res, err := r.next.Run(ctx, job)

	run := newRun(job, started, res, err)
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Duration == 0 {
		run.Duration = r.opts.Now().Sub(started)
	}
	run.Error = r.redactor.RedactString(run.Error)

	// A cancelled export is still recorded.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if rerr := r.store.Record(recCtx, run); rerr != nil {
		r.logger.Warn("failed to record run", "run_id", run.ID, "error", rerr)
	}
	if r.opts.Retention > 0 {
		n, perr := r.store.Prune(recCtx, started.Add(-r.opts.Retention))
		switch {
		case perr != nil:
			r.logger.Warn("failed to prune run history", "error", perr)
		case n > 0:
			r.logger.Debug("pruned run history", "runs", n)
		}
	}

	return res, err
}

func newRun(job pipeline.Job, started time.Time, res *pipeline.Result, err error) *Run {
	run := &Run{
		Job:       job.Name,
		Format:    string(job.Format),
		Output:    job.Output,
		Status:    StatusSuccess,
		StartedAt: started,
	}
	if job.Driver != nil {
		run.Driver = string(job.Driver.Kind())
	}

	if err == nil {
		run.ID = res.RunID
		run.Rows = res.Rows
		run.Bytes = res.Bytes
		run.Duration = res.Duration
		return run
	}

	run.Status = StatusFailure
	if errors.Is(err, context.Canceled) {
		run.Status = StatusCancelled
	}
	run.Error = err.Error()

	var serr *pipeline.StageError
	if errors.As(err, &serr) {
		run.ID = serr.RunID
		run.Stage = serr.Stage.String()
		run.Rows = serr.Rows
	}
	return run
}
