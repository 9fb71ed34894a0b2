// Package runner executes job invocations requested by the admin.
//
// An invocation moves through Received -> Claimed -> Running ->
// {Succeeded | Failed | TimedOut} -> Reported. The handler result and the
// timeout timer race; a single select consumes whichever arrives first, so
// every accepted invocation releases its registry slot exactly once and sends
// exactly one completion report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/xxl-executor/internal/handler"
	"github.com/mattjoyce/xxl-executor/internal/joblog"
	"github.com/mattjoyce/xxl-executor/internal/log"
	"github.com/mattjoyce/xxl-executor/internal/protocol"
	"github.com/mattjoyce/xxl-executor/internal/registry"
)

//go:generate mockgen -destination=mocks/mock_reporter.go -package=mocks github.com/mattjoyce/xxl-executor/internal/runner Reporter

// Reporter delivers completion reports to the admin. Implementations log
// and swallow delivery failures.
type Reporter interface {
	ReportCompletion(ctx context.Context, result protocol.HandleCallbackParam)
}

// Synchronous rejections. Run wraps them with the offending value.
var (
	ErrNoHandler     = errors.New("no matched jobHandler")
	ErrDuplicateJob  = errors.New("a job with the same id is already running")
	ErrInvalidParams = errors.New("invalid executorParams")
	ErrShuttingDown  = errors.New("executor is shutting down")
)

// Config wires a Runner to its collaborators.
type Config struct {
	Handlers *handler.Table
	Registry *registry.Registry
	Logs     *joblog.Manager
	Reporter Reporter
	// Shared is handed to every handler call.
	Shared any
	Logger *slog.Logger
}

// Runner runs job handlers on behalf of the admin.
type Runner struct {
	handlers *handler.Table
	registry *registry.Registry
	logs     *joblog.Manager
	reporter Reporter
	shared   any
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// gate makes the closing check and wg.Add in Run atomic with respect
	// to Shutdown flipping closing.
	gate    sync.RWMutex
	closing atomic.Bool
}

// New creates a Runner. A nil Registry gets a fresh one.
func New(cfg Config) *Runner {
	if cfg.Registry == nil {
		cfg.Registry = registry.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithComponent("runner")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		handlers: cfg.Handlers,
		registry: cfg.Registry,
		logs:     cfg.Logs,
		reporter: cfg.Reporter,
		shared:   cfg.Shared,
		logger:   cfg.Logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// invocation is one Running Job Entry.
type invocation struct {
	req     protocol.TriggerParam
	fn      handler.Func
	params  handler.Params
	timeout time.Duration
	log     *joblog.Writer
	jobLog  *slog.Logger
	logger  *slog.Logger
}

type outcome struct {
	result   any
	err      error
	timedOut bool
}

// Run validates and claims req, then starts the handler in the background.
// It returns before the handler finishes; a nil error means the run was
// accepted and a completion report will follow.
func (r *Runner) Run(req protocol.TriggerParam) error {
	r.gate.RLock()
	defer r.gate.RUnlock()
	if r.closing.Load() {
		return ErrShuttingDown
	}

	fn, ok := r.handlers.Get(req.ExecutorHandler)
	if !ok {
		return fmt.Errorf("%w(%s)", ErrNoHandler, req.ExecutorHandler)
	}

	params, err := handler.ParseParams(req.ExecutorParams)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	if !r.registry.TryClaim(req.JobID) {
		return fmt.Errorf("%w, jobId:%d", ErrDuplicateJob, req.JobID)
	}

	w, err := r.logs.Open(req.ExecutorHandler, req.LogDateTime, req.LogID)
	if err != nil {
		r.registry.Release(req.JobID)
		return fmt.Errorf("prepare job log: %w", err)
	}

	inv := &invocation{
		req:    req,
		fn:     fn,
		params: params,
		log:    w,
		jobLog: w.Logger(),
		logger: log.WithJob(req.JobID).With("handler", req.ExecutorHandler, "log_id", req.LogID),
	}
	if req.ExecutorTimeout > 0 {
		inv.timeout = time.Duration(req.ExecutorTimeout) * time.Second
	}

	inv.jobLog.Info("start", "jobId", req.JobID, "handler", req.ExecutorHandler, "params", params, "timeout", inv.timeout)
	inv.logger.Info("job accepted", "timeout", inv.timeout, "log", w.Path(), "namespace", w.Namespace())

	r.wg.Add(1)
	go r.execute(inv)
	return nil
}

// execute drives one invocation to its single terminal state.
func (r *Runner) execute(inv *invocation) {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	// Buffered so the handler goroutine never blocks when it loses the race.
	outcomes := make(chan outcome, 1)
	go func() {
		res, err := r.invoke(ctx, inv)
		outcomes <- outcome{result: res, err: err}
	}()

	var timeout <-chan time.Time
	if inv.timeout > 0 {
		timer := time.NewTimer(inv.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var out outcome
	select {
	case out = <-outcomes:
	case <-timeout:
		out = outcome{err: fmt.Errorf("job execution timeout after %s", inv.timeout), timedOut: true}
		cancel()
	}

	r.finish(inv, out)
}

func (r *Runner) invoke(ctx context.Context, inv *invocation) (res any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job handler panicked: %v", p)
		}
	}()
	return inv.fn(ctx, inv.jobLog, inv.params, r.shared)
}

// finish releases the slot, closes the job log and reports, in that order.
func (r *Runner) finish(inv *invocation, out outcome) {
	report := protocol.HandleCallbackParam{
		LogID:      inv.req.LogID,
		HandleCode: protocol.CodeSuccess,
		HandleMsg:  "success",
	}

	switch {
	case out.timedOut:
		inv.jobLog.Error("timeout", "error", out.err)
		inv.logger.Warn("job timed out", "timeout", inv.timeout)
	case out.err != nil:
		inv.jobLog.Error("error", "error", out.err)
		inv.logger.Warn("job failed", "error", out.err)
	default:
		if out.result != nil {
			inv.jobLog.Info("result", "result", out.result)
		}
		inv.logger.Info("job succeeded")
	}
	if out.err != nil {
		report.HandleCode = protocol.CodeFail
		report.HandleMsg = out.err.Error()
	}
	inv.jobLog.Info("end")

	r.registry.Release(inv.req.JobID)
	if err := inv.log.Close(); err != nil {
		inv.logger.Warn("failed to close job log", "path", inv.log.Path(), "error", err)
	}

	report.LogDateTim = r.now().UnixMilli()
	r.reporter.ReportCompletion(context.WithoutCancel(r.ctx), report)
}

// IsRunning reports whether jobID has a live invocation.
func (r *Runner) IsRunning(jobID int64) bool {
	return r.registry.Contains(jobID)
}

// Running returns the number of live invocations.
func (r *Runner) Running() int {
	return r.registry.Len()
}

// Shutdown stops accepting runs and waits for in-flight invocations to
// report. If ctx expires first, handler contexts are cancelled and ctx's
// error is returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.gate.Lock()
	r.closing.Store(true)
	r.gate.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		r.logger.Warn("shutdown deadline reached with jobs still running", "running", r.registry.Snapshot())
		return ctx.Err()
	}
}
