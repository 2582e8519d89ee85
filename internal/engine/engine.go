// Package engine watches a countdown and clicks through the purchase once it
// reaches zero.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ConserveLee/flash-buyer/internal/engine/countdown"
	"github.com/ConserveLee/flash-buyer/internal/engine/input"
	"github.com/ConserveLee/flash-buyer/internal/engine/progress"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
	"github.com/ConserveLee/flash-buyer/internal/errs"
)

// CountdownReader reads the seconds left in a region.
type CountdownReader interface {
	Read(region screen.Region, formats []countdown.TimeFormat, opts countdown.ReadOptions) (countdown.Reading, error)
}

// SleepFunc pauses for d, returning early once interrupt is closed.
type SleepFunc func(d time.Duration, interrupt <-chan struct{})

// Job describes one monitored purchase.
type Job struct {
	Region         screen.Region
	Formats        []countdown.TimeFormat
	BuyPoint       screen.Point
	ConfirmPoint   *screen.Point
	CheckInterval  time.Duration
	ClickDelay     time.Duration // pause between clicks, also the pointer move duration
	MaxRetries     int
	ConfirmEnabled bool
	Read           countdown.ReadOptions
}

func (j Job) validate() error {
	var confirm []int
	if j.ConfirmPoint != nil {
		confirm = j.ConfirmPoint.Slice()
	}
	_, problems := ValidateConfiguration(j.Region.Slice(), j.BuyPoint.Slice(), confirm)
	if len(j.Formats) == 0 {
		problems = append(problems, "at least one countdown format is required")
	}
	if j.CheckInterval <= 0 {
		problems = append(problems, fmt.Sprintf("check interval must be positive, got %v", j.CheckInterval))
	}
	if j.MaxRetries < 1 {
		problems = append(problems, fmt.Sprintf("max retries must be at least 1, got %d", j.MaxRetries))
	}
	if len(problems) > 0 {
		return errs.Configuration("job", strings.Join(problems, "; "))
	}
	return nil
}

// Result summarizes a finished run.
type Result struct {
	State   RunState
	Reason  WaitEndReason
	Clicks  int
	Elapsed time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSleeper replaces the timer based sleep, mostly for tests.
func WithSleeper(s SleepFunc) Option {
	return func(e *Engine) {
		if s != nil {
			e.sleep = s
		}
	}
}

// Engine runs one countdown watch at a time.
type Engine struct {
	reader  CountdownReader
	clicker input.Clicker
	logger  *slog.Logger
	sleep   SleepFunc

	mu      sync.Mutex
	current *run // nil when no run is active

	state atomic.Int32
}

// New creates an idle engine.
func New(reader CountdownReader, clicker input.Clicker, opts ...Option) *Engine {
	e := &Engine{
		reader:  reader,
		clicker: clicker,
		logger:  slog.Default(),
		sleep:   timerSleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the state owned by one Start call. Only cancelled is touched from
// other goroutines.
type run struct {
	ctx       context.Context
	job       Job
	sink      progress.Sink
	logger    *slog.Logger
	retries   int
	clicks    int
	cancelled atomic.Bool
	wake      chan struct{}
}

// cancel raises the flag and wakes a sleeping loop. It reports whether this
// call was the one that raised it.
func (r *run) cancel() bool {
	if r.cancelled.Swap(true) {
		return false
	}
	close(r.wake)
	return true
}

func (r *run) stopRequested() bool {
	return r.cancelled.Load() || r.ctx.Err() != nil
}

func (r *run) notify(msg string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Warn("progress notification failed", "message", msg, "panic", p)
		}
	}()
	r.sink.Notify(msg)
}

// State returns the current run state.
func (e *Engine) State() RunState {
	return RunState(e.state.Load())
}

func (e *Engine) setState(s RunState) {
	old := RunState(e.state.Swap(int32(s)))
	if old != s {
		e.logger.Debug("state changed", "from", old, "to", s)
	}
}

// IsRunning reports whether a run is in progress.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

// Start watches the countdown described by job and performs the purchase
// clicks when it expires. It blocks until the run ends; hosts that must stay
// responsive call it from their own goroutine. Cancelling ctx acts like Stop.
//
// A stopped run returns StateStopped and a nil error. Any failure leaves the
// engine in StateError and returns a *errs.Error.
func (e *Engine) Start(ctx context.Context, job Job, sink progress.Sink) (Result, error) {
	if sink == nil {
		sink = progress.Discard
	}

	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return Result{State: e.State()}, errs.ErrAlreadyRunning
	}
	if err := job.validate(); err != nil {
		e.mu.Unlock()
		progress.Func(sink.Notify).Notify(fmt.Sprintf("自动化执行失败: %v", err))
		return Result{State: e.State()}, err
	}
	r := &run{
		ctx:    ctx,
		job:    job,
		sink:   sink,
		logger: e.logger,
		wake:   make(chan struct{}),
	}
	e.current = r
	e.setState(StateMonitoring)
	e.mu.Unlock()

	defer func() {
		r.cancel()
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
	}()

	stopWatch := context.AfterFunc(ctx, func() {
		if r.cancel() {
			e.logger.Info("run cancelled by context")
			r.notify("监控已停止")
		}
	})
	defer stopWatch()

	e.logger.Info("starting countdown monitoring", "region", job.Region, "formats", len(job.Formats),
		"check_interval", job.CheckInterval, "max_retries", job.MaxRetries)

	start := time.Now()
	res, err := e.execute(r)
	res.Elapsed = time.Since(start)
	res.Clicks = r.clicks
	return res, err
}

func (e *Engine) execute(r *run) (Result, error) {
	reason := e.wait(r)
	if reason == ReasonCancelled || r.stopRequested() {
		e.setState(StateStopped)
		e.logger.Info("monitoring stopped")
		return Result{State: StateStopped, Reason: ReasonCancelled}, nil
	}

	if err := e.purchase(r); err != nil {
		e.setState(StateError)
		e.logger.Error("automation failed", "error", err)
		r.notify(fmt.Sprintf("自动化执行失败: %v", err))
		return Result{State: StateError, Reason: reason}, errs.Automation("run", "", err)
	}

	e.setState(StateCompleted)
	return Result{State: StateCompleted, Reason: reason}, nil
}

// wait polls the countdown until it expires, recognition is exhausted or the
// run is stopped.
func (e *Engine) wait(r *run) WaitEndReason {
	for {
		if r.stopRequested() {
			return ReasonCancelled
		}
		reason, pause, done := e.poll(r)
		if done {
			return reason
		}
		e.sleep(pause, r.wake)
	}
}

// poll runs one monitoring iteration. Errors and panics never end the wait;
// they are reported and the loop retries after the check interval.
func (e *Engine) poll(r *run) (reason WaitEndReason, pause time.Duration, done bool) {
	j := r.job
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("panic during countdown monitoring", "panic", p)
			r.notify(fmt.Sprintf("监控过程出错: %v", p))
			reason, pause, done = ReasonNone, j.CheckInterval, false
		}
	}()

	reading, err := e.reader.Read(j.Region, j.Formats, j.Read)
	if err != nil {
		e.logger.Error("error during countdown monitoring", "error", err)
		r.notify(fmt.Sprintf("监控过程出错: %v", err))
		return ReasonNone, j.CheckInterval, false
	}

	if reading.OK {
		r.retries = 0
		n := reading.Seconds
		r.notify(fmt.Sprintf("剩余时间: %d秒", n))
		e.logger.Info("countdown", "remaining", n)
		if n <= 0 {
			e.logger.Info("countdown reached zero, proceeding to purchase")
			return ReasonExpired, 0, true
		}
		// min(CheckInterval, n s) without multiplying a huge n
		next := j.CheckInterval
		if n <= int(j.CheckInterval/time.Second) {
			next = time.Duration(n) * time.Second
		}
		return ReasonNone, next, false
	}

	r.retries++
	r.notify(fmt.Sprintf("倒计时识别失败 (重试 %d/%d)", r.retries, j.MaxRetries))
	e.logger.Warn("countdown not recognized", "retry", r.retries, "max", j.MaxRetries)
	if r.retries >= j.MaxRetries {
		e.logger.Warn("max retries reached, assuming countdown ended")
		r.notify("连续识别失败，可能倒计时已结束")
		return ReasonRecognitionExhausted, 0, true
	}
	return ReasonNone, j.CheckInterval, false
}

// purchase clicks buy and, if enabled, confirm. Stop is not observed here.
func (e *Engine) purchase(r *run) error {
	j := r.job
	e.setState(StateExecuting)
	e.logger.Info("executing purchase sequence")
	r.notify("正在执行购买操作...")

	if err := e.click(j.BuyPoint, "buy button", j.ClickDelay); err != nil {
		r.notify(fmt.Sprintf("购买操作失败: %v", err))
		return err
	}
	r.clicks++

	if j.ConfirmEnabled && j.ConfirmPoint != nil {
		e.sleep(j.ClickDelay, nil)
		if err := e.click(*j.ConfirmPoint, "confirm button", j.ClickDelay); err != nil {
			r.notify(fmt.Sprintf("购买操作失败: %v", err))
			return err
		}
		r.clicks++
	}

	e.logger.Info("purchase sequence completed", "clicks", r.clicks)
	r.notify("购买操作完成！")
	return nil
}

func (e *Engine) click(p screen.Point, name string, moveDuration time.Duration) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errs.Automation("click "+name, fmt.Sprintf("failed to click %s at %v", name, p), fmt.Errorf("panic: %v", rec))
		}
	}()

	e.logger.Info("clicking", "target", name, "x", p.X, "y", p.Y)
	if err := e.clicker.MoveAndClick(p, moveDuration); err != nil {
		return errs.Automation("click "+name, fmt.Sprintf("failed to click %s at %v", name, p), err)
	}
	return nil
}

// Stop asks the active run to end before its purchase phase. It does not
// interrupt a click or a recognition already in flight, and does nothing when
// no run is active.
func (e *Engine) Stop() {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()
	if r == nil {
		return
	}
	if r.cancel() {
		e.logger.Info("stopping automation engine")
		r.notify("监控已停止")
	}
}

// TestClick clicks a single point so the user can check a configured position.
func (e *Engine) TestClick(p screen.Point, moveDuration time.Duration) error {
	e.logger.Info("testing click position", "x", p.X, "y", p.Y)
	if err := e.click(p, "test position", moveDuration); err != nil {
		e.logger.Error("test click failed", "error", err)
		return err
	}
	return nil
}

func timerSleep(d time.Duration, interrupt <-chan struct{}) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-interrupt:
	}
}
