package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/flash-buyer/internal/engine/countdown"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
	"github.com/ConserveLee/flash-buyer/internal/errs"
)

// step is one scripted reader response.
type step struct {
	reading countdown.Reading
	err     error
	panic   any
	before  func() // runs before the response is returned
}

type scriptedReader struct {
	steps []step
	calls int
}

func (s *scriptedReader) Read(screen.Region, []countdown.TimeFormat, countdown.ReadOptions) (countdown.Reading, error) {
	if s.calls >= len(s.steps) {
		panic("reader called more often than scripted")
	}
	st := s.steps[s.calls]
	s.calls++
	if st.before != nil {
		st.before()
	}
	if st.panic != nil {
		panic(st.panic)
	}
	return st.reading, st.err
}

type fakeClicker struct {
	clicks []screen.Point
	failAt int // 1-based click number that fails, 0 never
}

func (c *fakeClicker) MoveAndClick(p screen.Point, _ time.Duration) error {
	if c.failAt == len(c.clicks)+1 {
		return errors.New("device unavailable")
	}
	c.clicks = append(c.clicks, p)
	return nil
}

type messages struct {
	mu   sync.Mutex
	msgs []string
}

func (m *messages) Notify(msg string) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
}

func (m *messages) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.msgs...)
}

type sleepRecorder struct {
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration, _ <-chan struct{}) {
	s.sleeps = append(s.sleeps, d)
}

var (
	buyPoint     = screen.Point{X: 500, Y: 600}
	confirmPoint = screen.Point{X: 550, Y: 650}
)

func testJob(t *testing.T) Job {
	t.Helper()
	formats, err := countdown.CompileFormats(countdown.DefaultPatterns)
	require.NoError(t, err)
	confirm := confirmPoint
	return Job{
		Region:         screen.Region{Left: 100, Top: 200, Right: 300, Bottom: 240},
		Formats:        formats,
		BuyPoint:       buyPoint,
		ConfirmPoint:   &confirm,
		CheckInterval:  100 * time.Millisecond,
		ClickDelay:     50 * time.Millisecond,
		MaxRetries:     3,
		ConfirmEnabled: true,
		Read:           countdown.DefaultReadOptions(),
	}
}

func newTestEngine(reader CountdownReader, clicker *fakeClicker, sleeper *sleepRecorder) *Engine {
	return New(reader, clicker, WithSleeper(sleeper.sleep))
}

func seconds(n int) step { return step{reading: countdown.Seconds(n)} }

func unrecognized() step { return step{reading: countdown.Unrecognized()} }

func TestEngine_CountdownToPurchase(t *testing.T) {
	reader := &scriptedReader{steps: []step{seconds(3), seconds(2), seconds(1), seconds(0)}}
	clicker := &fakeClicker{}
	sleeper := &sleepRecorder{}
	sink := &messages{}
	e := newTestEngine(reader, clicker, sleeper)

	res, err := e.Start(context.Background(), testJob(t), sink)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, ReasonExpired, res.Reason)
	assert.Equal(t, 2, res.Clicks)
	assert.Equal(t, []screen.Point{buyPoint, confirmPoint}, clicker.clicks)
	assert.Equal(t, StateCompleted, e.State())
	assert.False(t, e.IsRunning())

	assert.Equal(t, []string{
		"剩余时间: 3秒",
		"剩余时间: 2秒",
		"剩余时间: 1秒",
		"剩余时间: 0秒",
		"正在执行购买操作...",
		"购买操作完成！",
	}, sink.all())
}

func TestEngine_SleepNeverExceedsRemaining(t *testing.T) {
	reader := &scriptedReader{steps: []step{seconds(1), seconds(0)}}
	sleeper := &sleepRecorder{}
	job := testJob(t)
	job.CheckInterval = 5 * time.Second
	job.ConfirmEnabled = false

	_, err := newTestEngine(reader, &fakeClicker{}, sleeper).Start(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.sleeps)
}

func TestEngine_SleepWithHugeReading(t *testing.T) {
	reader := &scriptedReader{steps: []step{seconds(math.MaxInt), seconds(countdown.MaxSeconds), seconds(0)}}
	sleeper := &sleepRecorder{}
	job := testJob(t)
	job.CheckInterval = 1500 * time.Millisecond

	res, err := newTestEngine(reader, &fakeClicker{}, sleeper).Start(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, []time.Duration{job.CheckInterval, job.CheckInterval}, sleeper.sleeps)
}

func TestEngine_RetryResetsOnSuccess(t *testing.T) {
	reader := &scriptedReader{steps: []step{
		unrecognized(), unrecognized(), seconds(5),
		unrecognized(), unrecognized(), seconds(0),
	}}
	sink := &messages{}
	sleeper := &sleepRecorder{}

	res, err := newTestEngine(reader, &fakeClicker{}, sleeper).Start(context.Background(), testJob(t), sink)
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, res.Reason)
	assert.Equal(t, 6, reader.calls)

	msgs := sink.all()
	assert.Contains(t, msgs, "倒计时识别失败 (重试 2/3)")
	assert.NotContains(t, msgs, "倒计时识别失败 (重试 3/3)")
	assert.Equal(t, "倒计时识别失败 (重试 1/3)", msgs[3])
}

func TestEngine_RecognitionExhausted(t *testing.T) {
	reader := &scriptedReader{steps: []step{unrecognized(), unrecognized(), unrecognized()}}
	clicker := &fakeClicker{}
	sink := &messages{}
	sleeper := &sleepRecorder{}

	res, err := newTestEngine(reader, clicker, sleeper).Start(context.Background(), testJob(t), sink)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, ReasonRecognitionExhausted, res.Reason)
	assert.Len(t, clicker.clicks, 2)
	assert.Contains(t, sink.all(), "连续识别失败，可能倒计时已结束")

	interval := testJob(t).CheckInterval
	click := testJob(t).ClickDelay
	assert.Equal(t, []time.Duration{interval, interval, click}, sleeper.sleeps)
}

func TestEngine_ImmediateExpiryDoesNotSleep(t *testing.T) {
	reader := &scriptedReader{steps: []step{seconds(0)}}
	clicker := &fakeClicker{}
	sleeper := &sleepRecorder{}
	job := testJob(t)
	job.ConfirmEnabled = false

	res, err := newTestEngine(reader, clicker, sleeper).Start(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, 1, reader.calls)
	assert.Empty(t, sleeper.sleeps)
}

func TestEngine_ConfirmDisabledClicksBuyOnly(t *testing.T) {
	reader := &scriptedReader{steps: []step{seconds(0)}}
	clicker := &fakeClicker{}
	job := testJob(t)
	job.ConfirmEnabled = false

	res, err := newTestEngine(reader, clicker, &sleepRecorder{}).Start(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Clicks)
	assert.Equal(t, []screen.Point{buyPoint}, clicker.clicks)
}

func TestEngine_NoConfirmPoint(t *testing.T) {
	reader := &scriptedReader{steps: []step{seconds(0)}}
	clicker := &fakeClicker{}
	job := testJob(t)
	job.ConfirmPoint = nil

	_, err := newTestEngine(reader, clicker, &sleepRecorder{}).Start(context.Background(), job, nil)
	require.NoError(t, err)
	assert.Equal(t, []screen.Point{buyPoint}, clicker.clicks)
}

func TestEngine_IterationErrorsDoNotAbort(t *testing.T) {
	reader := &scriptedReader{steps: []step{
		{err: errs.Recognition("capture", testJob(t).Region.Rect(), errors.New("no display"))},
		{panic: "ocr crashed"},
		unrecognized(),
		seconds(0),
	}}
	sink := &messages{}
	sleeper := &sleepRecorder{}

	res, err := newTestEngine(reader, &fakeClicker{}, sleeper).Start(context.Background(), testJob(t), sink)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, ReasonExpired, res.Reason)

	msgs := sink.all()
	assert.Contains(t, msgs[0], "监控过程出错")
	assert.Equal(t, "监控过程出错: ocr crashed", msgs[1])
	// errors do not count as recognition retries
	assert.Equal(t, "倒计时识别失败 (重试 1/3)", msgs[2])
}

func TestEngine_StopBeforeFirstIteration(t *testing.T) {
	var e *Engine
	reader := &scriptedReader{steps: []step{
		{reading: countdown.Seconds(0), before: func() { e.Stop() }},
	}}
	clicker := &fakeClicker{}
	sink := &messages{}
	e = newTestEngine(reader, clicker, &sleepRecorder{})

	res, err := e.Start(context.Background(), testJob(t), sink)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, res.State)
	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Empty(t, clicker.clicks)
	assert.Contains(t, sink.all(), "监控已停止")
	assert.Equal(t, StateStopped, e.State())
}

func TestEngine_StopDuringWait(t *testing.T) {
	var e *Engine
	reader := &scriptedReader{steps: []step{
		seconds(10),
		{reading: countdown.Seconds(9), before: func() { e.Stop() }},
	}}
	clicker := &fakeClicker{}
	e = newTestEngine(reader, clicker, &sleepRecorder{})

	res, err := e.Start(context.Background(), testJob(t), nil)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, res.State)
	assert.Equal(t, 2, reader.calls)
	assert.Empty(t, clicker.clicks)
}

func TestEngine_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &scriptedReader{}
	clicker := &fakeClicker{}
	res, err := newTestEngine(reader, clicker, &sleepRecorder{}).Start(ctx, testJob(t), nil)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, res.State)
	assert.Zero(t, reader.calls)
	assert.Empty(t, clicker.clicks)
}

func TestEngine_StopWakesSleep(t *testing.T) {
	polled := make(chan struct{})
	reader := &scriptedReader{steps: []step{
		{reading: countdown.Seconds(60), before: func() { close(polled) }},
	}}
	job := testJob(t)
	job.CheckInterval = time.Hour
	e := New(reader, &fakeClicker{})

	done := make(chan Result, 1)
	go func() {
		res, _ := e.Start(context.Background(), job, nil)
		done <- res
	}()

	<-polled
	e.Stop()

	select {
	case res := <-done:
		assert.Equal(t, StateStopped, res.State)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the sleep")
	}
}

func TestEngine_AlreadyRunning(t *testing.T) {
	var e *Engine
	var nested error
	var stateDuring RunState
	reader := &scriptedReader{steps: []step{
		{reading: countdown.Seconds(0), before: func() {
			_, nested = e.Start(context.Background(), testJob(t), nil)
			stateDuring = e.State()
		}},
	}}
	e = newTestEngine(reader, &fakeClicker{}, &sleepRecorder{})

	res, err := e.Start(context.Background(), testJob(t), nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)

	assert.ErrorIs(t, nested, errs.ErrAlreadyRunning)
	assert.True(t, errs.IsKind(nested, errs.KindAutomation))
	assert.Equal(t, StateMonitoring, stateDuring)
}

func TestEngine_ClickFailure(t *testing.T) {
	tests := []struct {
		name   string
		failAt int
		target string
		clicks int
	}{
		{"buy", 1, "buy button", 0},
		{"confirm", 2, "confirm button", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &scriptedReader{steps: []step{seconds(0)}}
			clicker := &fakeClicker{failAt: tt.failAt}
			sink := &messages{}
			e := newTestEngine(reader, clicker, &sleepRecorder{})

			res, err := e.Start(context.Background(), testJob(t), sink)
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindAutomation))
			assert.Contains(t, err.Error(), tt.target)
			assert.Equal(t, StateError, res.State)
			assert.Equal(t, StateError, e.State())
			assert.Equal(t, tt.clicks, res.Clicks)
			assert.False(t, e.IsRunning())

			msgs := sink.all()
			require.NotEmpty(t, msgs)
			assert.Contains(t, msgs[len(msgs)-1], "自动化执行失败")
		})
	}
}

func TestEngine_RestartAfterTerminalState(t *testing.T) {
	reader := &scriptedReader{steps: []step{seconds(0), seconds(0)}}
	clicker := &fakeClicker{}
	e := newTestEngine(reader, clicker, &sleepRecorder{})
	job := testJob(t)
	job.ConfirmEnabled = false

	for i := 0; i < 2; i++ {
		res, err := e.Start(context.Background(), job, nil)
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, res.State)
	}
	assert.Len(t, clicker.clicks, 2)
}

func TestEngine_InvalidJob(t *testing.T) {
	job := testJob(t)
	job.Region = screen.Region{Left: 300, Top: 200, Right: 100, Bottom: 400}
	job.Formats = nil
	sink := &messages{}
	e := newTestEngine(&scriptedReader{}, &fakeClicker{}, &sleepRecorder{})

	_, err := e.Start(context.Background(), job, sink)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
	assert.Contains(t, err.Error(), "left (300) must be less than right (100)")
	assert.Equal(t, StateIdle, e.State())
	assert.Len(t, sink.all(), 1)
}

func TestEngine_JobNeedsRetries(t *testing.T) {
	job := testJob(t)
	job.MaxRetries = 0
	reader := &scriptedReader{}
	clicker := &fakeClicker{}

	_, err := newTestEngine(reader, clicker, &sleepRecorder{}).Start(context.Background(), job, nil)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
	assert.Contains(t, err.Error(), "max retries must be at least 1, got 0")
	assert.Zero(t, reader.calls)
	assert.Empty(t, clicker.clicks)
}

func TestEngine_StopWhenIdle(t *testing.T) {
	e := New(&scriptedReader{}, &fakeClicker{})
	assert.NotPanics(t, e.Stop)
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_TestClick(t *testing.T) {
	clicker := &fakeClicker{}
	e := New(&scriptedReader{}, clicker)
	require.NoError(t, e.TestClick(buyPoint, 0))
	assert.Equal(t, []screen.Point{buyPoint}, clicker.clicks)

	failing := New(&scriptedReader{}, &fakeClicker{failAt: 1})
	assert.Error(t, failing.TestClick(buyPoint, 0))
}

func TestEngine_PanickingSinkIsIgnored(t *testing.T) {
	reader := &scriptedReader{steps: []step{seconds(0)}}
	clicker := &fakeClicker{}
	sink := sinkFunc(func(string) { panic("ui gone") })

	res, err := newTestEngine(reader, clicker, &sleepRecorder{}).Start(context.Background(), testJob(t), sink)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
}

type sinkFunc func(string)

func (f sinkFunc) Notify(m string) { f(m) }
