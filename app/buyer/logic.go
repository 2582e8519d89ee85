package buyer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ConserveLee/flash-buyer/internal/config"
	"github.com/ConserveLee/flash-buyer/internal/constants"
	"github.com/ConserveLee/flash-buyer/internal/engine"
	"github.com/ConserveLee/flash-buyer/internal/engine/countdown"
	"github.com/ConserveLee/flash-buyer/internal/engine/input"
	"github.com/ConserveLee/flash-buyer/internal/engine/ocr"
	"github.com/ConserveLee/flash-buyer/internal/engine/progress"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
)

// Session owns the engine behind the buyer panel and runs it off the UI
// goroutine.
type Session struct {
	logFunc    func(string)
	statusFunc func(string)
	sink       progress.Sink
	logger     *slog.Logger

	// adapters, built on first use
	tesseract *ocr.Tesseract
	ocrOpts   ocr.Options
	reader    *countdown.Reader
	engine    *engine.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSession creates a session reporting through the given callbacks. sink
// receives engine progress messages.
func NewSession(log, status func(string), sink progress.Sink, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logFunc:    log,
		statusFunc: status,
		sink:       sink,
		logger:     logger,
	}
}

// prepare (re)builds the adapters when the OCR settings changed. Callers hold mu.
func (s *Session) prepare(cfg *config.Config) error {
	opts := cfg.OCROptions()
	if s.engine != nil && opts == s.ocrOpts {
		return nil
	}
	if s.tesseract != nil {
		s.tesseract.Close()
		s.tesseract = nil
	}
	tess, err := ocr.NewTesseract(opts, s.logger)
	if err != nil {
		return fmt.Errorf("OCR 初始化失败: %w", err)
	}
	s.tesseract = tess
	s.ocrOpts = opts
	s.reader = countdown.NewReader(screen.NewScreenCapturer(), tess, s.logger)
	s.engine = engine.New(s.reader, input.NewRobot(s.logger), engine.WithLogger(s.logger))
	return nil
}

// Running reports whether a run is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine != nil && s.engine.IsRunning()
}

// Start validates cfg and runs the countdown watch in the background. onDone
// is called from the run goroutine when it ends.
func (s *Session) Start(cfg *config.Config, onDone func(engine.Result, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil && s.engine.IsRunning() {
		return fmt.Errorf("监控已在运行")
	}
	job, err := cfg.Job()
	if err != nil {
		return err
	}
	if err := s.prepare(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	eng := s.engine

	s.logFunc(fmt.Sprintf("开始监控倒计时 %v", job.Region))
	s.statusFunc("状态: 监控中")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		sink := progress.NewDispatcher(s.sink, constants.ProgressBuffer, s.logger)
		res, err := eng.Start(ctx, job, sink)
		sink.Close()
		s.statusFunc("状态: " + describeResult(res, err))
		if onDone != nil {
			onDone(res, err)
		}
	}()
	return nil
}

// Stop ends the current run and waits for its goroutine. The run context is
// cancelled even if the goroutine has not reached the engine yet.
func (s *Session) Stop() {
	s.mu.Lock()
	eng, cancel := s.engine, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if eng != nil {
		eng.Stop()
	}
	s.wg.Wait()
}

// TestOCR reads the configured region once.
func (s *Session) TestOCR(cfg *config.Config) (countdown.Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	region, err := cfg.Region()
	if err != nil {
		return countdown.Trace{}, err
	}
	formats, err := countdown.CompileFormats(cfg.CountdownFormats)
	if err != nil {
		return countdown.Trace{}, err
	}
	if err := s.prepare(cfg); err != nil {
		return countdown.Trace{}, err
	}
	return s.reader.Inspect(region, formats, cfg.ReadOptions())
}

// TestClick clicks p after the usual lead-in so the user can watch the pointer.
func (s *Session) TestClick(cfg *config.Config, p screen.Point) error {
	time.Sleep(constants.TestClickLeadIn)
	eng := engine.New(nil, input.NewRobot(s.logger), engine.WithLogger(s.logger))
	return eng.TestClick(p, time.Duration(cfg.ClickDelay))
}

// Close stops any run and releases the OCR client.
func (s *Session) Close() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tesseract != nil {
		s.tesseract.Close()
		s.tesseract = nil
		s.engine = nil
	}
}

func describeResult(res engine.Result, err error) string {
	if err != nil {
		return "出错"
	}
	switch res.State {
	case engine.StateCompleted:
		if res.Reason == engine.ReasonRecognitionExhausted {
			return "已完成 (识别失败后触发)"
		}
		return "已完成"
	case engine.StateStopped:
		return "已停止"
	default:
		return res.State.String()
	}
}
