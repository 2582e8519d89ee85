package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ConserveLee/flash-buyer/internal/config"
	"github.com/ConserveLee/flash-buyer/internal/constants"
	"github.com/ConserveLee/flash-buyer/internal/engine"
	"github.com/ConserveLee/flash-buyer/internal/engine/countdown"
	"github.com/ConserveLee/flash-buyer/internal/engine/input"
	"github.com/ConserveLee/flash-buyer/internal/engine/ocr"
	"github.com/ConserveLee/flash-buyer/internal/engine/progress"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
)

// services bundles the adapters built from a config.
type services struct {
	reader    *countdown.Reader
	tesseract *ocr.Tesseract
	engine    *engine.Engine
}

func newServices(cfg *config.Config, logger *slog.Logger) (*services, error) {
	tess, err := ocr.NewTesseract(cfg.OCROptions(), logger)
	if err != nil {
		return nil, fmt.Errorf("OCR init failed: %w", err)
	}
	reader := countdown.NewReader(screen.NewScreenCapturer(), tess, logger)
	eng := engine.New(reader, input.NewRobot(logger), engine.WithLogger(logger))
	return &services{reader: reader, tesseract: tess, engine: eng}, nil
}

func (r *services) Close() error { return r.tesseract.Close() }

var (
	timeout   time.Duration
	noConfirm bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Monitor the countdown and purchase when it ends",
		Args:  cobra.NoArgs,
		RunE:  runMonitor,
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stop monitoring after this long (exit code 124)")
	cmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "Only click the buy button")
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noConfirm {
		cfg.EnableConfirmClick = false
	}

	logger, closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	job, err := cfg.Job()
	if err != nil {
		return err
	}

	rt, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sink := progress.NewDispatcher(progress.Func(func(msg string) {
		say("[%s] %s", time.Now().Format("15:04:05"), msg)
	}), constants.ProgressBuffer, logger)
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	say("监控区域 %v，按 Ctrl+C 停止", job.Region)
	if timeout > 0 {
		say("超时时间: %v", timeout)
	}

	res, runErr := rt.engine.Start(ctx, job, sink)
	sink.Close()
	return runOutcome(res, runErr, ctx.Err())
}

// runOutcome reports a finished run and maps it to an exit code. ctxErr is the
// run context's error: a deadline means --timeout, a cancel means a signal.
func runOutcome(res engine.Result, runErr, ctxErr error) error {
	switch {
	case runErr != nil:
		return runErr
	case res.State == engine.StateStopped && errors.Is(ctxErr, context.DeadlineExceeded):
		fmt.Printf("监控超时 (%v)\n", timeout)
		return withExitCode(exitTimeout, nil)
	case res.State == engine.StateStopped && ctxErr != nil:
		fmt.Println("用户中断")
		return withExitCode(exitInterrupt, nil)
	case res.State == engine.StateStopped:
		fmt.Println("监控已停止")
		return nil
	}

	fmt.Printf("购买完成: %d 次点击, 用时 %v", res.Clicks, res.Elapsed.Round(time.Millisecond))
	if res.Reason == engine.ReasonRecognitionExhausted {
		fmt.Print(" (倒计时连续识别失败后触发)")
	}
	fmt.Println()
	return nil
}
