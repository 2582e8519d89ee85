package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ConserveLee/flash-buyer/internal/constants"
	"github.com/ConserveLee/flash-buyer/internal/engine"
	"github.com/ConserveLee/flash-buyer/internal/engine/countdown"
	"github.com/ConserveLee/flash-buyer/internal/engine/input"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
)

func newTestOCRCmd() *cobra.Command {
	var (
		saveImage string
		count     int
		interval  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "test-ocr",
		Short: "Read the countdown region once and show what OCR sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			region, err := cfg.Region()
			if err != nil {
				return err
			}
			formats, err := countdown.CompileFormats(cfg.CountdownFormats)
			if err != nil {
				return err
			}
			rt, err := newServices(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			for i := 0; i < count; i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				tr, err := rt.reader.Inspect(region, formats, cfg.ReadOptions())
				if err != nil {
					return err
				}
				fmt.Printf("识别文本: %q\n", tr.Text)
				if tr.Format != nil {
					fmt.Printf("匹配格式: %s (%s)\n", tr.Format.Pattern, tr.Format.Arity)
				}
				fmt.Printf("剩余时间: %s\n", countdown.Describe(tr.Reading))

				if saveImage != "" && i == 0 {
					if err := screen.SaveImage(saveImage, tr.Processed); err != nil {
						return fmt.Errorf("save image: %w", err)
					}
					fmt.Printf("已保存识别图像: %s\n", saveImage)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&saveImage, "save-image", "", "Write the image passed to OCR to this PNG file")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of reads")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Pause between reads")
	return cmd
}

func newTestClickCmd() *cobra.Command {
	var (
		target string
		leadIn time.Duration
	)
	cmd := &cobra.Command{
		Use:   "test-click",
		Short: "Click a configured button position once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			var coords []int
			switch target {
			case "buy":
				coords = cfg.BuyButtonPos
			case "confirm":
				coords = cfg.ConfirmButtonPos
			default:
				return fmt.Errorf("unknown target %q, want buy or confirm", target)
			}
			p, err := screen.PointFromSlice(coords)
			if err != nil {
				return fmt.Errorf("%s position: %w", target, err)
			}

			for left := leadIn; left > 0; left -= time.Second {
				say("%v 后点击 %v ...", left, p)
				time.Sleep(min(time.Second, left))
			}

			eng := engine.New(nil, input.NewRobot(logger), engine.WithLogger(logger))
			if err := eng.TestClick(p, time.Duration(cfg.ClickDelay)); err != nil {
				return err
			}
			fmt.Printf("已点击 %s 位置 %v\n", target, p)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "buy", "Position to click: buy or confirm")
	cmd.Flags().DurationVar(&leadIn, "delay", constants.TestClickLeadIn, "Wait before clicking")
	return cmd
}

func newPositionCmd() *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Print the mouse position after a short delay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			say("请在 %v 内将鼠标移到目标位置", delay)
			p, err := input.PositionAfter(ctx, delay)
			if err != nil {
				return withExitCode(exitInterrupt, nil)
			}
			fmt.Printf("[%d, %d]\n", p.X, p.Y)
			return nil
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", constants.PickPositionDelay, "Time to move the mouse")
	return cmd
}

func newProbeCmd() *cobra.Command {
	var (
		frames   int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that the countdown region actually changes over time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			region, err := cfg.Region()
			if err != nil {
				return err
			}
			capturer := screen.NewScreenCapturer()
			detector := screen.NewChangeDetector()

			for i := 0; i < frames; i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				img, err := capturer.Capture(region)
				if err != nil {
					return err
				}
				changed, dist, err := detector.Observe(img)
				if err != nil {
					return err
				}
				say("frame %d: changed=%v distance=%d", i+1, changed, dist)
			}

			seen, changes := detector.Stats()
			if changes == 0 {
				return fmt.Errorf("region %v did not change in %d frames, check countdown_box", region, seen)
			}
			fmt.Printf("区域 %v 正在变化 (%d/%d 帧)\n", region, changes, seen-1)
			return nil
		},
	}
	cmd.Flags().IntVar(&frames, "frames", constants.ProbeFrames, "Frames to capture")
	cmd.Flags().DurationVar(&interval, "interval", constants.ProbeInterval, "Pause between frames")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and list every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("配置验证通过")
			return nil
		},
	}
}
