package buyer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/ConserveLee/flash-buyer/internal/config"
	"github.com/ConserveLee/flash-buyer/internal/constants"
	"github.com/ConserveLee/flash-buyer/internal/engine"
	"github.com/ConserveLee/flash-buyer/internal/engine/countdown"
	"github.com/ConserveLee/flash-buyer/internal/engine/input"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
	"github.com/ConserveLee/flash-buyer/internal/logger"
)

// entryKeys are the configuration keys edited through plain text entries.
var entryKeys = []string{
	"countdown_box",
	"buy_btn_pos",
	"confirm_btn_pos",
	"countdown_formats",
	"check_interval",
	"click_delay",
	"max_retries",
}

var entryLabels = map[string]string{
	"countdown_box":     "倒计时区域 [左,上,右,下]:",
	"buy_btn_pos":       "购买按钮 [x,y]:",
	"confirm_btn_pos":   "确认按钮 [x,y]:",
	"countdown_formats": "倒计时格式 (每行一个正则):",
	"check_interval":    "检查间隔:",
	"click_delay":       "点击延迟:",
	"max_retries":       "最大重试次数:",
}

// Panel is the purchase tab. It edits the configuration and drives a Session.
type Panel struct {
	win     fyne.Window
	path    string
	cfg     *config.Config
	session *Session
	log     *logger.AppLogger

	entries       map[string]*widget.Entry
	confirmCheck  *widget.Check
	statusData    binding.String
	startBtn      *widget.Button
	stopBtn       *widget.Button
	configWidgets []fyne.Disableable
}

// NewPanel builds the purchase tab around the configuration stored at path.
func NewPanel(win fyne.Window, path string, cfg *config.Config, slogger *slog.Logger) *Panel {
	logData := binding.NewStringList()
	statusData := binding.NewString()
	statusData.Set("状态: 就绪")

	appLogger := logger.NewAppLogger(logData).WithSlog(slogger)

	p := &Panel{
		win:        win,
		path:       path,
		cfg:        cfg,
		log:        appLogger,
		entries:    make(map[string]*widget.Entry),
		statusData: statusData,
	}

	statusCallback := func(msg string) {
		fyne.Do(func() { statusData.Set(msg) })
	}
	p.session = NewSession(func(msg string) { appLogger.Info("%s", msg) }, statusCallback, appLogger, slogger)
	return p
}

// Session exposes the engine controller, e.g. for shutdown.
func (p *Panel) Session() *Session { return p.session }

// SetRegion fills the countdown box entry, used by the tools tab after cropping.
func (p *Panel) SetRegion(r screen.Region) {
	if e, ok := p.entries["countdown_box"]; ok {
		e.SetText(config.FormatCoordinates(r.Slice()))
	}
	p.log.Info("倒计时区域已设置为 %v，记得保存配置", r)
}

// Config applies the form to a copy of the current configuration.
func (p *Panel) Config() (*config.Config, error) {
	next := *p.cfg
	var problems []error
	for _, key := range entryKeys {
		if err := next.Set(key, p.entries[key].Text); err != nil {
			problems = append(problems, err)
		}
	}
	next.EnableConfirmClick = p.confirmCheck.Checked
	if err := errors.Join(problems...); err != nil {
		return nil, err
	}
	return &next, nil
}

func (p *Panel) fill(cfg *config.Config) {
	for _, key := range entryKeys {
		v, _ := cfg.Get(key)
		p.entries[key].SetText(v)
	}
	p.confirmCheck.SetChecked(cfg.EnableConfirmClick)
}

// Content lays out the tab.
func (p *Panel) Content() fyne.CanvasObject {
	form := container.New(layout.NewFormLayout())
	for _, key := range entryKeys {
		var e *widget.Entry
		if key == "countdown_formats" {
			e = widget.NewMultiLineEntry()
			e.SetMinRowsVisible(3)
		} else {
			e = widget.NewEntry()
		}
		p.entries[key] = e
		p.configWidgets = append(p.configWidgets, e)

		row := fyne.CanvasObject(e)
		switch key {
		case "buy_btn_pos", "confirm_btn_pos":
			pick := p.pickButton(e)
			p.configWidgets = append(p.configWidgets, pick)
			row = container.NewBorder(nil, nil, nil, pick, e)
		}
		form.Add(widget.NewLabel(entryLabels[key]))
		form.Add(row)
	}
	p.confirmCheck = widget.NewCheck("点击购买后再点击确认按钮", nil)
	p.configWidgets = append(p.configWidgets, p.confirmCheck)
	p.fill(p.cfg)

	// Status & Logs
	statusLabel := widget.NewLabelWithData(p.statusData)
	statusLabel.TextStyle = fyne.TextStyle{Bold: true}

	logData := p.log.Data()
	logList := widget.NewListWithData(
		logData,
		func() fyne.CanvasObject { return widget.NewLabel("Log entry template") },
		func(i binding.DataItem, o fyne.CanvasObject) { o.(*widget.Label).Bind(i.(binding.String)) },
	)
	logData.AddListener(binding.NewDataListener(func() {
		list, _ := logData.Get()
		if len(list) > 0 {
			logList.ScrollToBottom()
		}
	}))

	// Buttons
	p.startBtn = widget.NewButton("开始监控", p.start)
	p.startBtn.Importance = widget.HighImportance
	p.stopBtn = widget.NewButton("停止", p.stop)
	p.stopBtn.Disable()

	saveBtn := widget.NewButton("保存配置", p.save)
	resetBtn := widget.NewButton("恢复默认", func() {
		dialog.ShowConfirm("恢复默认", "用默认值覆盖当前表单?", func(ok bool) {
			if ok {
				p.fill(config.Default())
			}
		}, p.win)
	})
	ocrBtn := widget.NewButton("测试识别", p.testOCR)
	clickBuyBtn := widget.NewButton("测试点击购买", func() { p.testClick("buy_btn_pos") })
	clickConfirmBtn := widget.NewButton("测试点击确认", func() { p.testClick("confirm_btn_pos") })
	clearBtn := widget.NewButton("清空日志", func() { p.log.Clear() })
	p.configWidgets = append(p.configWidgets, saveBtn, resetBtn, ocrBtn, clickBuyBtn, clickConfirmBtn)

	controls := container.NewVBox(
		widget.NewLabel("抢购配置:"),
		form,
		p.confirmCheck,
		container.NewHBox(saveBtn, resetBtn),
		container.NewHBox(ocrBtn, clickBuyBtn, clickConfirmBtn),
		widget.NewSeparator(),
		statusLabel,
		container.NewHBox(p.startBtn, p.stopBtn, clearBtn),
		widget.NewSeparator(),
		widget.NewLabel("运行日志:"),
	)

	return container.NewBorder(controls, nil, nil, nil, logList)
}

func (p *Panel) pickButton(target *widget.Entry) *widget.Button {
	var btn *widget.Button
	btn = widget.NewButton("取点", func() {
		btn.Disable()
		p.log.Info("请在 %v 内将鼠标移到目标位置", constants.PickPositionDelay)
		go func() {
			pt, err := input.PositionAfter(context.Background(), constants.PickPositionDelay)
			fyne.Do(func() {
				btn.Enable()
				if err != nil {
					p.log.Error("取点失败: %v", err)
					return
				}
				target.SetText(config.FormatCoordinates(pt.Slice()))
				p.log.Info("已获取坐标 %v", pt)
			})
		}()
	})
	return btn
}

func (p *Panel) setEditing(enabled bool) {
	for _, w := range p.configWidgets {
		if enabled {
			w.Enable()
		} else {
			w.Disable()
		}
	}
	if enabled {
		p.startBtn.Enable()
		p.stopBtn.Disable()
	} else {
		p.startBtn.Disable()
		p.stopBtn.Enable()
	}
}

func (p *Panel) start() {
	cfg, err := p.Config()
	if err != nil {
		dialog.ShowError(err, p.win)
		return
	}
	p.setEditing(false)
	err = p.session.Start(cfg, func(res engine.Result, err error) {
		fyne.Do(func() {
			p.setEditing(true)
			if err != nil {
				p.log.Error("%v", err)
				return
			}
			if res.State == engine.StateCompleted {
				p.log.Info("共点击 %d 次，用时 %v", res.Clicks, res.Elapsed)
			}
		})
	})
	if err != nil {
		p.setEditing(true)
		dialog.ShowError(err, p.win)
		return
	}
	p.cfg = cfg
}

func (p *Panel) stop() {
	p.stopBtn.Disable()
	go p.session.Stop()
}

func (p *Panel) save() {
	cfg, err := p.Config()
	if err == nil {
		err = cfg.Validate()
	}
	if err == nil {
		err = cfg.Save(p.path)
	}
	if err != nil {
		dialog.ShowError(err, p.win)
		return
	}
	p.cfg = cfg
	p.log.Info("配置已保存到 %s", p.path)
}

func (p *Panel) testOCR() {
	cfg, err := p.Config()
	if err != nil {
		dialog.ShowError(err, p.win)
		return
	}
	go func() {
		tr, err := p.session.TestOCR(cfg)
		fyne.Do(func() {
			if err != nil {
				p.log.Error("识别失败: %v", err)
				return
			}
			p.log.Info("识别文本: %q，剩余时间: %s", tr.Text, countdown.Describe(tr.Reading))
		})
	}()
}

func (p *Panel) testClick(key string) {
	cfg, err := p.Config()
	if err != nil {
		dialog.ShowError(err, p.win)
		return
	}
	coords := cfg.BuyButtonPos
	if key == "confirm_btn_pos" {
		coords = cfg.ConfirmButtonPos
	}
	pt, err := screen.PointFromSlice(coords)
	if err != nil {
		dialog.ShowError(fmt.Errorf("%s: %w", entryLabels[key], err), p.win)
		return
	}
	p.log.Info("%v 后点击 %v", constants.TestClickLeadIn, pt)
	go func() {
		err := p.session.TestClick(cfg, pt)
		fyne.Do(func() {
			if err != nil {
				p.log.Error("测试点击失败: %v", err)
				return
			}
			p.log.Info("已点击 %v", pt)
		})
	}()
}
