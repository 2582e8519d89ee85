package tools

import (
	"fmt"
	"image"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/ConserveLee/flash-buyer/internal/constants"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
)

// NewToolsPanel creates the utility tab. onRegion receives a countdown box
// picked on a screenshot; region returns the box currently in the form.
func NewToolsPanel(win fyne.Window, onRegion func(screen.Region), region func() (screen.Region, error)) fyne.CanvasObject {
	displays := screen.Displays()
	var selected screen.Display

	// 1. Screen Selector
	var displayOptions []string
	for _, d := range displays {
		displayOptions = append(displayOptions, d.String())
	}
	if len(displayOptions) == 0 {
		displayOptions = []string{"Display 0 (Default)"}
	}

	displaySelect := widget.NewSelect(displayOptions, func(s string) {
		for _, d := range displays {
			if d.String() == s {
				selected = d
			}
		}
	})
	displaySelect.SetSelected(displayOptions[0])

	// 2. Info Label
	infoLabel := widget.NewLabel("1. 选择屏幕\n2. 点击“截取并框选”\n3. 在弹出的窗口中框选倒计时数字\n4. 设为倒计时区域后回到抢购页保存")
	infoLabel.Alignment = fyne.TextAlignCenter

	// 3. Action Buttons
	cropBtn := widget.NewButton("截取并框选倒计时区域", func() {
		img, err := screen.CaptureDisplay(selected.Index)
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		showCropperWindow(img, selected.Bounds, onRegion)
	})
	cropBtn.Importance = widget.HighImportance

	var probeBtn *widget.Button
	probeBtn = widget.NewButton("检测区域是否在变化", func() {
		r, err := region()
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		probeBtn.Disable()
		go func() {
			msg, err := probeRegion(screen.NewScreenCapturer(), r, constants.ProbeFrames, constants.ProbeInterval)
			fyne.Do(func() {
				probeBtn.Enable()
				if err != nil {
					dialog.ShowError(err, win)
					return
				}
				dialog.ShowInformation("区域检测", msg, win)
			})
		}()
	})

	openDirBtn := widget.NewButton("打开截图目录", func() {
		openDir(constants.SnapshotDir)
	})

	return container.NewVBox(
		widget.NewLabel("选择屏幕:"),
		displaySelect,
		widget.NewSeparator(),
		infoLabel,
		layoutSpacer(),
		cropBtn,
		probeBtn,
		layoutSpacer(),
		widget.NewSeparator(),
		openDirBtn,
	)
}

func layoutSpacer() fyne.CanvasObject {
	return widget.NewLabel("")
}

func openDir(path string) {
	var cmd *exec.Cmd
	absPath, _ := filepath.Abs(path)

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("explorer", absPath)
	default:
		cmd = exec.Command("xdg-open", absPath)
	}
	cmd.Run()
}

// screenRegion turns a selection on a screenshot of display into a region in
// virtual screen coordinates.
func screenRegion(sel image.Rectangle, shot image.Image, display image.Rectangle) screen.Region {
	return screen.RegionFromRect(sel.Sub(shot.Bounds().Min).Add(display.Min))
}

// probeRegion captures r a few times and reports whether its content changes.
func probeRegion(c screen.Capturer, r screen.Region, frames int, interval time.Duration) (string, error) {
	detector := screen.NewChangeDetector()
	for i := 0; i < frames; i++ {
		if i > 0 {
			time.Sleep(interval)
		}
		img, err := c.Capture(r)
		if err != nil {
			return "", err
		}
		if _, _, err := detector.Observe(img); err != nil {
			return "", err
		}
	}
	seen, changes := detector.Stats()
	if changes == 0 {
		return "", fmt.Errorf("区域 %v 在 %d 帧内没有变化，请检查倒计时区域", r, seen)
	}
	return fmt.Sprintf("区域 %v 正在变化 (%d/%d 帧)", r, changes, seen-1), nil
}

func showCropperWindow(fullImg image.Image, display image.Rectangle, onRegion func(screen.Region)) {
	w := fyne.CurrentApp().NewWindow("框选倒计时区域")
	w.Resize(fyne.NewSize(800, 600))

	lbl := widget.NewLabel("请在图片上拖拽鼠标框选倒计时...")
	lbl.Alignment = fyne.TextAlignCenter

	applyBtn := widget.NewButton("设为倒计时区域", nil)
	applyBtn.Importance = widget.HighImportance
	applyBtn.Disable()
	saveBtn := widget.NewButton("保存截图", nil)
	saveBtn.Disable()

	var currentSelection image.Rectangle

	cropper := NewCropperWidget(fullImg, func(rect image.Rectangle) {
		currentSelection = rect
		lbl.SetText(fmt.Sprintf("已选区: %v", screenRegion(rect, fullImg, display)))
		applyBtn.Enable()
		saveBtn.Enable()
	})

	applyBtn.OnTapped = func() {
		if currentSelection.Empty() {
			return
		}
		if onRegion != nil {
			onRegion(screenRegion(currentSelection, fullImg, display))
		}
		w.Close()
	}

	saveBtn.OnTapped = func() {
		if currentSelection.Empty() {
			return
		}
		subImg, ok := fullImg.(interface {
			SubImage(r image.Rectangle) image.Image
		})
		if !ok {
			dialog.ShowError(fmt.Errorf("image type does not support cropping"), w)
			return
		}
		showSaveForm(w, subImg.SubImage(currentSelection))
	}

	content := container.NewBorder(
		nil,
		container.NewVBox(lbl, container.NewHBox(applyBtn, saveBtn)),
		nil, nil,
		cropper,
	)

	w.SetContent(content)
	w.Show()
}

func showSaveForm(win fyne.Window, img image.Image) {
	imageObj := canvas.NewImageFromImage(img)
	imageObj.FillMode = canvas.ImageFillContain
	imageObj.SetMinSize(fyne.NewSize(100, 100))

	nameEntry := widget.NewEntry()
	nameEntry.SetText(nextFileName(constants.SnapshotDir, "countdown"))

	content := container.NewVBox(
		widget.NewLabel("保存此截图用于离线调试识别?"),
		container.NewCenter(imageObj),
		widget.NewLabel("文件名:"),
		nameEntry,
	)

	dialog.ShowCustomConfirm("保存截图", "保存", "取消", content, func(confirm bool) {
		if !confirm {
			return
		}
		name := strings.TrimSpace(nameEntry.Text)
		if name == "" {
			dialog.ShowError(fmt.Errorf("文件名不能为空"), win)
			return
		}
		path := filepath.Join(constants.SnapshotDir, name)
		if err := screen.SaveImage(path, img); err != nil {
			dialog.ShowError(err, win)
			return
		}
		dialog.ShowInformation("成功", fmt.Sprintf("已保存: %s", path), win)
	}, win)
}

// nextFileName suggests "<prefix>_<n>.png" with n one past the highest in dir.
func nextFileName(dir, prefix string) string {
	files, _ := filepath.Glob(filepath.Join(dir, prefix+"_*.png"))

	maxIdx := 0
	for _, f := range files {
		base := filepath.Base(f)
		name := strings.TrimSuffix(strings.TrimPrefix(base, prefix+"_"), filepath.Ext(base))
		if idx, err := strconv.Atoi(name); err == nil && idx > maxIdx {
			maxIdx = idx
		}
	}
	return fmt.Sprintf("%s_%d.png", prefix, maxIdx+1)
}
