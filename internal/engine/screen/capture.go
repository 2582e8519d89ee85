package screen

import (
	"fmt"
	"image"
	"image/png" // also registers the PNG decoder for image.Decode
	"os"
	"path/filepath"

	"github.com/kbinani/screenshot"
)

// Capturer grabs the pixels of a screen region.
type Capturer interface {
	Capture(r Region) (image.Image, error)
}

// ScreenCapturer captures through kbinani/screenshot, which handles
// multi-monitor virtual coordinates.
type ScreenCapturer struct{}

// NewScreenCapturer creates a new instance
func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{}
}

// Capture returns the pixels inside r.
func (c *ScreenCapturer) Capture(r Region) (image.Image, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid capture region %v", r)
	}
	img, err := screenshot.CaptureRect(r.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %v: %w", r, err)
	}
	return img, nil
}

// Display describes one active monitor.
type Display struct {
	Index  int
	Bounds image.Rectangle
}

func (d Display) String() string {
	return fmt.Sprintf("Display %d (%dx%d)", d.Index, d.Bounds.Dx(), d.Bounds.Dy())
}

// Displays lists the active monitors.
func Displays() []Display {
	n := screenshot.NumActiveDisplays()
	out := make([]Display, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Display{Index: i, Bounds: screenshot.GetDisplayBounds(i)})
	}
	return out
}

// CaptureDisplay returns a full screenshot of one monitor.
func CaptureDisplay(index int) (image.Image, error) {
	bounds := screenshot.GetDisplayBounds(index)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen %d: %w", index, err)
	}
	return img, nil
}

// LoadImage loads an image from the filesystem
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

// SaveImage writes img as PNG, creating parent directories.
func SaveImage(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
