package screen

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

// Preprocess prepares a countdown crop for OCR: greyscale, contrast stretched
// around the mean brightness by factor, then upscaled by scale (<= 1 keeps the
// original size). Tesseract reads small UI digits far better once enlarged.
func Preprocess(img image.Image, factor, scale float64) (image.Image, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image %v", b)
	}
	if factor <= 0 {
		return nil, fmt.Errorf("contrast factor must be positive, got %v", factor)
	}

	gray := Grayscale(img)
	out := AdjustContrast(gray, factor)

	if scale > 1 {
		w := uint(math.Round(float64(b.Dx()) * scale))
		return resize.Resize(w, 0, out, resize.Bicubic), nil
	}
	return out, nil
}

// Grayscale converts img to an 8-bit grey image anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return gray
}

// AdjustContrast blends each pixel away from the mean brightness by factor.
// factor 1 returns an identical copy, 0 would flatten to the mean.
func AdjustContrast(src *image.Gray, factor float64) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	n := b.Dx() * b.Dy()
	if n == 0 {
		return dst
	}

	var sum int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += int(src.GrayAt(x, y).Y)
		}
	}
	mean := math.Round(float64(sum) / float64(n))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := mean + (float64(src.GrayAt(x, y).Y)-mean)*factor
			dst.SetGray(x, y, color.Gray{Y: clamp8(v)})
		}
	}
	return dst
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
