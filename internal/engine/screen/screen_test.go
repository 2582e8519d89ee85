package screen

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionFromSlice(t *testing.T) {
	r, err := RegionFromSlice([]int{100, 200, 300, 240})
	require.NoError(t, err)
	assert.Equal(t, Region{Left: 100, Top: 200, Right: 300, Bottom: 240}, r)
	assert.True(t, r.Valid())
	assert.Equal(t, image.Rect(100, 200, 300, 240), r.Rect())
	assert.Equal(t, []int{100, 200, 300, 240}, r.Slice())

	_, err = RegionFromSlice([]int{1, 2, 3})
	assert.Error(t, err)
}

func TestRegion_Valid(t *testing.T) {
	tests := []struct {
		name string
		r    Region
		want bool
	}{
		{"ok", Region{0, 0, 10, 10}, true},
		{"left>right", Region{300, 200, 100, 400}, false},
		{"zero width", Region{10, 0, 10, 10}, false},
		{"top>bottom", Region{0, 50, 10, 10}, false},
		{"negative", Region{-1, 0, 10, 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Valid())
		})
	}
}

func TestPointFromSlice(t *testing.T) {
	p, err := PointFromSlice([]int{500, 600})
	require.NoError(t, err)
	assert.Equal(t, Point{X: 500, Y: 600}, p)
	assert.Equal(t, "(500, 600)", p.String())

	_, err = PointFromSlice([]int{1})
	assert.Error(t, err)
}

func filled(w, h int, fn func(x, y int) uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := fn(x, y)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestAdjustContrast(t *testing.T) {
	// two pixels: 100 and 140, mean 120
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(0, 0, color.Gray{Y: 100})
	src.SetGray(1, 0, color.Gray{Y: 140})

	same := AdjustContrast(src, 1.0)
	assert.Equal(t, src.Pix, same.Pix)

	doubled := AdjustContrast(src, 2.0)
	assert.Equal(t, uint8(80), doubled.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(160), doubled.GrayAt(1, 0).Y)

	clamped := AdjustContrast(src, 20.0)
	assert.Equal(t, uint8(0), clamped.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), clamped.GrayAt(1, 0).Y)
}

func TestPreprocess(t *testing.T) {
	img := filled(40, 10, func(x, _ int) uint8 { return uint8(x * 6) })

	t.Run("greyscale without scaling", func(t *testing.T) {
		out, err := Preprocess(img, 2.0, 1.0)
		require.NoError(t, err)
		_, isGray := out.(*image.Gray)
		assert.True(t, isGray)
		assert.Equal(t, image.Rect(0, 0, 40, 10), out.Bounds())
	})

	t.Run("upscaled", func(t *testing.T) {
		out, err := Preprocess(img, 2.0, 2.0)
		require.NoError(t, err)
		assert.Equal(t, 80, out.Bounds().Dx())
		assert.Equal(t, 20, out.Bounds().Dy())
	})

	t.Run("sub-image origin is normalised", func(t *testing.T) {
		sub := img.SubImage(image.Rect(10, 2, 30, 8))
		out, err := Preprocess(sub, 1.0, 1.0)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 20, 6), out.Bounds())
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := Preprocess(nil, 2.0, 1.0)
		assert.Error(t, err)
		_, err = Preprocess(img, 0, 1.0)
		assert.Error(t, err)
		_, err = Preprocess(image.NewRGBA(image.Rect(0, 0, 0, 0)), 2.0, 1.0)
		assert.Error(t, err)
	})
}

func TestChangeDetector(t *testing.T) {
	vertical := filled(64, 64, func(x, _ int) uint8 {
		if x < 32 {
			return 0
		}
		return 255
	})
	horizontal := filled(64, 64, func(_, y int) uint8 {
		if y < 32 {
			return 0
		}
		return 255
	})

	d := NewChangeDetector()
	d.MaxDistance = 0

	changed, _, err := d.Observe(vertical)
	require.NoError(t, err)
	assert.False(t, changed, "first frame is never a change")

	changed, dist, err := d.Observe(vertical)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, dist)

	changed, dist, err = d.Observe(horizontal)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Greater(t, dist, 0)

	frames, changes := d.Stats()
	assert.Equal(t, 3, frames)
	assert.Equal(t, 1, changes)

	d.Reset()
	frames, changes = d.Stats()
	assert.Zero(t, frames)
	assert.Zero(t, changes)
}

func TestSaveAndLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug", "ocr.png")
	img := filled(8, 4, func(x, y int) uint8 { return uint8(x*10 + y) })

	require.NoError(t, SaveImage(path, img))
	loaded, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), loaded.Bounds())
}
