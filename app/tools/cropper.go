package tools

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// CropperWidget displays a screenshot and lets the user drag out a rectangle on it.
type CropperWidget struct {
	widget.BaseWidget

	// State
	originalImg image.Image
	startPos    fyne.Position
	currentPos  fyne.Position
	isDragging  bool

	// UI Elements
	raster    *canvas.Image
	selection *canvas.Rectangle

	// OnSelected receives the selection in image pixel coordinates.
	OnSelected func(rect image.Rectangle)
}

func NewCropperWidget(img image.Image, onSelected func(image.Rectangle)) *CropperWidget {
	c := &CropperWidget{
		originalImg: img,
		OnSelected:  onSelected,
	}
	c.ExtendBaseWidget(c)

	c.raster = canvas.NewImageFromImage(img)
	c.raster.ScaleMode = canvas.ImageScalePixels // digits must stay sharp
	c.raster.FillMode = canvas.ImageFillContain

	c.selection = canvas.NewRectangle(color.RGBA{R: 255, G: 0, B: 0, A: 60})
	c.selection.StrokeColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	c.selection.StrokeWidth = 2
	c.selection.Hide()

	return c
}

func (c *CropperWidget) CreateRenderer() fyne.WidgetRenderer {
	return &cropperRenderer{
		cropper: c,
		objects: []fyne.CanvasObject{c.raster, c.selection},
	}
}

// Mouse events
func (c *CropperWidget) Dragged(e *fyne.DragEvent) {
	if !c.isDragging {
		c.isDragging = true
		c.startPos = e.Position.Subtract(e.Dragged)
		c.selection.Show()
	}
	c.currentPos = e.Position
	c.Refresh()
}

func (c *CropperWidget) DragEnd() {
	c.isDragging = false
	c.Refresh()
	if c.OnSelected == nil {
		return
	}
	if r := mapSelection(c.Size(), c.originalImg.Bounds(), c.startPos, c.currentPos); !r.Empty() {
		c.OnSelected(r)
	}
}

func (c *CropperWidget) Tapped(e *fyne.PointEvent) {
	c.startPos = e.Position
	c.currentPos = e.Position
	c.selection.Hide()
	c.Refresh()
}

func (c *CropperWidget) Cursor() desktop.Cursor {
	return desktop.CrosshairCursor
}

// --- Renderer ---

type cropperRenderer struct {
	cropper *CropperWidget
	objects []fyne.CanvasObject
}

func (r *cropperRenderer) Layout(s fyne.Size) {
	r.objects[0].Resize(s)
	r.objects[0].Move(fyne.NewPos(0, 0))
	r.placeSelection()
}

func (r *cropperRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *cropperRenderer) Refresh() {
	r.placeSelection()
	canvas.Refresh(r.cropper)
}

func (r *cropperRenderer) placeSelection() {
	c := r.cropper
	minX, minY := min(c.startPos.X, c.currentPos.X), min(c.startPos.Y, c.currentPos.Y)
	maxX, maxY := max(c.startPos.X, c.currentPos.X), max(c.startPos.Y, c.currentPos.Y)

	r.objects[1].Move(fyne.NewPos(minX, minY))
	r.objects[1].Resize(fyne.NewSize(maxX-minX, maxY-minY))
}

func (r *cropperRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *cropperRenderer) Destroy() {}

// fitRect returns where an image of the given bounds lands inside view with
// ImageFillContain: its top-left offset and drawn size.
func fitRect(view fyne.Size, bounds image.Rectangle) (fyne.Position, fyne.Size) {
	if view.Width == 0 || view.Height == 0 || bounds.Empty() {
		return fyne.Position{}, fyne.Size{}
	}
	aspect := float32(bounds.Dx()) / float32(bounds.Dy())

	if view.Width/view.Height > aspect {
		// wider than the image: fit height
		w := view.Height * aspect
		return fyne.NewPos((view.Width-w)/2, 0), fyne.NewSize(w, view.Height)
	}
	h := view.Width / aspect
	return fyne.NewPos(0, (view.Height-h)/2), fyne.NewSize(view.Width, h)
}

// mapSelection converts the drag from a to b, in widget coordinates, into
// pixels of an image with the given bounds. Parts outside the image are cut.
func mapSelection(view fyne.Size, bounds image.Rectangle, a, b fyne.Position) image.Rectangle {
	off, size := fitRect(view, bounds)
	if size.Width == 0 || size.Height == 0 {
		return image.Rectangle{}
	}

	x0 := max(off.X, min(a.X, b.X))
	y0 := max(off.Y, min(a.Y, b.Y))
	x1 := min(off.X+size.Width, max(a.X, b.X))
	y1 := min(off.Y+size.Height, max(a.Y, b.Y))
	if x1 <= x0 || y1 <= y0 {
		return image.Rectangle{}
	}

	scaleX := float32(bounds.Dx()) / size.Width
	scaleY := float32(bounds.Dy()) / size.Height
	r := image.Rect(
		int((x0-off.X)*scaleX),
		int((y0-off.Y)*scaleY),
		int((x1-off.X)*scaleX),
		int((y1-off.Y)*scaleY),
	).Add(bounds.Min)

	// float math can overshoot by a pixel
	return r.Intersect(bounds)
}
