package screen

import (
	"fmt"
	"image"
)

// Region is a rectangle in absolute screen coordinates (right/bottom exclusive).
type Region struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Right  int `yaml:"right"`
	Bottom int `yaml:"bottom"`
}

// RegionFromSlice builds a Region from [left, top, right, bottom].
func RegionFromSlice(c []int) (Region, error) {
	if len(c) != 4 {
		return Region{}, fmt.Errorf("region needs 4 coordinates, got %d", len(c))
	}
	return Region{Left: c[0], Top: c[1], Right: c[2], Bottom: c[3]}, nil
}

// RegionFromRect converts an image rectangle to a Region.
func RegionFromRect(r image.Rectangle) Region {
	return Region{Left: r.Min.X, Top: r.Min.Y, Right: r.Max.X, Bottom: r.Max.Y}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.Left, r.Top, r.Right, r.Bottom)
}

// Slice returns [left, top, right, bottom].
func (r Region) Slice() []int {
	return []int{r.Left, r.Top, r.Right, r.Bottom}
}

// Valid reports whether the region is non-empty and non-negative.
func (r Region) Valid() bool {
	return r.Left >= 0 && r.Top >= 0 && r.Left < r.Right && r.Top < r.Bottom
}

func (r Region) String() string {
	return fmt.Sprintf("[%d, %d, %d, %d]", r.Left, r.Top, r.Right, r.Bottom)
}

// Point is a click target in absolute screen coordinates.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// PointFromSlice builds a Point from [x, y].
func PointFromSlice(c []int) (Point, error) {
	if len(c) != 2 {
		return Point{}, fmt.Errorf("point needs 2 coordinates, got %d", len(c))
	}
	return Point{X: c[0], Y: c[1]}, nil
}

// Slice returns [x, y].
func (p Point) Slice() []int {
	return []int{p.X, p.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}
