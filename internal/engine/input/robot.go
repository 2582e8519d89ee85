// Package input drives the mouse.
package input

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
)

// Clicker moves the pointer to a point and clicks it.
type Clicker interface {
	MoveAndClick(p screen.Point, moveDuration time.Duration) error
}

// Robot clicks through robotgo.
type Robot struct {
	logger *slog.Logger

	// overridable for tests
	bounds func() image.Rectangle
	move   func(x, y int, d time.Duration) bool
	click  func()
}

// NewRobot creates a robotgo backed clicker.
func NewRobot(logger *slog.Logger) *Robot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Robot{
		logger: logger,
		bounds: VirtualScreen,
		move:   robotMove,
		click:  func() { robotgo.Click("left") },
	}
}

// MoveAndClick moves to p, taking at least moveDuration, then left clicks.
// Points outside every display are rejected without touching the mouse.
func (r *Robot) MoveAndClick(p screen.Point, moveDuration time.Duration) error {
	vs := r.bounds()
	if !image.Pt(p.X, p.Y).In(vs) {
		return fmt.Errorf("point %v is outside the screen %v", p, vs)
	}
	if !r.move(p.X, p.Y, moveDuration) {
		return fmt.Errorf("failed to move pointer to %v", p)
	}
	r.click()
	r.logger.Debug("clicked", "x", p.X, "y", p.Y, "move", moveDuration)
	return nil
}

func robotMove(x, y int, d time.Duration) bool {
	if d <= 0 {
		robotgo.Move(x, y)
		return true
	}
	start := time.Now()
	if !robotgo.MoveSmooth(x, y) {
		return false
	}
	if rest := d - time.Since(start); rest > 0 {
		time.Sleep(rest)
	}
	return true
}

// VirtualScreen is the union of all active displays.
func VirtualScreen() image.Rectangle {
	var vs image.Rectangle
	for _, d := range screen.Displays() {
		vs = vs.Union(d.Bounds)
	}
	return vs
}

// Position returns the current pointer location.
func Position() screen.Point {
	x, y := robotgo.Location()
	return screen.Point{X: x, Y: y}
}

// PositionAfter waits delay, giving the user time to hover the target, then
// returns the pointer location.
func PositionAfter(ctx context.Context, delay time.Duration) (screen.Point, error) {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return screen.Point{}, ctx.Err()
	case <-t.C:
		return Position(), nil
	}
}
