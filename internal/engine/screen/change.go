package screen

import (
	"image"
	"log/slog"

	"github.com/corona10/goimagehash"
)

// DefaultMaxHashDistance is the Hamming distance at or below which two frames
// are considered the same picture.
const DefaultMaxHashDistance = 2

// ChangeDetector compares successive frames by perceptual hash. A region that
// really shows a running countdown changes at least once per second; one that
// never changes usually points at a wrong region.
type ChangeDetector struct {
	MaxDistance int

	lastHash *goimagehash.ImageHash
	frames   int
	changes  int
}

// NewChangeDetector creates a detector with the default threshold.
func NewChangeDetector() *ChangeDetector {
	return &ChangeDetector{MaxDistance: DefaultMaxHashDistance}
}

// Observe hashes img and reports whether it differs from the previous frame.
// The first frame never counts as a change.
func (d *ChangeDetector) Observe(img image.Image) (changed bool, distance int, err error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return false, 0, err
	}
	d.frames++

	if d.lastHash == nil {
		d.lastHash = hash
		return false, 0, nil
	}

	distance, err = d.lastHash.Distance(hash)
	if err != nil {
		d.lastHash = hash
		return false, 0, err
	}
	d.lastHash = hash

	if distance > d.MaxDistance {
		d.changes++
		return true, distance, nil
	}
	slog.Debug("frame unchanged", "distance", distance)
	return false, distance, nil
}

// Stats returns the number of observed frames and detected changes.
func (d *ChangeDetector) Stats() (frames, changes int) {
	return d.frames, d.changes
}

// Reset forgets the previous frame and the counters.
func (d *ChangeDetector) Reset() {
	d.lastHash = nil
	d.frames = 0
	d.changes = 0
}
