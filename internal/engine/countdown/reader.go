package countdown

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/ConserveLee/flash-buyer/internal/engine/ocr"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
	"github.com/ConserveLee/flash-buyer/internal/errs"
)

// Reading is the outcome of one poll: a number of seconds, or nothing
// recognizable.
type Reading struct {
	Seconds int
	OK      bool
}

// Seconds builds a successful reading.
func Seconds(n int) Reading { return Reading{Seconds: n, OK: true} }

// Unrecognized builds a reading for text that matched no format.
func Unrecognized() Reading { return Reading{} }

func (r Reading) String() string {
	if !r.OK {
		return "Unrecognized"
	}
	return fmt.Sprintf("Seconds(%d)", r.Seconds)
}

// ReadOptions controls image preprocessing before OCR.
type ReadOptions struct {
	Preprocess bool
	Contrast   float64
	Scale      float64
}

// DefaultReadOptions enables preprocessing with contrast 2 and 2x upscaling.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{Preprocess: true, Contrast: 2.0, Scale: 2.0}
}

// Trace records every intermediate of one read, for diagnostics.
type Trace struct {
	Raw       image.Image
	Processed image.Image
	Text      string
	Format    *TimeFormat // format that matched, nil if none
	Reading   Reading
}

// Reader converts a screen region into seconds remaining.
type Reader struct {
	capturer   screen.Capturer
	recognizer ocr.Recognizer
	logger     *slog.Logger
}

// NewReader wires a capturer and a recognizer together.
func NewReader(capturer screen.Capturer, recognizer ocr.Recognizer, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{capturer: capturer, recognizer: recognizer, logger: logger}
}

// Read captures region, recognizes its text and returns the seconds given by
// the first format that matches. Unmatched text is Unrecognized with a nil
// error; only capture or recognizer failures return an error.
func (r *Reader) Read(region screen.Region, formats []TimeFormat, opts ReadOptions) (Reading, error) {
	tr, err := r.Inspect(region, formats, opts)
	if err != nil {
		return Unrecognized(), err
	}
	return tr.Reading, nil
}

// Inspect performs a read and returns all intermediate results.
func (r *Reader) Inspect(region screen.Region, formats []TimeFormat, opts ReadOptions) (Trace, error) {
	var tr Trace

	raw, err := r.capturer.Capture(region)
	if err != nil {
		return tr, errs.Recognition("capture", region.Rect(), err)
	}
	tr.Raw = raw
	tr.Processed = raw

	if opts.Preprocess {
		processed, err := screen.Preprocess(raw, opts.Contrast, opts.Scale)
		if err != nil {
			r.logger.Warn("preprocessing failed, using raw capture", "region", region, "error", err)
		} else {
			tr.Processed = processed
		}
	}

	text, err := r.recognizer.Recognize(tr.Processed)
	if err != nil {
		return tr, errs.Recognition("recognize", region.Rect(), err)
	}
	tr.Text = text

	for i := range formats {
		if secs, ok := formats[i].Match(text); ok {
			tr.Format = &formats[i]
			tr.Reading = Seconds(secs)
			r.logger.Debug("countdown recognized", "text", text, "format", formats[i].Pattern, "seconds", secs)
			return tr, nil
		}
	}

	r.logger.Debug("countdown not recognized", "text", text)
	tr.Reading = Unrecognized()
	return tr, nil
}
