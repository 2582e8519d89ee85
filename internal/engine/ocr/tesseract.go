// Package ocr turns a countdown crop into text.
package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Recognizer converts an image into the text it shows.
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// Options configures the tesseract client.
type Options struct {
	Language       string
	PageSegMode    int    // tesseract --psm value, 8 treats the crop as one word
	Whitelist      string // characters tesseract may emit, empty allows all
	TessdataPrefix string
}

// DefaultOptions matches "--psm 8" with English digits.
func DefaultOptions() Options {
	return Options{
		Language:    "eng",
		PageSegMode: int(gosseract.PSM_SINGLE_WORD),
	}
}

// Tesseract recognizes text through a single gosseract client. The client is
// not safe for concurrent use, so calls are serialized.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
	opts   Options
	logger *slog.Logger
}

// NewTesseract creates a client configured with opts.
func NewTesseract(opts Options, logger *slog.Logger) (*Tesseract, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := gosseract.NewClient()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if opts.Language != "" {
		if err := client.SetLanguage(strings.Split(opts.Language, "+")...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set language %q: %w", opts.Language, err)
		}
	}
	if opts.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			client.Close()
			return nil, fmt.Errorf("set page segmentation mode %d: %w", opts.PageSegMode, err)
		}
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}

	return &Tesseract{client: client, opts: opts, logger: logger}, nil
}

// Recognize returns the trimmed text tesseract reads from img.
func (t *Tesseract) Recognize(img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("load image into tesseract: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	text = strings.TrimSpace(text)
	t.logger.Debug("ocr result", "text", text)
	return text, nil
}

// Close releases the tesseract client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
