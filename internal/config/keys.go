package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ConserveLee/flash-buyer/internal/errs"
)

// ParseCoordinates parses "[100, 200]", "100,200" or "100 200".
func ParseCoordinates(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("no coordinates in %q", s)
	}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatCoordinates renders coordinates as "[100, 200]".
func FormatCoordinates(c []int) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func coordsField(ptr func(c *Config) *[]int, n int, optional bool) field {
	return field{
		get: func(c *Config) string { return FormatCoordinates(*ptr(c)) },
		set: func(c *Config, v string) error {
			if optional && isNone(v) {
				*ptr(c) = nil
				return nil
			}
			coords, err := ParseCoordinates(v)
			if err != nil {
				return err
			}
			if len(coords) != n {
				return fmt.Errorf("need %d coordinates, got %d", n, len(coords))
			}
			*ptr(c) = coords
			return nil
		},
	}
}

func stringField(ptr func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, v string) error { *ptr(c) = v; return nil },
	}
}

func intField(ptr func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid integer %q", v)
			}
			*ptr(c) = n
			return nil
		},
	}
}

func floatField(ptr func(c *Config) *float64) field {
	return field{
		get: func(c *Config) string { return strconv.FormatFloat(*ptr(c), 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("invalid number %q", v)
			}
			*ptr(c) = f
			return nil
		},
	}
}

func boolField(ptr func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid boolean %q", v)
			}
			*ptr(c) = b
			return nil
		},
	}
}

func durationField(ptr func(c *Config) *Duration) field {
	return field{
		get: func(c *Config) string { return ptr(c).String() },
		set: func(c *Config, v string) error {
			d, err := parseDuration(v)
			if err != nil {
				return err
			}
			*ptr(c) = Duration(d)
			return nil
		},
	}
}

// formatsField accepts a YAML list or a single pattern.
var formatsField = field{
	get: func(c *Config) string { return strings.Join(c.CountdownFormats, "\n") },
	set: func(c *Config, v string) error {
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") {
			var list []string
			if err := yaml.Unmarshal([]byte(trimmed), &list); err != nil {
				return fmt.Errorf("invalid format list: %w", err)
			}
			c.CountdownFormats = list
			return nil
		}
		c.CountdownFormats = []string{trimmed}
		return nil
	},
}

var keyOrder = []string{
	"countdown_box",
	"buy_btn_pos",
	"confirm_btn_pos",
	"countdown_formats",
	"check_interval",
	"click_delay",
	"max_retries",
	"enable_confirm_click",
	"ocr.language",
	"ocr.page_seg_mode",
	"ocr.whitelist",
	"ocr.tessdata_prefix",
	"image_enhancement.enable_preprocessing",
	"image_enhancement.contrast_factor",
	"image_enhancement.scale",
	"log.level",
	"log.file",
	"log.console",
	"window.title",
	"window.width",
	"window.height",
}

var fields = map[string]field{
	"countdown_box":        coordsField(func(c *Config) *[]int { return &c.CountdownBox }, 4, false),
	"buy_btn_pos":          coordsField(func(c *Config) *[]int { return &c.BuyButtonPos }, 2, false),
	"confirm_btn_pos":      coordsField(func(c *Config) *[]int { return &c.ConfirmButtonPos }, 2, true),
	"countdown_formats":    formatsField,
	"check_interval":       durationField(func(c *Config) *Duration { return &c.CheckInterval }),
	"click_delay":          durationField(func(c *Config) *Duration { return &c.ClickDelay }),
	"max_retries":          intField(func(c *Config) *int { return &c.MaxRetries }),
	"enable_confirm_click": boolField(func(c *Config) *bool { return &c.EnableConfirmClick }),

	"ocr.language":        stringField(func(c *Config) *string { return &c.OCR.Language }),
	"ocr.page_seg_mode":   intField(func(c *Config) *int { return &c.OCR.PageSegMode }),
	"ocr.whitelist":       stringField(func(c *Config) *string { return &c.OCR.Whitelist }),
	"ocr.tessdata_prefix": stringField(func(c *Config) *string { return &c.OCR.TessdataPrefix }),

	"image_enhancement.enable_preprocessing": boolField(func(c *Config) *bool { return &c.ImageEnhancement.EnablePreprocessing }),
	"image_enhancement.contrast_factor":      floatField(func(c *Config) *float64 { return &c.ImageEnhancement.ContrastFactor }),
	"image_enhancement.scale":                floatField(func(c *Config) *float64 { return &c.ImageEnhancement.Scale }),

	"log.level":   stringField(func(c *Config) *string { return &c.Log.Level }),
	"log.file":    stringField(func(c *Config) *string { return &c.Log.File }),
	"log.console": boolField(func(c *Config) *bool { return &c.Log.Console }),

	"window.title":  stringField(func(c *Config) *string { return &c.Window.Title }),
	"window.width":  intField(func(c *Config) *int { return &c.Window.Width }),
	"window.height": intField(func(c *Config) *int { return &c.Window.Height }),
}

// Keys lists every settable key in display order.
func Keys() []string {
	return append([]string(nil), keyOrder...)
}

// Get returns the value of key rendered as text.
func (c *Config) Get(key string) (string, bool) {
	f, ok := fields[key]
	if !ok {
		return "", false
	}
	return f.get(c), true
}

// Set parses value and assigns it to key. Only the value's format is checked;
// call Validate for cross-field checks.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return errs.Configuration(key, "unknown configuration key")
	}
	if err := f.set(c, value); err != nil {
		return &errs.Error{Kind: errs.KindConfiguration, Op: key, Message: "invalid value", Cause: err}
	}
	return nil
}

func isNone(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "none", "null", "-":
		return true
	}
	return false
}
