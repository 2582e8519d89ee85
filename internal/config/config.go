// Package config loads, validates and persists the buyer settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ConserveLee/flash-buyer/internal/constants"
	"github.com/ConserveLee/flash-buyer/internal/engine"
	"github.com/ConserveLee/flash-buyer/internal/engine/countdown"
	"github.com/ConserveLee/flash-buyer/internal/engine/ocr"
	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
	"github.com/ConserveLee/flash-buyer/internal/errs"
	"github.com/ConserveLee/flash-buyer/internal/logging"
)

// Duration is a time.Duration written as "100ms" in YAML. Plain numbers are
// read as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

type OCRConfig struct {
	Language       string `yaml:"language"`
	PageSegMode    int    `yaml:"page_seg_mode"`
	Whitelist      string `yaml:"whitelist"`
	TessdataPrefix string `yaml:"tessdata_prefix"`
}

type ImageConfig struct {
	EnablePreprocessing bool    `yaml:"enable_preprocessing"`
	ContrastFactor      float64 `yaml:"contrast_factor"`
	Scale               float64 `yaml:"scale"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Config is the persisted configuration.
type Config struct {
	CountdownBox       []int        `yaml:"countdown_box,flow"`
	BuyButtonPos       []int        `yaml:"buy_btn_pos,flow"`
	ConfirmButtonPos   []int        `yaml:"confirm_btn_pos,flow,omitempty"`
	CountdownFormats   []string     `yaml:"countdown_formats"`
	CheckInterval      Duration     `yaml:"check_interval"`
	ClickDelay         Duration     `yaml:"click_delay"`
	MaxRetries         int          `yaml:"max_retries"`
	EnableConfirmClick bool         `yaml:"enable_confirm_click"`
	OCR                OCRConfig    `yaml:"ocr"`
	ImageEnhancement   ImageConfig  `yaml:"image_enhancement"`
	Log                LogConfig    `yaml:"log"`
	Window             WindowConfig `yaml:"window"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CountdownBox:       append([]int(nil), constants.DefaultCountdownBox...),
		BuyButtonPos:       append([]int(nil), constants.DefaultBuyButton...),
		ConfirmButtonPos:   append([]int(nil), constants.DefaultConfirmBtn...),
		CountdownFormats:   append([]string(nil), countdown.DefaultPatterns...),
		CheckInterval:      Duration(constants.DefaultCheckInterval),
		ClickDelay:         Duration(constants.DefaultClickDelay),
		MaxRetries:         constants.DefaultMaxRetries,
		EnableConfirmClick: true,
		OCR: OCRConfig{
			Language:    constants.DefaultLanguage,
			PageSegMode: constants.DefaultPageSegMode,
		},
		ImageEnhancement: ImageConfig{
			EnablePreprocessing: true,
			ContrastFactor:      constants.DefaultContrastFactor,
			Scale:               constants.DefaultScale,
		},
		Log: LogConfig{
			Level:   "INFO",
			File:    logging.DefaultFile,
			Console: true,
		},
		Window: WindowConfig{
			Title:  constants.WindowTitle,
			Width:  constants.WindowWidth,
			Height: constants.WindowHeight,
		},
	}
}

// Path returns the config file to use: $FLASHBUY_CONFIG or config.yaml.
func Path() string {
	if p := os.Getenv(constants.ConfigEnvVar); p != "" {
		return p
	}
	return constants.DefaultConfigFile
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv fills settings that may come from the environment.
func (c *Config) ApplyEnv() {
	if c.OCR.TessdataPrefix == "" {
		c.OCR.TessdataPrefix = os.Getenv(constants.TessdataEnvVar)
	}
}

// Validate reports every problem in one configuration error.
func (c *Config) Validate() error {
	_, problems := engine.ValidateConfiguration(c.CountdownBox, c.BuyButtonPos, c.ConfirmButtonPos)

	if len(c.CountdownFormats) == 0 {
		problems = append(problems, "at least one countdown format is required")
	}
	valid := countdown.ValidatePatterns(c.CountdownFormats)
	if len(valid) != len(c.CountdownFormats) {
		for _, p := range c.CountdownFormats {
			if _, err := countdown.NewTimeFormat(p); err != nil {
				problems = append(problems, err.Error())
			}
		}
	}

	if c.CheckInterval <= 0 {
		problems = append(problems, fmt.Sprintf("check_interval must be positive, got %v", c.CheckInterval))
	}
	if c.ClickDelay < 0 {
		problems = append(problems, fmt.Sprintf("click_delay must not be negative, got %v", c.ClickDelay))
	}
	if c.MaxRetries < 1 {
		problems = append(problems, fmt.Sprintf("max_retries must be at least 1, got %d", c.MaxRetries))
	}
	if c.ImageEnhancement.ContrastFactor <= 0 {
		problems = append(problems, fmt.Sprintf("contrast_factor must be positive, got %v", c.ImageEnhancement.ContrastFactor))
	}
	if c.ImageEnhancement.Scale <= 0 {
		problems = append(problems, fmt.Sprintf("scale must be positive, got %v", c.ImageEnhancement.Scale))
	}
	if c.OCR.PageSegMode < 0 || c.OCR.PageSegMode > 13 {
		problems = append(problems, fmt.Sprintf("page_seg_mode must be between 0 and 13, got %d", c.OCR.PageSegMode))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errs.Configuration("config", strings.Join(problems, "; "))
	}
	return nil
}

// ReadOptions returns the preprocessing settings for the countdown reader.
func (c *Config) ReadOptions() countdown.ReadOptions {
	return countdown.ReadOptions{
		Preprocess: c.ImageEnhancement.EnablePreprocessing,
		Contrast:   c.ImageEnhancement.ContrastFactor,
		Scale:      c.ImageEnhancement.Scale,
	}
}

// OCROptions returns the tesseract settings.
func (c *Config) OCROptions() ocr.Options {
	return ocr.Options{
		Language:       c.OCR.Language,
		PageSegMode:    c.OCR.PageSegMode,
		Whitelist:      c.OCR.Whitelist,
		TessdataPrefix: c.OCR.TessdataPrefix,
	}
}

// Logging returns the logging setup for this configuration.
func (c *Config) Logging() *logging.Config {
	lc := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = lvl
	}
	lc.File = c.Log.File
	lc.Console = c.Log.Console
	return lc
}

// Region returns the countdown box.
func (c *Config) Region() (screen.Region, error) {
	return screen.RegionFromSlice(c.CountdownBox)
}

// Job validates the configuration and turns it into a run description.
func (c *Config) Job() (engine.Job, error) {
	if err := c.Validate(); err != nil {
		return engine.Job{}, err
	}
	formats, err := countdown.CompileFormats(c.CountdownFormats)
	if err != nil {
		return engine.Job{}, errs.Configuration("countdown_formats", err.Error())
	}
	region, err := c.Region()
	if err != nil {
		return engine.Job{}, errs.Configuration("countdown_box", err.Error())
	}
	buy, err := screen.PointFromSlice(c.BuyButtonPos)
	if err != nil {
		return engine.Job{}, errs.Configuration("buy_btn_pos", err.Error())
	}
	job := engine.Job{
		Region:         region,
		Formats:        formats,
		BuyPoint:       buy,
		CheckInterval:  time.Duration(c.CheckInterval),
		ClickDelay:     time.Duration(c.ClickDelay),
		MaxRetries:     c.MaxRetries,
		ConfirmEnabled: c.EnableConfirmClick,
		Read:           c.ReadOptions(),
	}
	if len(c.ConfirmButtonPos) > 0 {
		confirm, err := screen.PointFromSlice(c.ConfirmButtonPos)
		if err != nil {
			return engine.Job{}, errs.Configuration("confirm_btn_pos", err.Error())
		}
		job.ConfirmPoint = &confirm
	}
	return job, nil
}
