package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/flash-buyer/internal/engine/screen"
	"github.com/ConserveLee/flash-buyer/internal/errs"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{100, 200, 300, 240}, cfg.CountdownBox)
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.CheckInterval))
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Len(t, cfg.CountdownFormats, 3)
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
countdown_box: [10, 20, 110, 60]
check_interval: 0.25
click_delay: 20ms
max_retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 110, 60}, cfg.CountdownBox)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.CheckInterval))
	assert.Equal(t, 20*time.Millisecond, time.Duration(cfg.ClickDelay))
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, Default().BuyButtonPos, cfg.BuyButtonPos)
	assert.True(t, cfg.EnableConfirmClick)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("check_interval: soon\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.BuyButtonPos = []int{1, 2}
	cfg.ConfirmButtonPos = nil
	cfg.ClickDelay = Duration(80 * time.Millisecond)

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, loaded.BuyButtonPos)
	assert.Equal(t, Duration(80*time.Millisecond), loaded.ClickDelay)
	// omitted on save, so the default comes back
	assert.Equal(t, Default().ConfirmButtonPos, loaded.ConfirmButtonPos)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.CountdownBox = []int{300, 200, 100, 400}
	cfg.CountdownFormats = []string{`(\d+)秒`, `(\d+`}
	cfg.CheckInterval = 0
	cfg.MaxRetries = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))

	msg := err.Error()
	for _, want := range []string{
		"left (300) must be less than right (100)",
		`invalid pattern "(\\d+"`,
		"check_interval must be positive",
		"max_retries must be at least 1",
		"unknown log level",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"[100, 200]", []int{100, 200}, false},
		{"100,200,300,240", []int{100, 200, 300, 240}, false},
		{" (5 6) ", []int{5, 6}, false},
		{"[]", nil, true},
		{"[1, x]", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCoordinates(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetGet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("buy_btn_pos", "[700, 800]"))
	require.NoError(t, cfg.Set("check_interval", "0.2"))
	require.NoError(t, cfg.Set("enable_confirm_click", "false"))
	require.NoError(t, cfg.Set("image_enhancement.contrast_factor", "3.5"))
	require.NoError(t, cfg.Set("countdown_formats", `['(\d+)s', '(\d+):(\d+)']`))
	require.NoError(t, cfg.Set("confirm_btn_pos", "none"))

	v, ok := cfg.Get("buy_btn_pos")
	require.True(t, ok)
	assert.Equal(t, "[700, 800]", v)

	v, _ = cfg.Get("check_interval")
	assert.Equal(t, "200ms", v)
	v, _ = cfg.Get("enable_confirm_click")
	assert.Equal(t, "false", v)
	v, _ = cfg.Get("image_enhancement.contrast_factor")
	assert.Equal(t, "3.5", v)
	assert.Equal(t, []string{`(\d+)s`, `(\d+):(\d+)`}, cfg.CountdownFormats)
	assert.Nil(t, cfg.ConfirmButtonPos)

	_, ok = cfg.Get("nope")
	assert.False(t, ok)

	err := cfg.Set("nope", "1")
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
	assert.Error(t, cfg.Set("countdown_box", "[1, 2]"))
	assert.Error(t, cfg.Set("max_retries", "many"))

	for _, k := range Keys() {
		_, ok := cfg.Get(k)
		assert.True(t, ok, k)
	}
}

func TestJob(t *testing.T) {
	cfg := Default()
	job, err := cfg.Job()
	require.NoError(t, err)

	assert.Equal(t, screen.Region{Left: 100, Top: 200, Right: 300, Bottom: 240}, job.Region)
	assert.Equal(t, screen.Point{X: 500, Y: 600}, job.BuyPoint)
	require.NotNil(t, job.ConfirmPoint)
	assert.Equal(t, screen.Point{X: 550, Y: 650}, *job.ConfirmPoint)
	assert.Len(t, job.Formats, 3)
	assert.Equal(t, 50*time.Millisecond, job.ClickDelay)
	assert.True(t, job.Read.Preprocess)

	cfg.ConfirmButtonPos = nil
	job, err = cfg.Job()
	require.NoError(t, err)
	assert.Nil(t, job.ConfirmPoint)

	cfg.CountdownBox = []int{300, 200, 100, 400}
	_, err = cfg.Job()
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))
}
