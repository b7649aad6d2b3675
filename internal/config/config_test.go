package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config discovery at an empty directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("MUDRA_CONFIG", "")
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "mudra", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5*time.Second, cfg.Interval())
	assert.Equal(t, 2*time.Minute, cfg.MaxSession())
	assert.Equal(t, 1, cfg.MaxNumHands)
	assert.Equal(t, 3, cfg.FrameStep)
	assert.Equal(t, Size{Width: 640, Height: 480}, cfg.TargetSize)
	assert.True(t, cfg.DenoiseEnabled)
	assert.True(t, cfg.EqualizeEnabled)
	assert.Equal(t, policy.ManualAuto, cfg.CaptureStrategy())
	assert.Equal(t, policy.FirstHand, cfg.Hands())
}

func TestLoad_NoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().CaptureInterval, cfg.CaptureInterval)
	assert.Empty(t, cfg.Source)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
dataset_dir = "/data/hands"
capture_interval = 2.5
target_size = "320x240"
denoise_enabled = false
strategy = "manual"
frame_step = 5
`)
	t.Setenv("MUDRA_FRAME_STEP", "7")
	t.Setenv("MUDRA_ALL_HANDS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "/data/hands", cfg.DatasetDir)
	assert.Equal(t, 2500*time.Millisecond, cfg.Interval())
	assert.Equal(t, Size{Width: 320, Height: 240}, cfg.TargetSize)
	assert.False(t, cfg.DenoiseEnabled)
	assert.True(t, cfg.EqualizeEnabled, "unset keys keep their defaults")
	assert.Equal(t, policy.ManualOnly, cfg.CaptureStrategy())
	assert.Equal(t, 7, cfg.FrameStep, "environment wins over the file")
	assert.Equal(t, policy.AllHands, cfg.Hands())
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	isolate(t)
	t.Setenv("MUDRA_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_UnknownKey(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, `capture_intervall = 3`)

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_BadEnvValue(t *testing.T) {
	isolate(t)
	t.Setenv("MUDRA_TARGET_SIZE", "huge")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.toml")
	require.NoError(t, os.WriteFile(path, []byte(`max_num_hands = 2`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxNumHands)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero interval", mutate: func(c *Config) { c.CaptureInterval = 0 }},
		{name: "negative session", mutate: func(c *Config) { c.MaxSessionSeconds = -1 }},
		{name: "no hands", mutate: func(c *Config) { c.MaxNumHands = 0 }},
		{name: "zero step", mutate: func(c *Config) { c.FrameStep = 0 }},
		{name: "empty size", mutate: func(c *Config) { c.TargetSize = Size{Width: 640} }},
		{name: "confidence", mutate: func(c *Config) { c.MinDetectionConfidence = 1.5 }},
		{name: "tracking", mutate: func(c *Config) { c.MinTrackingConfidence = -0.1 }},
		{name: "strategy", mutate: func(c *Config) { c.Strategy = "sometimes" }},
		{name: "video strategy", mutate: func(c *Config) { c.Strategy = "video" }},
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "loud" }},
		{name: "dataset", mutate: func(c *Config) { c.DatasetDir = " " }},
		{name: "camera", mutate: func(c *Config) { c.CameraID = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{in: "640x480", want: Size{Width: 640, Height: 480}},
		{in: " 320X240 ", want: Size{Width: 320, Height: 240}},
		{in: "640", wantErr: true},
		{in: "ax480", wantErr: true},
		{in: "640xb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestSize_FlagValue(t *testing.T) {
	var s Size
	require.NoError(t, s.Set("100x50"))
	assert.Equal(t, "100x50", s.String())
	assert.Equal(t, "WxH", s.Type())
}

func TestJournal(t *testing.T) {
	cfg := Default()
	cfg.DatasetDir = "/data"
	assert.Equal(t, filepath.Join("/data", "mudra.db"), cfg.Journal())

	cfg.JournalPath = "/tmp/j.db"
	assert.Equal(t, "/tmp/j.db", cfg.Journal())

	cfg.JournalPath = JournalDisabled
	assert.Empty(t, cfg.Journal())
}
