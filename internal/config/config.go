// Package config loads mudra settings. Values are layered: built-in
// defaults, then the TOML file, then MUDRA_* environment variables. The CLI
// binds its flags over the result so flags win.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"

	"github.com/ayusman/mudra/internal/policy"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MUDRA_"

// JournalDisabled as journal_path turns the session journal off.
const JournalDisabled = "off"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Size is a WxH frame size.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "WxH".
func ParseSize(v string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(v)), "x")
	if !ok {
		return Size{}, fmt.Errorf("size %q: want WxH", v)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("size %q: bad width: %w", v, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("size %q: bad height: %w", v, err)
	}
	return Size{Width: width, Height: height}, nil
}

// UnmarshalText lets TOML and env values use the WxH form.
func (s *Size) UnmarshalText(text []byte) error {
	parsed, err := ParseSize(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Set and Type make Size usable as a command-line flag.
func (s *Size) Set(v string) error { return s.UnmarshalText([]byte(v)) }
func (s *Size) Type() string       { return "WxH" }

type Config struct {
	DatasetDir  string `toml:"dataset_dir" env:"DATASET_DIR"`
	VideosDir   string `toml:"videos_dir" env:"VIDEOS_DIR"`
	JournalPath string `toml:"journal_path" env:"JOURNAL_PATH"`
	DebugDir    string `toml:"debug_dir" env:"DEBUG_DIR"`

	CameraID          int     `toml:"camera_id" env:"CAMERA_ID"`
	Strategy          string  `toml:"strategy" env:"STRATEGY"`
	CaptureInterval   float64 `toml:"capture_interval" env:"CAPTURE_INTERVAL"`
	MaxSessionSeconds float64 `toml:"max_session_seconds" env:"MAX_SESSION_SECONDS"`
	RequireStart      bool    `toml:"require_start" env:"REQUIRE_START"`
	SaveManualImages  bool    `toml:"save_manual_images" env:"SAVE_MANUAL_IMAGES"`

	MaxNumHands            int     `toml:"max_num_hands" env:"MAX_NUM_HANDS"`
	AllHands               bool    `toml:"all_hands" env:"ALL_HANDS"`
	MinDetectionConfidence float64 `toml:"min_detection_confidence" env:"MIN_DETECTION_CONFIDENCE"`
	MinTrackingConfidence  float64 `toml:"min_tracking_confidence" env:"MIN_TRACKING_CONFIDENCE"`

	FrameStep       int  `toml:"frame_step" env:"FRAME_STEP"`
	TargetSize      Size `toml:"target_size" env:"TARGET_SIZE"`
	DenoiseEnabled  bool `toml:"denoise_enabled" env:"DENOISE_ENABLED"`
	EqualizeEnabled bool `toml:"equalize_enabled" env:"EQUALIZE_ENABLED"`

	ListenAddr string `toml:"listen_addr" env:"LISTEN_ADDR"`
	LogLevel   string `toml:"log_level" env:"LOG_LEVEL"`

	// Source is the file the TOML layer came from, empty when none was read.
	Source string `toml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DatasetDir:             "dataset",
		VideosDir:              "videos",
		Strategy:               policy.ManualAuto.String(),
		CaptureInterval:        5,
		MaxSessionSeconds:      120,
		MaxNumHands:            1,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
		FrameStep:              3,
		TargetSize:             Size{Width: 640, Height: 480},
		DenoiseEnabled:         true,
		EqualizeEnabled:        true,
		LogLevel:               "info",
	}
}

// Load layers the config file and the environment over Default. A missing
// default config file is fine; a missing file named by MUDRA_CONFIG is not.
func Load() (*Config, error) {
	cfg := Default()

	path, explicit := filePath()
	if path != "" {
		if err := cfg.loadFile(path, explicit); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile layers a single TOML file over Default, without the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path, true); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: %s: unknown key %q", ErrInvalid, path, undecoded[0].String())
	}
	c.Source = path
	c.expandPaths()
	return nil
}

func (c *Config) loadEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: environment: %w", ErrInvalid, err)
	}
	c.expandPaths()
	return nil
}

func (c *Config) expandPaths() {
	c.DatasetDir = expandTilde(c.DatasetDir)
	c.VideosDir = expandTilde(c.VideosDir)
	c.JournalPath = expandTilde(c.JournalPath)
	c.DebugDir = expandTilde(c.DebugDir)
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(strings.TrimSpace(c.DatasetDir) != "", "dataset_dir must be set")
	check(c.CameraID >= 0, "camera_id must be >= 0, got %d", c.CameraID)
	check(c.CaptureInterval > 0, "capture_interval must be > 0, got %g", c.CaptureInterval)
	check(c.MaxSessionSeconds > 0, "max_session_seconds must be > 0, got %g", c.MaxSessionSeconds)
	check(c.MaxNumHands >= 1, "max_num_hands must be >= 1, got %d", c.MaxNumHands)
	check(c.FrameStep >= 1, "frame_step must be >= 1, got %d", c.FrameStep)
	check(c.TargetSize.Width > 0 && c.TargetSize.Height > 0, "target_size must be positive, got %s", c.TargetSize)
	check(c.MinDetectionConfidence >= 0 && c.MinDetectionConfidence <= 1,
		"min_detection_confidence must be in [0,1], got %g", c.MinDetectionConfidence)
	check(c.MinTrackingConfidence >= 0 && c.MinTrackingConfidence <= 1,
		"min_tracking_confidence must be in [0,1], got %g", c.MinTrackingConfidence)

	if s, err := policy.ParseStrategy(c.Strategy); err != nil {
		check(false, "%v", err)
	} else {
		check(s != policy.Unconditional, "strategy must be manual or manual+auto, got %q", c.Strategy)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		check(false, "log_level: %v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// CaptureStrategy returns the parsed strategy. Call Validate first.
func (c *Config) CaptureStrategy() policy.Strategy {
	s, _ := policy.ParseStrategy(c.Strategy)
	return s
}

// Hands returns the hand selection for automatic and video captures.
func (c *Config) Hands() policy.HandSelection {
	if c.AllHands {
		return policy.AllHands
	}
	return policy.FirstHand
}

func (c *Config) Interval() time.Duration {
	return seconds(c.CaptureInterval)
}

func (c *Config) MaxSession() time.Duration {
	return seconds(c.MaxSessionSeconds)
}

// Journal returns the session journal path, or "" when it is disabled.
// It defaults to mudra.db inside the dataset directory.
func (c *Config) Journal() string {
	switch c.JournalPath {
	case JournalDisabled:
		return ""
	case "":
		return filepath.Join(c.DatasetDir, "mudra.db")
	default:
		return c.JournalPath
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// filePath returns the config file to read and whether the user named it.
func filePath() (string, bool) {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return expandTilde(p), true
	}

	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "mudra")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "mudra")
	} else {
		return "", false
	}
	return filepath.Join(configDir, "config.toml"), false
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
