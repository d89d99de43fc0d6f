// Package config defines process configuration for both binaries.
// Values are layered: built-in defaults, then an optional YAML file,
// then FACEGATE_-prefixed environment variables.
package config

import "time"

// DetectionMode selects the recognition speed/accuracy trade-off.
// "accurate" analyzes full-resolution frames and needs more matching
// votes; "fast" halves the vote threshold and tolerates more unknown
// captures per session.
const (
	ModeAccurate = "accurate"
	ModeFast     = "fast"
)

type Config struct {
	HTTPAddr string `koanf:"http_addr"`

	// Env is "dev" or "prod". Dev seeds the credential directory.
	Env    string `koanf:"env"`
	DBPath string `koanf:"db_path"`

	// Encodings database produced by the external batch encoder.
	EncodingsPath         string `koanf:"encodings_path"`
	EncodingsRefreshHours int    `koanf:"encodings_refresh_hours"`

	// CaptureRoot is where unknown-face incident images are written.
	CaptureRoot string `koanf:"capture_root"`

	// Recognition tunables. Threshold and UnknownCaptureMax of 0 mean
	// "derive from detection_mode".
	DetectionMode     string  `koanf:"detection_mode"`
	Threshold         int     `koanf:"threshold"`
	Tolerance         float64 `koanf:"tolerance"`
	UnknownCaptureMax int     `koanf:"unknown_capture_max"`

	// Session tunables.
	MaxElapsedSeconds    int  `koanf:"max_elapsed_seconds"`
	TerminalOnSaturation bool `koanf:"terminal_on_saturation"`

	// Camera side: either a live recognizer sidecar plus frame source,
	// or a directory replay for dev rigs.
	RecognizerURL string  `koanf:"recognizer_url"`
	ReplayDir     string  `koanf:"replay_dir"`
	ReplayFPS     float64 `koanf:"replay_fps"`
	ReplayLoop    bool    `koanf:"replay_loop"`

	// Reader binary: GPIO line names (periph.io gpioreg) and delivery
	// target.
	ServerURL    string `koanf:"server_url"`
	GPIOLine0    string `koanf:"gpio_line0"`
	GPIOLine1    string `koanf:"gpio_line1"`
	BitTimeoutMS int    `koanf:"bit_timeout_ms"`
}

// New returns a Config holding the built-in defaults.
func New() *Config {
	return &Config{
		HTTPAddr: ":8080",
		Env:      "dev",
		DBPath:   "./data/facegate.db",

		EncodingsPath:         "./data/encodings.json",
		EncodingsRefreshHours: 24,

		CaptureRoot: "./data/captures",

		DetectionMode: ModeAccurate,
		Tolerance:     0.55,

		MaxElapsedSeconds:    15,
		TerminalOnSaturation: true,

		RecognizerURL: "http://127.0.0.1:9090",
		ReplayFPS:     10,

		ServerURL:    "http://127.0.0.1:8080",
		GPIOLine0:    "GPIO14",
		GPIOLine1:    "GPIO15",
		BitTimeoutMS: 5,
	}
}

// VoteThreshold resolves the configured or mode-derived vote threshold.
func (c *Config) VoteThreshold() int {
	if c.Threshold > 0 {
		return c.Threshold
	}
	if c.DetectionMode == ModeFast {
		return 8
	}
	return 15
}

// CaptureBudget resolves the configured or mode-derived per-session
// unknown capture limit.
func (c *Config) CaptureBudget() int {
	if c.UnknownCaptureMax > 0 {
		return c.UnknownCaptureMax
	}
	if c.DetectionMode == ModeFast {
		return 30
	}
	return 15
}

// MaxElapsed returns the session deadline as a duration.
func (c *Config) MaxElapsed() time.Duration {
	return time.Duration(c.MaxElapsedSeconds) * time.Second
}

// BitTimeout returns the per-line decoder watchdog as a duration.
func (c *Config) BitTimeout() time.Duration {
	return time.Duration(c.BitTimeoutMS) * time.Millisecond
}
