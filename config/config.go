// Package config handles replkit.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file looked up by FindAndLoad.
const FileName = "replkit.toml"

// Evaluator modes.
const (
	ModeBasic = "basic"
	ModeFull  = "full"
)

// Config represents a replkit.toml configuration.
type Config struct {
	Evaluator Evaluator `toml:"evaluator"`
	Server    Server    `toml:"server"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the replkit.toml file (set at load time).
	// Empty for a default configuration.
	Dir string `toml:"-"`
}

// Evaluator configures the evaluator created by the CLI and the server.
type Evaluator struct {
	Mode     string   `toml:"mode"`
	Imports  []string `toml:"imports"`
	Stdlib   bool     `toml:"stdlib"`
	ImageDir string   `toml:"image-dir"`
}

// Server configures the evaluation service.
type Server struct {
	Addr          string        `toml:"addr"`
	SessionTTL    time.Duration `toml:"session-ttl"`
	SweepInterval time.Duration `toml:"sweep-interval"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no replkit.toml is found.
func Default() *Config {
	return &Config{
		Evaluator: Evaluator{
			Mode:     ModeFull,
			Stdlib:   true,
			ImageDir: filepath.Join(".replkit", "images"),
		},
		Server: Server{
			Addr:          "localhost:7411",
			SessionTTL:    30 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}

// Load parses a replkit.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults for values explicitly zeroed in the file
	d := Default()
	if c.Evaluator.Mode == "" {
		c.Evaluator.Mode = d.Evaluator.Mode
	}
	if c.Evaluator.ImageDir == "" {
		c.Evaluator.ImageDir = d.Evaluator.ImageDir
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.SessionTTL <= 0 {
		c.Server.SessionTTL = d.Server.SessionTTL
	}
	if c.Server.SweepInterval <= 0 {
		c.Server.SweepInterval = d.Server.SweepInterval
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a replkit.toml file,
// then loads and returns it. Returns Default() if none is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	switch c.Evaluator.Mode {
	case ModeBasic, ModeFull:
	default:
		return fmt.Errorf("unknown evaluator mode %q (want %q or %q)", c.Evaluator.Mode, ModeBasic, ModeFull)
	}
	if c.Log.Verbosity < -4 {
		return fmt.Errorf("log verbosity %d out of range", c.Log.Verbosity)
	}
	return nil
}

// ImageDirPath returns the absolute reference image directory.
func (c *Config) ImageDirPath() string {
	if filepath.IsAbs(c.Evaluator.ImageDir) {
		return c.Evaluator.ImageDir
	}
	base := c.Dir
	if base == "" {
		base, _ = os.Getwd()
	}
	return filepath.Join(base, c.Evaluator.ImageDir)
}

// LogFile returns the configured log file path, or nil for stderr.
func (c *Config) LogFile() *string {
	if c.Log.File == "" {
		return nil
	}
	path := c.Log.File
	if !filepath.IsAbs(path) && c.Dir != "" {
		path = filepath.Join(c.Dir, path)
	}
	return &path
}
