// Package config provides configuration loading and access for the spray simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	Canvas     CanvasConfig     `yaml:"canvas"`
	Run        RunConfig        `yaml:"run"`
	Spray      SprayConfig      `yaml:"spray"`
	Nozzle     NozzleConfig     `yaml:"nozzle"`
	Projection ProjectionConfig `yaml:"projection"`
	Export     ExportConfig     `yaml:"export"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// CanvasConfig holds paint buffer dimensions.
type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Margin int `yaml:"margin"` // Samples landing within this many pixels of an edge are discarded
}

// RunConfig holds frame loop and dispatch parameters.
type RunConfig struct {
	Frames    int    `yaml:"frames"`
	Particles int    `yaml:"particles"`
	Seed      uint32 `yaml:"seed"`    // Offset added to slot index before seeding (0 = slot i seeds from i)
	Workers   int    `yaml:"workers"` // Dispatch workers (0 = GOMAXPROCS)
}

// SprayConfig holds the physical spray parameters.
type SprayConfig struct {
	Pressure      float64 `yaml:"pressure"`        // Intensity deposited per hit at zero distance
	ConeHalfAngle float64 `yaml:"cone_half_angle"` // Radians
	MaxDistance   float64 `yaml:"max_distance"`    // World units; fade reaches 0 here
	Softness      float64 `yaml:"softness"`        // World units; applied as export feathering only
}

// NozzleConfig holds the nozzle path parameters.
type NozzleConfig struct {
	StartX    float64 `yaml:"start_x"`
	EndX      float64 `yaml:"end_x"`
	BaseY     float64 `yaml:"base_y"`
	Amplitude float64 `yaml:"amplitude"`
	Frequency float64 `yaml:"frequency"` // Radians per frame
	Depth     float64 `yaml:"depth"`     // Constant z used by the scene marker
}

// ProjectionConfig is the world-space wall rectangle mapped onto the canvas.
type ProjectionConfig struct {
	MinX float64 `yaml:"min_x"`
	MaxX float64 `yaml:"max_x"`
	MinY float64 `yaml:"min_y"`
	MaxY float64 `yaml:"max_y"`
}

// ExportConfig holds frame exporter settings.
type ExportConfig struct {
	Dir     string  `yaml:"dir"`     // Empty = no image export
	Format  string  `yaml:"format"`  // png, bmp, tiff
	Channel string  `yaml:"channel"` // gray, red, green, blue
	Scale   float64 `yaml:"scale"`   // Output resampling factor (1 = native)
	Feather bool    `yaml:"feather"` // Blur by softness before encoding
	Scene   bool    `yaml:"scene"`   // Write final_scene.usda alongside the textures
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	PerfWindow int  `yaml:"perf_window"`
	LogFrames  bool `yaml:"log_frames"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Cells          int     // Canvas.Width * Canvas.Height
	PixelWorldX    float64 // World units per pixel, horizontal
	PixelWorldY    float64 // World units per pixel, vertical
	SoftnessPixels float64 // Spray.Softness in horizontal pixels
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate reports every configuration error at once. The returned error
// wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	positiveInt := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive integer, got %d", name, v))
		}
	}
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be a positive number, got %v", name, v))
		}
	}
	finite := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite, got %v", name, v))
		}
	}

	positiveInt("canvas.width", c.Canvas.Width)
	positiveInt("canvas.height", c.Canvas.Height)
	if c.Canvas.Margin < 0 {
		errs = append(errs, fmt.Errorf("canvas.margin must not be negative, got %d", c.Canvas.Margin))
	}
	if c.Canvas.Width > 0 && c.Canvas.Height > 0 &&
		(2*c.Canvas.Margin+1 >= c.Canvas.Width || 2*c.Canvas.Margin+1 >= c.Canvas.Height) {
		errs = append(errs, fmt.Errorf("canvas.margin %d leaves no interior in a %dx%d canvas",
			c.Canvas.Margin, c.Canvas.Width, c.Canvas.Height))
	}

	positiveInt("run.frames", c.Run.Frames)
	positiveInt("run.particles", c.Run.Particles)
	if c.Run.Workers < 0 {
		errs = append(errs, fmt.Errorf("run.workers must not be negative, got %d", c.Run.Workers))
	}

	positive("spray.pressure", c.Spray.Pressure)
	positive("spray.cone_half_angle", c.Spray.ConeHalfAngle)
	positive("spray.max_distance", c.Spray.MaxDistance)
	positive("spray.softness", c.Spray.Softness)

	finite("nozzle.start_x", c.Nozzle.StartX)
	finite("nozzle.end_x", c.Nozzle.EndX)
	finite("nozzle.base_y", c.Nozzle.BaseY)
	finite("nozzle.amplitude", c.Nozzle.Amplitude)
	finite("nozzle.frequency", c.Nozzle.Frequency)
	finite("nozzle.depth", c.Nozzle.Depth)

	if !(c.Projection.MaxX > c.Projection.MinX) {
		errs = append(errs, fmt.Errorf("projection.max_x (%v) must exceed projection.min_x (%v)",
			c.Projection.MaxX, c.Projection.MinX))
	}
	if !(c.Projection.MaxY > c.Projection.MinY) {
		errs = append(errs, fmt.Errorf("projection.max_y (%v) must exceed projection.min_y (%v)",
			c.Projection.MaxY, c.Projection.MinY))
	}

	switch c.Export.Format {
	case "png", "bmp", "tiff":
	default:
		errs = append(errs, fmt.Errorf("export.format must be png, bmp or tiff, got %q", c.Export.Format))
	}
	switch c.Export.Channel {
	case "gray", "red", "green", "blue":
	default:
		errs = append(errs, fmt.Errorf("export.channel must be gray, red, green or blue, got %q", c.Export.Channel))
	}
	if !(c.Export.Scale >= 1) {
		errs = append(errs, fmt.Errorf("export.scale must be >= 1, got %v", c.Export.Scale))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Cells = c.Canvas.Width * c.Canvas.Height
	c.Derived.PixelWorldX = (c.Projection.MaxX - c.Projection.MinX) / float64(c.Canvas.Width)
	c.Derived.PixelWorldY = (c.Projection.MaxY - c.Projection.MinY) / float64(c.Canvas.Height)
	c.Derived.SoftnessPixels = c.Spray.Softness / c.Derived.PixelWorldX
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Revalidate re-runs validation and recomputes derived values after a
// caller mutated the struct in place (CLI overrides, optimizer candidates).
func (c *Config) Revalidate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}
