package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a JSON and YAML friendly wrapper around time.Duration that accepts
// human readable strings such as "150ms" while still allowing numeric
// nanosecond values.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration as its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got kind %d", value.Kind)
	}
	if value.ShortTag() == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures every tunable used to generate, store and serve terrain meshes.
type Config struct {
	Mesh        MeshConfig        `json:"mesh" yaml:"mesh"`
	EdgeFlatten EdgeFlattenConfig `json:"edgeFlatten" yaml:"edge_flatten"`
	Smoothing   SmoothingConfig   `json:"smoothing" yaml:"smoothing"`
	Noise       NoiseConfig       `json:"noise" yaml:"noise"`
	Output      OutputConfig      `json:"output" yaml:"output"`
	Store       StoreConfig       `json:"store" yaml:"store"`
	Server      ServerConfig      `json:"server" yaml:"server"`
}

// maxSubdivisions keeps (subdivisions+2)^2 vertex indices well inside uint32.
const maxSubdivisions = 4096

type MeshConfig struct {
	Width        float64 `json:"width" yaml:"width"` // along X
	Depth        float64 `json:"depth" yaml:"depth"` // along Z
	Subdivisions int     `json:"subdivisions" yaml:"subdivisions"`
	Variation    float64 `json:"variation" yaml:"variation"` // noise amplitude in world units
	Workers      int     `json:"workers" yaml:"workers"`     // 0 picks GOMAXPROCS based default
}

type EdgeFlattenConfig struct {
	Radius       float64 `json:"radius" yaml:"radius"`
	Power        float64 `json:"power" yaml:"power"`
	TargetHeight float64 `json:"targetHeight" yaml:"target_height"`
}

type SmoothingConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Iterations int     `json:"iterations" yaml:"iterations"`
	Strength   float64 `json:"strength" yaml:"strength"`
}

// Noise types understood by the noise package.
const (
	NoiseOpenSimplex = "opensimplex"
	NoisePerlin      = "perlin"
	NoiseValue       = "value"
)

type NoiseConfig struct {
	Type       string  `json:"type" yaml:"type"`
	Seed       int64   `json:"seed" yaml:"seed"`
	Frequency  float64 `json:"frequency" yaml:"frequency"`
	Octaves    int     `json:"octaves" yaml:"octaves"`
	Lacunarity float64 `json:"lacunarity" yaml:"lacunarity"`
	Gain       float64 `json:"gain" yaml:"gain"`
}

// Output formats written by the generate command.
const (
	FormatOBJ    = "obj"
	FormatJSON   = "json"
	FormatBinary = "bin"
)

type OutputConfig struct {
	Dir         string `json:"dir" yaml:"dir"`
	Format      string `json:"format" yaml:"format"`
	Preview     bool   `json:"preview" yaml:"preview"`
	PreviewSize int    `json:"previewSize" yaml:"preview_size"` // pixels per side
}

// Store drivers.
const (
	StoreMemory = "memory"
	StoreDisk   = "disk"
)

type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
}

type ServerConfig struct {
	ListenAddress     string   `json:"listenAddress" yaml:"listen_address"`
	HTTPPort          int      `json:"httpPort" yaml:"http_port"`
	ReadHeaderTimeout Duration `json:"readHeaderTimeout" yaml:"read_header_timeout"`
	ShutdownTimeout   Duration `json:"shutdownTimeout" yaml:"shutdown_timeout"`
	GenerateOnStart   bool     `json:"generateOnStart" yaml:"generate_on_start"`
}

// Load reads configuration from a JSON or YAML file if provided. An empty path
// returns defaults. Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path, choosing the encoding from the file extension.
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// WriteDefault persists the default configuration to path.
func WriteDefault(path string) error {
	return Save(path, Default())
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			Width:        64,
			Depth:        64,
			Subdivisions: 63,
			Variation:    16,
		},
		EdgeFlatten: EdgeFlattenConfig{
			Radius:       8,
			Power:        2,
			TargetHeight: 0,
		},
		Smoothing: SmoothingConfig{
			Enabled:    true,
			Iterations: 2,
			Strength:   0.5,
		},
		Noise: NoiseConfig{
			Type:       NoiseOpenSimplex,
			Seed:       0,
			Frequency:  0.01,
			Octaves:    5,
			Lacunarity: 2,
			Gain:       0.5,
		},
		Output: OutputConfig{
			Dir:         "out",
			Format:      FormatOBJ,
			Preview:     true,
			PreviewSize: 256,
		},
		Store: StoreConfig{
			Driver: StoreMemory,
			Path:   "data/meshes.log",
		},
		Server: ServerConfig{
			ListenAddress:     "127.0.0.1",
			HTTPPort:          8088,
			ReadHeaderTimeout: Duration(5 * time.Second),
			ShutdownTimeout:   Duration(5 * time.Second),
			GenerateOnStart:   true,
		},
	}
}

func (c *Config) Validate() error {
	if c.Mesh.Width <= 0 || c.Mesh.Depth <= 0 {
		return errors.New("mesh dimensions must be positive")
	}
	if c.Mesh.Subdivisions < 0 {
		return errors.New("mesh.subdivisions cannot be negative")
	}
	if c.Mesh.Subdivisions >= maxSubdivisions {
		return errors.New("mesh.subdivisions must be below 4096")
	}
	if c.Mesh.Workers < 0 {
		return errors.New("mesh.workers cannot be negative")
	}
	if c.EdgeFlatten.Radius < 0 {
		return errors.New("edgeFlatten.radius cannot be negative")
	}
	if c.EdgeFlatten.Power < 0 {
		return errors.New("edgeFlatten.power cannot be negative")
	}
	if c.Smoothing.Iterations < 0 {
		return errors.New("smoothing.iterations cannot be negative")
	}
	if c.Smoothing.Strength < 0 || c.Smoothing.Strength > 1 {
		return errors.New("smoothing.strength must be within [0,1]")
	}
	switch c.Noise.Type {
	case NoiseOpenSimplex, NoisePerlin, NoiseValue:
	default:
		return fmt.Errorf("noise.type %q is not supported", c.Noise.Type)
	}
	if c.Noise.Frequency <= 0 {
		return errors.New("noise.frequency must be positive")
	}
	if c.Noise.Octaves <= 0 {
		return errors.New("noise.octaves must be positive")
	}
	switch c.Output.Format {
	case FormatOBJ, FormatJSON, FormatBinary:
	default:
		return fmt.Errorf("output.format %q is not supported", c.Output.Format)
	}
	if c.Output.Preview && c.Output.PreviewSize <= 0 {
		return errors.New("output.previewSize must be positive when preview is enabled")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreDisk:
		if c.Store.Path == "" {
			return errors.New("store.path must be set for the disk driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return errors.New("server.httpPort must be within [0,65535]")
	}
	return nil
}
